package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AccountDocument stores an Account as a JSON document in a SQL table.
// AccountName and MemberNumber are lifted out for unique indexes and lookups.
type AccountDocument struct {
	ID           int64          `gorm:"primaryKey;autoIncrement"`
	AccountName  string         `gorm:"uniqueIndex;size:20;not null"`
	MemberNumber uint32         `gorm:"uniqueIndex;not null"`
	Document     datatypes.JSON `gorm:"not null"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
}

// AutoMigrate creates or updates the account table in the given database.
func AutoMigrate(db *gorm.DB, table string) error {
	return db.Table(table).AutoMigrate(&AccountDocument{})
}
