// Package sqlstore keeps account documents in a SQL table through GORM. Each
// row holds the full PascalCase JSON document; AccountName and MemberNumber are
// duplicated into indexed columns.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kasuganosora/bondageclub/server/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// emailField mirrors the key probed by the MongoDB store.
const emailField = "mail"

// Store is the GORM-backed account collection.
type Store struct {
	db    *gorm.DB
	table string
}

// New migrates the table and returns the store.
func New(db *gorm.DB, table string) (*Store, error) {
	if err := model.AutoMigrate(db, table); err != nil {
		return nil, fmt.Errorf("sqlstore migrate: %w", err)
	}
	return &Store{db: db, table: table}, nil
}

func (s *Store) tx(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

func (s *Store) findRow(tx *gorm.DB, accountName string) (*model.AccountDocument, error) {
	var row model.AccountDocument
	err := tx.Where("account_name = ?", accountName).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) FindAccount(ctx context.Context, accountName string) (*model.Account, error) {
	row, err := s.findRow(s.tx(ctx), accountName)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlstore find account: %w", err)
	}
	var acc model.Account
	if err := json.Unmarshal(row.Document, &acc); err != nil {
		return nil, fmt.Errorf("sqlstore decode account: %w", err)
	}
	acc.Normalize()
	return &acc, nil
}

func (s *Store) HasEmail(ctx context.Context, accountName string) (bool, error) {
	row, err := s.findRow(s.tx(ctx), accountName)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlstore email status: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(row.Document, &doc); err != nil {
		return false, fmt.Errorf("sqlstore decode account: %w", err)
	}
	v, ok := doc[emailField]
	if !ok || v == nil {
		return false, nil
	}
	str, isStr := v.(string)
	return !isStr || str != "", nil
}

func (s *Store) InsertAccount(ctx context.Context, acc *model.Account) error {
	doc, err := encodeDocument(acc)
	if err != nil {
		return err
	}
	row := model.AccountDocument{
		AccountName:  acc.AccountName,
		MemberNumber: acc.MemberNumber,
		Document:     datatypes.JSON(doc),
	}
	if err := s.tx(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return model.ErrDuplicate
		}
		return fmt.Errorf("sqlstore insert account: %w", err)
	}
	return nil
}

// UpdateAccount merges set into the stored document inside a transaction.
func (s *Store) UpdateAccount(ctx context.Context, accountName string, set map[string]any) error {
	if len(set) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx = tx.Table(s.table)
		row, err := s.findRow(tx, accountName)
		if errors.Is(err, model.ErrNotFound) {
			// Matches update_one semantics: no document, nothing to do.
			return nil
		}
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := json.Unmarshal(row.Document, &doc); err != nil {
			return err
		}
		if doc == nil {
			doc = make(map[string]any, len(set))
		}
		for k, v := range set {
			doc[k] = v
		}
		merged, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		updates := map[string]any{"document": datatypes.JSON(merged)}
		if name, ok := set["AccountName"].(string); ok {
			updates["account_name"] = name
		}
		return tx.Where("id = ?", row.ID).Updates(updates).Error
	})
	if err != nil {
		return fmt.Errorf("sqlstore update account: %w", err)
	}
	return nil
}

func (s *Store) MaxMemberNumber(ctx context.Context) (uint32, bool, error) {
	var row model.AccountDocument
	err := s.tx(ctx).Select("member_number").Order("member_number DESC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlstore max member number: %w", err)
	}
	return row.MemberNumber, true, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func encodeDocument(acc *model.Account) ([]byte, error) {
	// ID is session state and never stored.
	c := *acc
	c.ID = ""
	doc, err := json.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("sqlstore encode account: %w", err)
	}
	return doc, nil
}
