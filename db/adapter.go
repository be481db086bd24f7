package db

import (
	"context"
	"fmt"

	"github.com/kasuganosora/bondageclub/server/config"
	dbmongo "github.com/kasuganosora/bondageclub/server/db/mongo"
	dbmysql "github.com/kasuganosora/bondageclub/server/db/mysql"
	dbsqlite "github.com/kasuganosora/bondageclub/server/db/sqlite"
	"github.com/kasuganosora/bondageclub/server/db/sqlstore"
	"github.com/kasuganosora/bondageclub/server/model"
	"go.uber.org/zap"
)

const (
	ModeMongo  = "mongo"
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// AccountStore is the account collection. Names are matched exactly; callers
// uppercase them first.
type AccountStore interface {
	// FindAccount returns model.ErrNotFound when no document matches.
	FindAccount(ctx context.Context, accountName string) (*model.Account, error)
	// HasEmail reports whether the document carries a non-empty mail field.
	HasEmail(ctx context.Context, accountName string) (bool, error)
	// InsertAccount returns model.ErrDuplicate on a unique key conflict.
	InsertAccount(ctx context.Context, acc *model.Account) error
	// UpdateAccount applies set (PascalCase key → value) to one document.
	UpdateAccount(ctx context.Context, accountName string, set map[string]any) error
	// MaxMemberNumber returns the highest stored member number, ok=false when empty.
	MaxMemberNumber(ctx context.Context) (n uint32, ok bool, err error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

var (
	_ AccountStore = (*dbmongo.Store)(nil)
	_ AccountStore = (*sqlstore.Store)(nil)
)

// Open connects the account store for the configured mode.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (AccountStore, error) {
	switch cfg.Mode {
	case ModeMongo:
		return dbmongo.Open(ctx, dbmongo.Options{
			URI:            cfg.URI,
			Database:       cfg.Name,
			Collection:     cfg.Collection,
			MinPool:        cfg.MinPool,
			MaxPool:        cfg.MaxPool,
			ConnectTimeout: cfg.ConnectTimeout,
		}, logger)
	case ModeSQLite:
		gdb, err := dbsqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return sqlstore.New(gdb, cfg.Collection)
	case ModeMySQL:
		gdb, err := dbmysql.Open(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife)
		if err != nil {
			return nil, err
		}
		return sqlstore.New(gdb, cfg.Collection)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
