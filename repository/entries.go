package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// EntryModel is the Bun model for one store slot.
type EntryModel struct {
	bun.BaseModel `bun:"table:auth_entries"`

	Namespace string    `bun:"namespace,pk"`
	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// EntryStore implements auth.TokenStore on top of a SQL table. Rows are
// scoped by namespace so one database can hold sessions for several portals.
type EntryStore struct {
	db        *bun.DB
	namespace string
	now       func() time.Time
}

var _ auth.TokenStore = (*EntryStore)(nil)

// NewEntryStore returns a store over db. Call CreateSchema before first use.
func NewEntryStore(db *bun.DB, namespace string) *EntryStore {
	if namespace == "" {
		namespace = "default"
	}
	return &EntryStore{db: db, namespace: namespace, now: time.Now}
}

// OpenSQLite opens (creating if needed) a SQLite database at dsn and
// returns a ready store. The returned func closes the database.
func OpenSQLite(ctx context.Context, dsn, namespace string) (*EntryStore, func() error, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	store := NewEntryStore(db, namespace)
	if err := store.CreateSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}

// CreateSchema creates the auth_entries table when missing.
func (s *EntryStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*EntryModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create auth_entries: %w", err)
	}
	return nil
}

// Get implements auth.TokenStore.
func (s *EntryStore) Get(ctx context.Context, key string) (string, bool, error) {
	var model EntryModel
	err := s.db.NewSelect().
		Model(&model).
		Where("namespace = ? AND key = ?", s.namespace, key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return model.Value, true, nil
}

// Set implements auth.TokenStore.
func (s *EntryStore) Set(ctx context.Context, key, value string) error {
	model := &EntryModel{
		Namespace: s.namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: s.now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (namespace, key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// Remove implements auth.TokenStore.
func (s *EntryStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*EntryModel)(nil)).
		Where("namespace = ? AND key = ?", s.namespace, key).
		Exec(ctx)
	return err
}

// Namespace returns the namespace rows are scoped to.
func (s *EntryStore) Namespace() string {
	return s.namespace
}
