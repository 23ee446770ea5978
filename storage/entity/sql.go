package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/indieinfra/simmer/config"
)

type placeholderStyle int

const (
	placeholderQuestion placeholderStyle = iota
	placeholderDollar
)

// SQLStore persists entity records in MySQL or PostgreSQL. The driver is
// selected by config; query placeholders switch with it.
type SQLStore struct {
	cfg         *config.SQLEntityStrategy
	db          *sql.DB
	table       string
	placeholder placeholderStyle
}

func NewSQLStore(cfg *config.SQLEntityStrategy) (*SQLStore, error) {
	store, err := newSQLStoreWithDB(cfg, nil)
	if err != nil {
		return nil, err
	}

	driverName, err := resolveSQLDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, err
	}

	store.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// newSQLStoreWithDB wires a caller-provided handle, used by tests to inject
// a mocked database.
func newSQLStoreWithDB(cfg *config.SQLEntityStrategy, db *sql.DB) (*SQLStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("entity sql config is nil")
	}

	prefix := "simmer"
	if cfg.TablePrefix != nil {
		prefix = *cfg.TablePrefix
	}

	table := "entities"
	if prefix != "" {
		table = prefix + "_entities"
	}

	placeholder, err := detectPlaceholderStyle(cfg.Driver)
	if err != nil {
		return nil, err
	}

	return &SQLStore{
		cfg:         cfg,
		db:          db,
		table:       table,
		placeholder: placeholder,
	}, nil
}

func detectPlaceholderStyle(driver string) (placeholderStyle, error) {
	driverName, err := resolveSQLDriverName(driver)
	if err != nil {
		return placeholderQuestion, err
	}

	if driverName == "pgx" {
		return placeholderDollar, nil
	}

	return placeholderQuestion, nil
}

func resolveSQLDriverName(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "postgres":
		return "pgx", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported sql driver %q", driver)
	}
}

func (ss *SQLStore) initSchema(ctx context.Context) error {
	_, err := ss.db.ExecContext(ctx, ss.schemaQuery())
	return err
}

func (ss *SQLStore) schemaQuery() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
kind VARCHAR(32) NOT NULL,
id VARCHAR(255) NOT NULL,
owner VARCHAR(255) NOT NULL,
media TEXT NOT NULL,
doc TEXT NOT NULL,
created_at TIMESTAMP NOT NULL,
updated_at TIMESTAMP NOT NULL,
PRIMARY KEY (kind, id)
)`, ss.table)
}

func (ss *SQLStore) Get(ctx context.Context, ref Ref) (*Entity, error) {
	row := ss.db.QueryRowContext(ctx, ss.selectQuery(), string(ref.Kind), ref.ID)

	var (
		owner     string
		rawMedia  string
		rawDoc    string
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&owner, &rawMedia, &rawDoc, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	media := []string{}
	if err := json.Unmarshal([]byte(rawMedia), &media); err != nil {
		return nil, fmt.Errorf("corrupt media column for %s: %w", ref, err)
	}

	fields := map[string]any{}
	if err := json.Unmarshal([]byte(rawDoc), &fields); err != nil {
		return nil, fmt.Errorf("corrupt doc column for %s: %w", ref, err)
	}

	return &Entity{
		Kind:      ref.Kind,
		ID:        ref.ID,
		Owner:     owner,
		Media:     media,
		Fields:    fields,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func (ss *SQLStore) Create(ctx context.Context, e *Entity) error {
	exists, err := ss.Exists(ctx, Ref{Kind: e.Kind, ID: e.ID})
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyExists
	}

	media := e.Media
	if media == nil {
		media = []string{}
	}
	rawMedia, err := json.Marshal(media)
	if err != nil {
		return err
	}

	fields := e.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	rawDoc, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	_, err = ss.db.ExecContext(ctx, ss.insertQuery(),
		string(e.Kind), e.ID, e.Owner, string(rawMedia), string(rawDoc))
	return err
}

func (ss *SQLStore) Update(ctx context.Context, ref Ref, fields map[string]any) error {
	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		// Rollback is safe to call after Commit; it returns sql.ErrTxDone
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Printf("unexpected error during transaction rollback in Update: %v", rbErr)
		}
	}()

	row := tx.QueryRowContext(ctx, ss.selectDocQuery(), string(ref.Kind), ref.ID)

	var rawDoc string
	if err := row.Scan(&rawDoc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	current := map[string]any{}
	if err := json.Unmarshal([]byte(rawDoc), &current); err != nil {
		return fmt.Errorf("corrupt doc column for %s: %w", ref, err)
	}

	for key, value := range fields {
		current[key] = value
	}

	payload, err := json.Marshal(current)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, ss.updateDocQuery(), string(payload), string(ref.Kind), ref.ID); err != nil {
		return err
	}

	return tx.Commit()
}

func (ss *SQLStore) Delete(ctx context.Context, ref Ref) error {
	res, err := ss.db.ExecContext(ctx, ss.deleteQuery(), string(ref.Kind), ref.ID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (ss *SQLStore) SetMediaList(ctx context.Context, ref Ref, filenames []string) error {
	if filenames == nil {
		filenames = []string{}
	}

	payload, err := json.Marshal(filenames)
	if err != nil {
		return err
	}

	res, err := ss.db.ExecContext(ctx, ss.updateMediaQuery(), string(payload), string(ref.Kind), ref.ID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (ss *SQLStore) Owner(ctx context.Context, ref Ref) (string, error) {
	row := ss.db.QueryRowContext(ctx, ss.selectOwnerQuery(), string(ref.Kind), ref.ID)

	var owner string
	if err := row.Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}

	return owner, nil
}

func (ss *SQLStore) Exists(ctx context.Context, ref Ref) (bool, error) {
	row := ss.db.QueryRowContext(ctx, ss.existsQuery(), string(ref.Kind), ref.ID)

	var found int
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (ss *SQLStore) Close() error {
	if ss.db == nil {
		return nil
	}
	return ss.db.Close()
}

func (ss *SQLStore) insertQuery() string {
	return fmt.Sprintf(
		"INSERT INTO %s (kind, id, owner, media, doc, created_at, updated_at) VALUES (%s, %s, %s, %s, %s, NOW(), NOW())",
		ss.table,
		ss.placeholderFor(1),
		ss.placeholderFor(2),
		ss.placeholderFor(3),
		ss.placeholderFor(4),
		ss.placeholderFor(5),
	)
}

func (ss *SQLStore) selectQuery() string {
	return fmt.Sprintf(
		"SELECT owner, media, doc, created_at, updated_at FROM %s WHERE kind = %s AND id = %s",
		ss.table, ss.placeholderFor(1), ss.placeholderFor(2),
	)
}

func (ss *SQLStore) selectDocQuery() string {
	return fmt.Sprintf("SELECT doc FROM %s WHERE kind = %s AND id = %s",
		ss.table, ss.placeholderFor(1), ss.placeholderFor(2))
}

func (ss *SQLStore) selectOwnerQuery() string {
	return fmt.Sprintf("SELECT owner FROM %s WHERE kind = %s AND id = %s",
		ss.table, ss.placeholderFor(1), ss.placeholderFor(2))
}

func (ss *SQLStore) updateDocQuery() string {
	return fmt.Sprintf("UPDATE %s SET doc = %s, updated_at = NOW() WHERE kind = %s AND id = %s",
		ss.table, ss.placeholderFor(1), ss.placeholderFor(2), ss.placeholderFor(3))
}

func (ss *SQLStore) updateMediaQuery() string {
	return fmt.Sprintf("UPDATE %s SET media = %s, updated_at = NOW() WHERE kind = %s AND id = %s",
		ss.table, ss.placeholderFor(1), ss.placeholderFor(2), ss.placeholderFor(3))
}

func (ss *SQLStore) deleteQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE kind = %s AND id = %s",
		ss.table, ss.placeholderFor(1), ss.placeholderFor(2))
}

func (ss *SQLStore) existsQuery() string {
	return fmt.Sprintf("SELECT 1 FROM %s WHERE kind = %s AND id = %s",
		ss.table, ss.placeholderFor(1), ss.placeholderFor(2))
}

func (ss *SQLStore) placeholderFor(index int) string {
	if ss.placeholder == placeholderDollar {
		return fmt.Sprintf("$%d", index)
	}

	return "?"
}
