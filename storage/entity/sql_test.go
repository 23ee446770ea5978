package entity

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/indieinfra/simmer/config"
)

func newSQLTestStore(t *testing.T, driverName string, prefix *string) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}

	cfg := &config.SQLEntityStrategy{Driver: driverName, DSN: "ignored", TablePrefix: prefix}
	store, err := newSQLStoreWithDB(cfg, db)
	if err != nil {
		t.Fatalf("store setup: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(store.schemaQuery())).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.initSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	return store, mock
}

type jsonContains string

func (m jsonContains) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && strings.Contains(s, string(m))
}

func TestSQLStore_CreateAndGet_PostgresPlaceholders(t *testing.T) {
	store, mock := newSQLTestStore(t, "postgres", nil)
	ctx := context.Background()

	if !strings.Contains(store.insertQuery(), "$1") {
		t.Fatalf("postgres store should use dollar placeholders: %s", store.insertQuery())
	}

	mock.ExpectQuery(regexp.QuoteMeta(store.existsQuery())).
		WithArgs("recipes", "carbonara").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	mock.ExpectExec(regexp.QuoteMeta(store.insertQuery())).
		WithArgs("recipes", "carbonara", "alice", "[]", jsonContains("\"title\":\"Carbonara\"")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Create(ctx, &Entity{
		Kind:   KindRecipe,
		ID:     "carbonara",
		Owner:  "alice",
		Fields: map[string]any{"title": "Carbonara"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(store.selectQuery())).
		WithArgs("recipes", "carbonara").
		WillReturnRows(sqlmock.NewRows([]string{"owner", "media", "doc", "created_at", "updated_at"}).
			AddRow("alice", `["a.png"]`, `{"title":"Carbonara"}`, now, now))

	got, err := store.Get(ctx, Ref{Kind: KindRecipe, ID: "carbonara"})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if got.Owner != "alice" || len(got.Media) != 1 || got.Media[0] != "a.png" {
		t.Fatalf("unexpected entity: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStore_CreateDuplicate(t *testing.T) {
	store, mock := newSQLTestStore(t, "mysql", nil)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(store.existsQuery())).
		WithArgs("users", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	err := store.Create(ctx, &Entity{Kind: KindUser, ID: "alice", Owner: "alice"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStore_SetMediaList_MySQLPlaceholders(t *testing.T) {
	store, mock := newSQLTestStore(t, "mysql", nil)
	ctx := context.Background()

	if strings.Contains(store.updateMediaQuery(), "$1") {
		t.Fatalf("mysql store should use question placeholders: %s", store.updateMediaQuery())
	}

	mock.ExpectExec(regexp.QuoteMeta(store.updateMediaQuery())).
		WithArgs(`["x.png","y.png"]`, "recipes", "stew").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SetMediaList(ctx, Ref{Kind: KindRecipe, ID: "stew"}, []string{"x.png", "y.png"}); err != nil {
		t.Fatalf("set media failed: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(store.updateMediaQuery())).
		WithArgs(`[]`, "recipes", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetMediaList(ctx, Ref{Kind: KindRecipe, ID: "missing"}, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("set media on missing err = %v, want ErrNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStore_Update(t *testing.T) {
	store, mock := newSQLTestStore(t, "mysql", nil)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(store.selectDocQuery())).
		WithArgs("recipes", "stew").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(`{"title":"old"}`))
	mock.ExpectExec(regexp.QuoteMeta(store.updateDocQuery())).
		WithArgs(jsonContains(`"title":"new"`), "recipes", "stew").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.Update(ctx, Ref{Kind: KindRecipe, ID: "stew"}, map[string]any{"title": "new"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(store.selectDocQuery())).
		WithArgs("recipes", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))
	mock.ExpectRollback()

	err := store.Update(ctx, Ref{Kind: KindRecipe, ID: "missing"}, map[string]any{"title": "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing err = %v, want ErrNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStore_DeleteAndOwner(t *testing.T) {
	store, mock := newSQLTestStore(t, "postgres", nil)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(store.deleteQuery())).
		WithArgs("users", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Delete(ctx, Ref{Kind: KindUser, ID: "alice"}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(store.deleteQuery())).
		WithArgs("users", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Delete(ctx, Ref{Kind: KindUser, ID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing err = %v, want ErrNotFound", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(store.selectOwnerQuery())).
		WithArgs("recipes", "stew").
		WillReturnRows(sqlmock.NewRows([]string{"owner"}).AddRow("bob"))

	owner, err := store.Owner(ctx, Ref{Kind: KindRecipe, ID: "stew"})
	if err != nil || owner != "bob" {
		t.Fatalf("owner = %q, %v; want bob, nil", owner, err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(store.selectOwnerQuery())).
		WithArgs("recipes", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"owner"}))

	if _, err := store.Owner(ctx, Ref{Kind: KindRecipe, ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("owner missing err = %v, want ErrNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLStore_TableNameFromPrefix(t *testing.T) {
	empty := ""
	custom := "kitchen"

	cases := []struct {
		name   string
		prefix *string
		want   string
	}{
		{"default", nil, "simmer_entities"},
		{"empty", &empty, "entities"},
		{"custom", &custom, "kitchen_entities"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := newSQLStoreWithDB(&config.SQLEntityStrategy{Driver: "mysql", DSN: "ignored", TablePrefix: tc.prefix}, nil)
			if err != nil {
				t.Fatalf("store setup: %v", err)
			}
			if store.table != tc.want {
				t.Errorf("table = %q, want %q", store.table, tc.want)
			}
		})
	}
}
