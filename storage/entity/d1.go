package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	cloudflare "github.com/cloudflare/cloudflare-go/v6"
	cfd1 "github.com/cloudflare/cloudflare-go/v6/d1"
	"github.com/cloudflare/cloudflare-go/v6/option"

	"github.com/indieinfra/simmer/config"
)

// D1Store implements Store on Cloudflare D1 via the HTTP API. It mirrors the
// schema of SQLStore to keep parity across backends.
type D1Store struct {
	cfg    *config.D1EntityStrategy
	client *cloudflare.Client
	table  string
}

// NewD1Store builds a store and ensures the schema exists.
func NewD1Store(cfg *config.D1EntityStrategy) (*D1Store, error) {
	return newD1StoreWithClient(cfg, nil)
}

// newD1StoreWithClient creates a D1 store with a custom HTTP client.
// This is used for testing to inject a mock HTTP client.
func newD1StoreWithClient(cfg *config.D1EntityStrategy, httpClient *http.Client) (*D1Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("entity d1 config is nil")
	}

	store := &D1Store{
		cfg:    cfg,
		client: buildD1Client(cfg, httpClient),
		table:  deriveTableName(cfg.TablePrefix),
	}

	if err := store.initSchema(context.Background()); err != nil {
		return nil, err
	}

	return store, nil
}

// deriveTableName constructs the entity table name from the configured prefix.
// If no prefix is set, defaults to "simmer"; empty string produces "entities".
func deriveTableName(prefix *string) string {
	p := "simmer"
	if prefix != nil {
		p = *prefix
	}

	if p == "" {
		return "entities"
	}

	return p + "_entities"
}

func buildD1Client(cfg *config.D1EntityStrategy, httpClient *http.Client) *cloudflare.Client {
	opts := []option.RequestOption{option.WithAPIToken(strings.TrimSpace(cfg.APIToken))}

	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	if base := strings.TrimSpace(cfg.Endpoint); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}

	return cloudflare.NewClient(opts...)
}

// initSchema ensures the entity table exists. This also serves as a health
// check, validating connectivity and authentication.
func (ds *D1Store) initSchema(ctx context.Context) error {
	_, err := ds.executeQuery(ctx, ds.schemaQuery(), nil)
	if err != nil {
		return fmt.Errorf("d1 initialization failed (check account_id, database_id, and api_token): %w", err)
	}
	return nil
}

func (ds *D1Store) schemaQuery() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
kind TEXT NOT NULL,
id TEXT NOT NULL,
owner TEXT NOT NULL,
media TEXT NOT NULL,
doc TEXT NOT NULL,
created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
PRIMARY KEY (kind, id)
)`, ds.table)
}

func (ds *D1Store) Get(ctx context.Context, ref Ref) (*Entity, error) {
	query := fmt.Sprintf("SELECT owner, media, doc, created_at, updated_at FROM %s WHERE kind = ? AND id = ? LIMIT 1", ds.table)
	rows, err := ds.executeQuery(ctx, query, []any{string(ref.Kind), ref.ID})
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	row := rows[0]

	owner, _ := row["owner"].(string)

	rawMedia, ok := row["media"].(string)
	if !ok {
		return nil, fmt.Errorf("media column missing or not a string")
	}
	media := []string{}
	if err := json.Unmarshal([]byte(rawMedia), &media); err != nil {
		return nil, fmt.Errorf("corrupt media column for %s: %w", ref, err)
	}

	rawDoc, ok := row["doc"].(string)
	if !ok {
		return nil, fmt.Errorf("doc column missing or not a string")
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
		CreatedAt: parseD1Time(row["created_at"]),
		UpdatedAt: parseD1Time(row["updated_at"]),
	}, nil
}

func (ds *D1Store) Create(ctx context.Context, e *Entity) error {
	exists, err := ds.Exists(ctx, Ref{Kind: e.Kind, ID: e.ID})
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

	query := fmt.Sprintf(
		"INSERT INTO %s (kind, id, owner, media, doc, created_at, updated_at) VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)",
		ds.table,
	)
	_, err = ds.executeQuery(ctx, query, []any{string(e.Kind), e.ID, e.Owner, string(rawMedia), string(rawDoc)})
	return err
}

func (ds *D1Store) Update(ctx context.Context, ref Ref, fields map[string]any) error {
	current, err := ds.Get(ctx, ref)
	if err != nil {
		return err
	}

	for key, value := range fields {
		current.Fields[key] = value
	}

	payload, err := json.Marshal(current.Fields)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE %s SET doc = ?, updated_at = CURRENT_TIMESTAMP WHERE kind = ? AND id = ?", ds.table)
	_, err = ds.executeQuery(ctx, query, []any{string(payload), string(ref.Kind), ref.ID})
	return err
}

func (ds *D1Store) Delete(ctx context.Context, ref Ref) error {
	exists, err := ds.Exists(ctx, ref)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE kind = ? AND id = ?", ds.table)
	_, err = ds.executeQuery(ctx, query, []any{string(ref.Kind), ref.ID})
	return err
}

func (ds *D1Store) SetMediaList(ctx context.Context, ref Ref, filenames []string) error {
	exists, err := ds.Exists(ctx, ref)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	if filenames == nil {
		filenames = []string{}
	}

	payload, err := json.Marshal(filenames)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE %s SET media = ?, updated_at = CURRENT_TIMESTAMP WHERE kind = ? AND id = ?", ds.table)
	_, err = ds.executeQuery(ctx, query, []any{string(payload), string(ref.Kind), ref.ID})
	return err
}

func (ds *D1Store) Owner(ctx context.Context, ref Ref) (string, error) {
	query := fmt.Sprintf("SELECT owner FROM %s WHERE kind = ? AND id = ? LIMIT 1", ds.table)
	rows, err := ds.executeQuery(ctx, query, []any{string(ref.Kind), ref.ID})
	if err != nil {
		return "", err
	}

	if len(rows) == 0 {
		return "", ErrNotFound
	}

	owner, ok := rows[0]["owner"].(string)
	if !ok {
		return "", fmt.Errorf("owner column missing or not a string")
	}

	return owner, nil
}

func (ds *D1Store) Exists(ctx context.Context, ref Ref) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE kind = ? AND id = ? LIMIT 1", ds.table)
	rows, err := ds.executeQuery(ctx, query, []any{string(ref.Kind), ref.ID})
	if err != nil {
		return false, err
	}

	return len(rows) > 0, nil
}

func (ds *D1Store) Close() error {
	return nil
}

// executeQuery sends a SQL query to the D1 database and returns the result
// rows. Returns nil rows (no error) when the query succeeds but produces no
// results.
func (ds *D1Store) executeQuery(ctx context.Context, sql string, params []any) ([]map[string]any, error) {
	body := cfd1.DatabaseQueryParamsBodyD1SingleQuery{Sql: cloudflare.F(sql)}
	if len(params) > 0 {
		body.Params = cloudflare.F(convertParams(params))
	}

	resp, err := ds.client.D1.Database.Query(ctx, ds.cfg.DatabaseID, cfd1.DatabaseQueryParams{
		AccountID: cloudflare.F(strings.TrimSpace(ds.cfg.AccountID)),
		Body:      body,
	})
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Result) == 0 {
		return nil, nil
	}

	result := resp.Result[0]
	if !result.Success {
		return nil, fmt.Errorf("d1 query execution failed")
	}

	rows := make([]map[string]any, 0, len(result.Results))
	for _, r := range result.Results {
		m, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected row type %T", r)
		}
		rows = append(rows, m)
	}

	return rows, nil
}

// convertParams converts query parameters to D1's string-based parameter
// format. Booleans are converted to "1" (true) or "0" (false); all other
// types use Sprint.
func convertParams(params []any) []string {
	if len(params) == 0 {
		return nil
	}

	out := make([]string, 0, len(params))
	for _, p := range params {
		switch v := p.(type) {
		case bool:
			if v {
				out = append(out, "1")
			} else {
				out = append(out, "0")
			}
		default:
			out = append(out, fmt.Sprint(p))
		}
	}

	return out
}

// parseD1Time decodes a timestamp column returned by D1. Values arrive as
// strings in SQLite's default format; unparseable values yield a zero time.
func parseD1Time(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	return time.Time{}
}
