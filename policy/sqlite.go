package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/memguild/memguild/core"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a policy database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory_policies (
		tenant_id         TEXT PRIMARY KEY,
		short_term_ttl_s  INTEGER NOT NULL,
		long_term_enabled INTEGER NOT NULL DEFAULT 1,
		max_memory_size   INTEGER NOT NULL DEFAULT 0,
		retention_days    INTEGER NOT NULL DEFAULT 90,
		access_rules      TEXT,
		updated_at        TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, tenantID string) (*core.MemoryPolicy, error) {
	var (
		p         core.MemoryPolicy
		ttlS      int64
		enabled   int
		rulesJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, short_term_ttl_s, long_term_enabled, max_memory_size, retention_days, access_rules
		 FROM memory_policies WHERE tenant_id = ?`, tenantID).
		Scan(&p.TenantID, &ttlS, &enabled, &p.MaxMemorySize, &p.RetentionDays, &rulesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("policy: get %q: %w", tenantID, err)
	}
	p.ShortTermTTL = time.Duration(ttlS) * time.Second
	p.LongTermEnabled = enabled != 0
	if rulesJSON.Valid && rulesJSON.String != "" {
		if err := json.Unmarshal([]byte(rulesJSON.String), &p.AccessRules); err != nil {
			return nil, fmt.Errorf("policy: decode access rules for %q: %w", tenantID, err)
		}
	}
	return &p, nil
}

func (s *SQLiteStore) Put(ctx context.Context, p *core.MemoryPolicy) error {
	var rulesJSON *string
	if len(p.AccessRules) > 0 {
		b, err := json.Marshal(p.AccessRules)
		if err != nil {
			return fmt.Errorf("policy: encode access rules: %w", err)
		}
		str := string(b)
		rulesJSON = &str
	}
	enabled := 0
	if p.LongTermEnabled {
		enabled = 1
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_policies (tenant_id, short_term_ttl_s, long_term_enabled, max_memory_size, retention_days, access_rules, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			short_term_ttl_s  = excluded.short_term_ttl_s,
			long_term_enabled = excluded.long_term_enabled,
			max_memory_size   = excluded.max_memory_size,
			retention_days    = excluded.retention_days,
			access_rules      = excluded.access_rules,
			updated_at        = excluded.updated_at
	`, p.TenantID, int64(p.ShortTermTTL/time.Second), enabled, p.MaxMemorySize, p.RetentionDays, rulesJSON, now)
	if err != nil {
		return fmt.Errorf("policy: put %q: %w", p.TenantID, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, tenantID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_policies WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return fmt.Errorf("policy: delete %q: %w", tenantID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]core.MemoryPolicy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id, short_term_ttl_s, long_term_enabled, max_memory_size, retention_days, access_rules
		 FROM memory_policies ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("policy: list: %w", err)
	}
	defer rows.Close()

	var policies []core.MemoryPolicy
	for rows.Next() {
		var (
			p         core.MemoryPolicy
			ttlS      int64
			enabled   int
			rulesJSON sql.NullString
		)
		if err := rows.Scan(&p.TenantID, &ttlS, &enabled, &p.MaxMemorySize, &p.RetentionDays, &rulesJSON); err != nil {
			return nil, err
		}
		p.ShortTermTTL = time.Duration(ttlS) * time.Second
		p.LongTermEnabled = enabled != 0
		if rulesJSON.Valid && rulesJSON.String != "" {
			json.Unmarshal([]byte(rulesJSON.String), &p.AccessRules)
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
