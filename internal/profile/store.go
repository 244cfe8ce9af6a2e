// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package profile persists per-caller condition profiles in SQLite.
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/trialscout/pkg/types"
)

// ErrNotFound is returned when no profile exists for a caller.
var ErrNotFound = errors.New("profile not found")

// Store manages the profile SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the database at cfg.Path, creating its
// directory and schema when missing. The path ":memory:" opens a private
// in-memory database.
func NewStore(cfg types.ProfileConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = types.DefaultConfig().Profile.Path
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating profile directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			caller_id TEXT PRIMARY KEY,
			conditions TEXT NOT NULL,
			city TEXT,
			country TEXT,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_updated_at ON profiles(updated_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Get returns the profile for callerID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, callerID string) (types.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT caller_id, conditions, city, country, updated_at FROM profiles WHERE caller_id = ?`,
		callerID,
	)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Profile{}, fmt.Errorf("%w: %s", ErrNotFound, callerID)
	}
	if err != nil {
		return types.Profile{}, fmt.Errorf("reading profile %s: %w", callerID, err)
	}
	return p, nil
}

// Put creates or replaces a profile. Conditions are trimmed and
// deduplicated case-insensitively; UpdatedAt is set to now.
func (s *Store) Put(ctx context.Context, p types.Profile) (types.Profile, error) {
	p.CallerID = strings.TrimSpace(p.CallerID)
	if p.CallerID == "" {
		return types.Profile{}, &types.ConfigurationError{Reason: "profile has no caller id"}
	}
	p.Conditions = normalizeConditions(p.Conditions)
	if p.Location != nil && p.Location.IsZero() {
		p.Location = nil
	}
	p.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	condJSON, err := json.Marshal(p.Conditions)
	if err != nil {
		return types.Profile{}, fmt.Errorf("marshaling conditions: %w", err)
	}
	var city, country string
	if p.Location != nil {
		city, country = strings.TrimSpace(p.Location.City), strings.TrimSpace(p.Location.Country)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (caller_id, conditions, city, country, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(caller_id) DO UPDATE SET
			conditions=excluded.conditions, city=excluded.city,
			country=excluded.country, updated_at=excluded.updated_at`,
		p.CallerID, string(condJSON), city, country, p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return types.Profile{}, fmt.Errorf("upserting profile %s: %w", p.CallerID, err)
	}
	return p, nil
}

// Delete removes a profile. Deleting a missing profile returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, callerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE caller_id = ?`, callerID)
	if err != nil {
		return fmt.Errorf("deleting profile %s: %w", callerID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, callerID)
	}
	return nil
}

// List returns every profile ordered by caller id.
func (s *Store) List(ctx context.Context) ([]types.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT caller_id, conditions, city, country, updated_at FROM profiles ORDER BY caller_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	var out []types.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ExportYAML writes every profile to w as a YAML list.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer) error {
	profiles, err := s.List(ctx)
	if err != nil {
		return err
	}
	if profiles == nil {
		profiles = []types.Profile{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(profiles); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (types.Profile, error) {
	var (
		p         types.Profile
		condJSON  string
		city      sql.NullString
		country   sql.NullString
		updatedAt string
	)
	if err := row.Scan(&p.CallerID, &condJSON, &city, &country, &updatedAt); err != nil {
		return types.Profile{}, err
	}
	if err := json.Unmarshal([]byte(condJSON), &p.Conditions); err != nil {
		return types.Profile{}, fmt.Errorf("decoding conditions: %w", err)
	}
	if p.Conditions == nil {
		p.Conditions = []string{}
	}
	if loc := (types.Location{City: city.String, Country: country.String}); !loc.IsZero() {
		p.Location = &loc
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		p.UpdatedAt = t
	}
	return p, nil
}

func normalizeConditions(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := []string{}
	for _, c := range in {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
