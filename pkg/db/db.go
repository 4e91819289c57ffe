// Package db provides the sqlite persistence layer of the skill. It stores
// OAuth application credentials and tokens, so it can stand in for the token
// file, and a history of resolved phrases. Callers open a single DB with New
// and reuse it for all operations.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/oauth2"

	"Spotify-Skill-Go/pkg/auth"
)

// DB wraps a sql.DB connection.
type DB struct {
	*sql.DB
}

// New opens the SQLite database located at path, creating the file and the
// schema when missing.
func New(path string) (*DB, error) {
	d, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS applications (token_id TEXT PRIMARY KEY, client_id TEXT NOT NULL, client_secret TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS tokens (token_id TEXT PRIMARY KEY, token TEXT NOT NULL, scope TEXT NOT NULL DEFAULT '')`,
		`CREATE TABLE IF NOT EXISTS resolutions (id INTEGER PRIMARY KEY AUTOINCREMENT, phrase TEXT, kind TEXT, uri TEXT, confidence INTEGER, resolved_at TIMESTAMP)`,
		`CREATE INDEX IF NOT EXISTS idx_resolutions_at ON resolutions(resolved_at)`,
	}
	// Errors here likely mean the database file is not writable.
	for _, s := range stmts {
		if _, err := d.Exec(s); err != nil {
			d.Close()
			return nil, fmt.Errorf("init db: %w", err)
		}
	}
	if err := addScopeColumn(d); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate tokens: %w", err)
	}
	return &DB{d}, nil
}

// addScopeColumn upgrades token tables created without the scope column.
func addScopeColumn(d *sql.DB) error {
	var n int
	if err := d.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('tokens') WHERE name='scope'`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := d.Exec(`ALTER TABLE tokens ADD COLUMN scope TEXT NOT NULL DEFAULT ''`)
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveToken(ctx context.Context, ex execer, tokenID string, token *oauth2.Token, scope string) error {
	b, err := json.Marshal(token)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO tokens(token_id, token, scope) VALUES(?, ?, ?) ON CONFLICT(token_id) DO UPDATE SET token=excluded.token, scope=excluded.scope`, tokenID, string(b), scope)
	return err
}

func saveApplication(ctx context.Context, ex execer, tokenID, clientID, clientSecret string) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO applications(token_id, client_id, client_secret) VALUES(?, ?, ?) ON CONFLICT(token_id) DO UPDATE SET client_id=excluded.client_id, client_secret=excluded.client_secret`, tokenID, clientID, clientSecret)
	return err
}

// SaveToken persists the OAuth token under tokenID, replacing any existing
// value and scope.
func (db *DB) SaveToken(ctx context.Context, tokenID string, token *oauth2.Token, scope string) error {
	return saveToken(ctx, db, tokenID, token, scope)
}

// GetToken retrieves the OAuth token stored under tokenID. sql.ErrNoRows is
// returned when none exists.
func (db *DB) GetToken(ctx context.Context, tokenID string) (*oauth2.Token, error) {
	tok, _, err := db.getToken(ctx, tokenID)
	return tok, err
}

func (db *DB) getToken(ctx context.Context, tokenID string) (*oauth2.Token, string, error) {
	var data, scope string
	if err := db.QueryRowContext(ctx, `SELECT token, scope FROM tokens WHERE token_id=?`, tokenID).Scan(&data, &scope); err != nil {
		return nil, "", err
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(data), &tok); err != nil {
		return nil, "", err
	}
	return &tok, scope, nil
}

// SaveApplication stores the client credentials used to obtain tokenID.
func (db *DB) SaveApplication(ctx context.Context, tokenID, clientID, clientSecret string) error {
	return saveApplication(ctx, db, tokenID, clientID, clientSecret)
}

// GetApplication returns the client credentials stored for tokenID.
func (db *DB) GetApplication(ctx context.Context, tokenID string) (clientID, clientSecret string, err error) {
	err = db.QueryRowContext(ctx, `SELECT client_id, client_secret FROM applications WHERE token_id=?`, tokenID).Scan(&clientID, &clientSecret)
	return clientID, clientSecret, err
}

// TokenStore is an auth.Store backed by the applications and tokens tables.
type TokenStore struct {
	db *DB
	id string
}

var _ auth.Store = (*TokenStore)(nil)

// TokenStore returns the store for the token named id.
func (db *DB) TokenStore(id string) *TokenStore {
	return &TokenStore{db: db, id: id}
}

// Load assembles the record from both tables.
func (s *TokenStore) Load(ctx context.Context) (*auth.TokenRecord, error) {
	id, secret, err := s.db.GetApplication(ctx, s.id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotAuthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	tok, scope, err := s.db.getToken(ctx, s.id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotAuthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	rec := &auth.TokenRecord{ClientID: id, ClientSecret: secret, Scope: scope}
	rec.Update(tok)
	return rec, nil
}

// Save writes the credentials and the token in one transaction.
func (s *TokenStore) Save(ctx context.Context, rec *auth.TokenRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := saveApplication(ctx, tx, s.id, rec.ClientID, rec.ClientSecret); err != nil {
		return fmt.Errorf("save application: %w", err)
	}
	if err := saveToken(ctx, tx, s.id, rec.Token(), rec.Scope); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return tx.Commit()
}

// RecordResolution appends a resolved phrase to the history.
func (db *DB) RecordResolution(ctx context.Context, phrase, kind, uri string, confidence int) error {
	_, err := db.ExecContext(ctx, `INSERT INTO resolutions(phrase, kind, uri, confidence, resolved_at) VALUES(?,?,?,?,?)`, phrase, kind, uri, confidence, time.Now().UTC())
	return err
}

// Resolution is one row of the history.
type Resolution struct {
	Phrase     string    `json:"phrase"`
	Kind       string    `json:"kind"`
	URI        string    `json:"uri"`
	Confidence int       `json:"confidence"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// RecentResolutions returns the last limit resolutions, newest first.
func (db *DB) RecentResolutions(ctx context.Context, limit int) ([]Resolution, error) {
	rows, err := db.QueryContext(ctx, `SELECT phrase, kind, uri, confidence, resolved_at FROM resolutions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Resolution
	for rows.Next() {
		var r Resolution
		if err := rows.Scan(&r.Phrase, &r.Kind, &r.URI, &r.Confidence, &r.ResolvedAt); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// URICount represents how many times a URI was resolved.
type URICount struct {
	URI   string `json:"uri"`
	Count int    `json:"count"`
}

// TopURIsSince returns the most resolved URIs since the given time. Continue
// requests carry no URI and are left out.
func (db *DB) TopURIsSince(ctx context.Context, since time.Time) ([]URICount, error) {
	rows, err := db.QueryContext(ctx, `SELECT uri, COUNT(*) c FROM resolutions WHERE resolved_at>=? AND uri<>'' GROUP BY uri ORDER BY c DESC, uri`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []URICount
	for rows.Next() {
		var uc URICount
		if err := rows.Scan(&uc.URI, &uc.Count); err != nil {
			return nil, err
		}
		res = append(res, uc)
	}
	return res, rows.Err()
}
