package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// TokenRecord is the persisted result of the authorization flow. It keeps the
// application credentials next to the token so a refresh can happen without
// any further configuration.
type TokenRecord struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Token converts the record to an oauth2 token.
func (r *TokenRecord) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Expiry:       r.Expiry,
	}
}

// Update copies tok into the record. The stored refresh token is kept when
// tok carries none.
func (r *TokenRecord) Update(tok *oauth2.Token) {
	r.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		r.RefreshToken = tok.RefreshToken
	}
	if tok.TokenType != "" {
		r.TokenType = tok.TokenType
	}
	if s, ok := tok.Extra("scope").(string); ok && s != "" {
		r.Scope = s
	}
	r.Expiry = tok.Expiry
}

// Store persists a single token record.
type Store interface {
	// Load returns ErrNotAuthorized when no record has been saved yet.
	Load(ctx context.Context) (*TokenRecord, error)
	Save(ctx context.Context, rec *TokenRecord) error
}

// FileStore keeps the token record as JSON in a file readable only by the
// current user.
type FileStore struct {
	Path string
}

var _ Store = (*FileStore)(nil)

// TokenFileName is the file name used inside the credentials directory.
const TokenFileName = "token.json"

// NewFileStore returns a store writing to TokenFileName inside dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Path: filepath.Join(dir, TokenFileName)}
}

// Load reads and decodes the token file.
func (s *FileStore) Load(ctx context.Context) (*TokenRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotAuthorized
		}
		return nil, fmt.Errorf("read token: %w", err)
	}
	var rec TokenRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", s.Path, err)
	}
	return &rec, nil
}

// Save writes the record atomically by renaming a temporary file over the
// previous one.
func (s *FileStore) Save(ctx context.Context, rec *TokenRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)
	if _, err := f.Write(b); err != nil {
		f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
