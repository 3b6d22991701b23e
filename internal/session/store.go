// Package session persists each Telegram user's backend credential locally.
// Every backend call site gets its token through here, so the
// missing-credential path lives in exactly one place.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/oauth2"
)

// ErrNoSession means the user has not linked a shop account (or the stored
// credential expired). Callers must treat it as an authorization error, not
// as an empty result.
var ErrNoSession = errors.New("no linked shop session")

// Store keeps telegram user -> credential mappings in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the session database at path.
// ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		telegram_id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT,
		token_type TEXT NOT NULL DEFAULT 'Bearer',
		expiry DATETIME,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return nil, fmt.Errorf("migrate session db: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_customer ON sessions(customer_id)`); err != nil {
		return nil, fmt.Errorf("migrate session db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PingContext reports whether the database is reachable, for readiness checks.
func (s *Store) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Put stores (or replaces) a user's credential.
func (s *Store) Put(ctx context.Context, telegramID, customerID int64, tok *oauth2.Token) error {
	var expiry any
	if !tok.Expiry.IsZero() {
		expiry = tok.Expiry.UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions
		(telegram_id, customer_id, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(telegram_id) DO UPDATE SET
			customer_id = excluded.customer_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			updated_at = CURRENT_TIMESTAMP`,
		telegramID, customerID, tok.AccessToken, tok.RefreshToken, tokenType(tok), expiry)
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Token returns the user's credential, or ErrNoSession.
func (s *Store) Token(ctx context.Context, telegramID int64) (*oauth2.Token, error) {
	tok, _, err := s.lookup(ctx, telegramID)
	return tok, err
}

// CustomerID returns the shop customer linked to a Telegram user.
func (s *Store) CustomerID(ctx context.Context, telegramID int64) (int64, error) {
	_, customerID, err := s.lookup(ctx, telegramID)
	return customerID, err
}

// UserByCustomer resolves the Telegram user linked to a shop customer.
func (s *Store) UserByCustomer(ctx context.Context, customerID int64) (int64, error) {
	var telegramID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT telegram_id FROM sessions WHERE customer_id = ?`, customerID).Scan(&telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoSession
	}
	if err != nil {
		return 0, fmt.Errorf("lookup session by customer: %w", err)
	}
	return telegramID, nil
}

// Delete removes a user's credential, e.g. on logout or a rejected token.
func (s *Store) Delete(ctx context.Context, telegramID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE telegram_id = ?`, telegramID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) lookup(ctx context.Context, telegramID int64) (*oauth2.Token, int64, error) {
	var (
		tok        oauth2.Token
		customerID int64
		refresh    sql.NullString
		expiry     sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `SELECT customer_id, access_token, refresh_token, token_type, expiry
		FROM sessions WHERE telegram_id = ?`, telegramID).
		Scan(&customerID, &tok.AccessToken, &refresh, &tok.TokenType, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNoSession
	}
	if err != nil {
		return nil, 0, fmt.Errorf("lookup session: %w", err)
	}
	tok.RefreshToken = refresh.String
	if expiry.Valid {
		tok.Expiry = expiry.Time
	}
	if !tok.Valid() {
		return nil, 0, fmt.Errorf("credential expired: %w", ErrNoSession)
	}
	return &tok, customerID, nil
}

func tokenType(tok *oauth2.Token) string {
	if tok.TokenType == "" {
		return "Bearer"
	}
	return tok.TokenType
}

// TokenSource adapts the store to oauth2.TokenSource for one user, re-reading
// the row on every call so revocation takes effect immediately.
func (s *Store) TokenSource(telegramID int64) oauth2.TokenSource {
	return &storeTokenSource{store: s, telegramID: telegramID}
}

type storeTokenSource struct {
	store      *Store
	telegramID int64
}

func (ts *storeTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return ts.store.Token(ctx, ts.telegramID)
}
