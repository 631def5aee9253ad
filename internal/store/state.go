package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/nexus/internal/session"
)

// Flat keys in session_state.
const (
	KeyUsername = "username"
	KeyFullName = "full_name"
	KeyToken    = "token"
	KeyLastPeer = "last_peer"
)

// ErrNoIdentity is returned by LoadIdentity when no session has been saved.
var ErrNoIdentity = errors.New("no saved identity")

var identityKeys = []string{KeyUsername, KeyFullName, KeyToken, KeyLastPeer}

// SaveIdentity stores the identity, replacing any previous one in one transaction.
func (db *DB) SaveIdentity(id session.Identity) error {
	if !id.Valid() {
		return fmt.Errorf("save identity: username and token are required")
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	values := map[string]string{
		KeyUsername: id.Username,
		KeyFullName: id.FullName,
		KeyToken:    id.Token,
	}
	for k, v := range values {
		if err := setState(tx, k, v); err != nil {
			return fmt.Errorf("save identity: %w", err)
		}
	}
	// A different user must not inherit the previous user's conversation.
	if _, err := tx.Exec(`DELETE FROM session_state WHERE key = ?`, KeyLastPeer); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return tx.Commit()
}

// LoadIdentity returns the saved identity or ErrNoIdentity.
func (db *DB) LoadIdentity() (session.Identity, error) {
	var id session.Identity
	fields := map[string]*string{
		KeyUsername: &id.Username,
		KeyFullName: &id.FullName,
		KeyToken:    &id.Token,
	}
	for k, dst := range fields {
		v, err := db.State(k)
		if err != nil {
			return session.Identity{}, err
		}
		*dst = v
	}
	if !id.Valid() {
		return session.Identity{}, ErrNoIdentity
	}
	return id, nil
}

// ClearIdentity removes the credential, identity and display name atomically.
func (db *DB) ClearIdentity() error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, k := range identityKeys {
		if _, err := tx.Exec(`DELETE FROM session_state WHERE key = ?`, k); err != nil {
			return fmt.Errorf("clear %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// SetLastPeer remembers the active conversation. An empty peer clears it.
func (db *DB) SetLastPeer(peer string) error {
	if peer == "" {
		_, err := db.Exec(`DELETE FROM session_state WHERE key = ?`, KeyLastPeer)
		return err
	}
	return setState(db, KeyLastPeer, peer)
}

// LastPeer returns the remembered active conversation, or "".
func (db *DB) LastPeer() (string, error) {
	return db.State(KeyLastPeer)
}

// State returns the value stored under key, or "" when unset.
func (db *DB) State(key string) (string, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM session_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func setState(e execer, key, value string) error {
	_, err := e.Exec(`
		INSERT INTO session_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}
