package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4" // Ensure sqlcipher driver is registered.
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

const (
	storeDBName = "store.db"
)

// EncryptedStore implements domain.Store using a SQLCipher encrypted SQLite
// database. Committed writes are fanned out to subscribers through a change hub.
type EncryptedStore struct {
	db        *sql.DB
	dbPath    string
	namespace string
	// mu serializes writers so old values in a Change are exact.
	mu     sync.Mutex
	hub    *changeHub
	logger *zap.Logger
}

// NewEncryptedStore opens (or creates) the encrypted store database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedStore(dataDir string, key []byte, namespace string, logger *zap.Logger) (*EncryptedStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeDBName)
	keyHex := hex.EncodeToString(key)

	// Open with SQLCipher key as DSN parameter
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Verify encryption works by running a query
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &EncryptedStore{
		db:        db,
		dbPath:    dbPath,
		namespace: namespace,
		hub:       newChangeHub(logger),
		logger:    logger,
	}

	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

// createTables creates the schema if it doesn't exist.
func (s *EncryptedStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, key)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Namespace returns the namespace every key is scoped to.
func (s *EncryptedStore) Namespace() string {
	return s.namespace
}

// Get returns the raw record for key.
func (s *EncryptedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM records WHERE namespace = ? AND key = ?`,
		s.namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query %s: %w", key, err)
	}
	return value, true, nil
}

// Set commits every record in one transaction, then notifies subscribers.
// Nothing is published when the transaction fails.
func (s *EncryptedStore) Set(ctx context.Context, records map[string][]byte) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now().UnixMilli()
	changes := make([]domain.Change, 0, len(keys))
	for _, k := range keys {
		var old []byte
		err := tx.QueryRowContext(ctx, `SELECT value FROM records WHERE namespace = ? AND key = ?`,
			s.namespace, k).Scan(&old)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read previous %s: %w", k, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO records (namespace, key, value, updated_at)
			VALUES (?, ?, ?, ?)`,
			s.namespace, k, records[k], now,
		); err != nil {
			return fmt.Errorf("write %s: %w", k, err)
		}

		changes = append(changes, domain.Change{
			Namespace: s.namespace,
			Key:       k,
			OldValue:  old,
			NewValue:  records[k],
		})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	for _, c := range changes {
		s.hub.publish(c)
	}
	return nil
}

// Subscribe registers a key-filtered change subscription.
// The subscription ends when cancel is called or ctx is done.
func (s *EncryptedStore) Subscribe(ctx context.Context, keys ...string) (<-chan domain.Change, func(), error) {
	changes, remove := s.hub.subscribe(keys)

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			remove()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return changes, cancel, nil
}

// GetStorePath returns the database file path.
func (s *EncryptedStore) GetStorePath() string {
	return s.dbPath
}

// Close ends all subscriptions and releases the database connection.
func (s *EncryptedStore) Close() error {
	s.hub.closeAll()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure EncryptedStore implements domain.Store.
var _ domain.Store = (*EncryptedStore)(nil)
