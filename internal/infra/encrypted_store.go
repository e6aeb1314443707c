package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	lockDBName = "lock.db"
)

// EncryptedLockStore implements domain.LockStore using a SQLCipher
// encrypted SQLite database.
type EncryptedLockStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedLockStore opens (or creates) an encrypted lock database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedLockStore(dataDir string, key []byte) (*EncryptedLockStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, lockDBName)
	keyHex := hex.EncodeToString(key)

	// Open with SQLCipher key as DSN parameter
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// Single writer; also keeps the in-process view consistent.
	db.SetMaxOpenConns(1)

	// Verify encryption works by running a query
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &EncryptedLockStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

// createTables creates the schema if it doesn't exist.
func (s *EncryptedLockStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS lock_record (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the full lock record.
func (s *EncryptedLockStore) Load() (*domain.LockRecord, error) {
	rows, err := s.db.Query(`SELECT key, value FROM lock_record`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return decodeRecord(values)
}

// SetDeadline persists the unlock deadline.
func (s *EncryptedLockStore) SetDeadline(deadline time.Time) error {
	return s.put(keyUnlockDeadline, encodeDeadline(deadline))
}

// ClearDeadline removes the unlock deadline.
func (s *EncryptedLockStore) ClearDeadline() error {
	return s.remove(keyUnlockDeadline)
}

// SetOriginalLauncher persists both launcher fields in one transaction.
func (s *EncryptedLockStore) SetOriginalLauncher(id domain.LauncherIdentity) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	for k, v := range map[string]string{keyOriginalPkg: id.Package, keyOriginalCls: id.Component} {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO lock_record (key, value, updated_at) VALUES (?, ?, ?)`,
			k, v, now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SaveStreamVolume persists a volume snapshot.
func (s *EncryptedLockStore) SaveStreamVolume(stream domain.StreamID, level int) error {
	return s.put(volumeKey(stream), strconv.Itoa(level))
}

// RemoveStreamVolume removes one stream's snapshot.
func (s *EncryptedLockStore) RemoveStreamVolume(stream domain.StreamID) error {
	return s.remove(volumeKey(stream))
}

// Path returns the database file path.
func (s *EncryptedLockStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedLockStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *EncryptedLockStore) put(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO lock_record (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().Unix())
	return err
}

func (s *EncryptedLockStore) remove(key string) error {
	_, err := s.db.Exec(`DELETE FROM lock_record WHERE key = ?`, key)
	return err
}

// Ensure EncryptedLockStore implements domain.LockStore.
var _ domain.LockStore = (*EncryptedLockStore)(nil)
