package objectstore

import (
	"database/sql"
	"encoding"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS objects (
	id   TEXT PRIMARY KEY,
	data BLOB NOT NULL
)`

// sqliteObjectStore is a type implementing the objectstore.ObjectStore interface with a permanent storage
// backend based on a single SQLite database file.
type sqliteObjectStore struct {
	db *sql.DB
}

// NewSQLiteObjectStore opens (creating it if needed) the SQLite database at conf.DBPath.
func NewSQLiteObjectStore(conf Config) (*sqliteObjectStore, error) {
	if len(conf.DBPath) == 0 {
		return nil, fmt.Errorf("could not open SQLite database: no DBPath in config")
	}

	db, err := sql.Open("sqlite3", conf.DBPath)
	if err != nil {
		return nil, fmt.Errorf("could not open SQLite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to SQLite database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		sqliteSchema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}

	return &sqliteObjectStore{db: db}, nil
}

func (objstore *sqliteObjectStore) Store(objectID string, object encoding.BinaryMarshaler) error {
	encodedObject, err := object.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = objstore.db.Exec(
		`INSERT INTO objects (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		objectID, encodedObject)
	if err != nil {
		return fmt.Errorf("could not store %s in SQLite: %w", objectID, err)
	}
	return nil
}

func (objstore *sqliteObjectStore) Load(objectID string, object encoding.BinaryUnmarshaler) error {
	var encodedObject []byte
	err := objstore.db.QueryRow(`SELECT data FROM objects WHERE id = ?`, objectID).Scan(&encodedObject)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no value found for key string %s in SQLite: %w", objectID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("could not load %s from SQLite: %w", objectID, err)
	}
	return object.UnmarshalBinary(encodedObject)
}

func (objstore *sqliteObjectStore) IsPresent(objectID string) (bool, error) {
	var n int
	err := objstore.db.QueryRow(`SELECT COUNT(*) FROM objects WHERE id = ?`, objectID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (objstore *sqliteObjectStore) Delete(objectID string) error {
	if _, err := objstore.db.Exec(`DELETE FROM objects WHERE id = ?`, objectID); err != nil {
		return fmt.Errorf("could not delete %s from SQLite: %w", objectID, err)
	}
	return nil
}

func (objstore *sqliteObjectStore) Close() error {
	return objstore.db.Close()
}
