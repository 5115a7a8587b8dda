// Package bdkeeper is the on-device durable queue of location records that
// are not yet confirmed by the server, plus the sync watermark.
package bdkeeper

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/wurt83ow/locsync-client/pkg/models"
)

// ErrStorageUnavailable is returned by every operation when the local
// database cannot be opened or used.
var ErrStorageUnavailable = errors.New("storage unavailable")

const (
	LocationsTable = "locations"
	MetaTable      = "meta"
	WatermarkKey   = "lastWritten"
)

const (
	createLocations = `CREATE TABLE locations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`
	createMeta = `CREATE TABLE meta (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	)`
)

// Codec transforms record payloads on their way to and from disk.
type Codec interface {
	Encrypt(data string) (string, error)
	Decrypt(encryptedText string) (string, error)
}

type plainCodec struct{}

func (plainCodec) Encrypt(data string) (string, error)          { return data, nil }
func (plainCodec) Decrypt(encryptedText string) (string, error) { return encryptedText, nil }

type Option func(*Keeper)

// WithCodec seals payloads with c.
func WithCodec(c Codec) Option {
	return func(k *Keeper) {
		if c != nil {
			k.codec = c
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(k *Keeper) {
		if l != nil {
			k.log = l
		}
	}
}

type Keeper struct {
	db      *sql.DB
	openErr error
	codec   Codec
	log     logrus.FieldLogger

	mu    sync.Mutex
	ready bool
}

// Open opens the SQLite file at path. The pool is limited to a single
// connection so every logical operation is serialized.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// New opens the database at path. An open failure is not returned: the
// keeper is still usable and reports ErrStorageUnavailable on every call.
func New(path string, opts ...Option) *Keeper {
	db, err := Open(path)
	k := NewKeeper(db, opts...)
	if err != nil {
		k.openErr = err
	}
	return k
}

func NewKeeper(db *sql.DB, opts ...Option) *Keeper {
	k := &Keeper{
		db:    db,
		codec: plainCodec{},
		log:   logrus.StandardLogger(),
	}
	if db == nil {
		k.openErr = errors.New("database is not opened")
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

func unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// ensureSchema creates whichever of the two tables is missing. Existing
// tables and their rows are left untouched.
func (k *Keeper) ensureSchema(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.ready {
		return nil
	}

	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema upgrade: %w", err)
	}
	defer tx.Rollback()

	existing, err := existingTables(ctx, tx)
	if err != nil {
		return err
	}

	upgraded := false
	if !existing[LocationsTable] {
		if _, err := tx.ExecContext(ctx, createLocations); err != nil {
			return fmt.Errorf("failed to create %s: %w", LocationsTable, err)
		}
		upgraded = true
	}
	if !existing[MetaTable] {
		if _, err := tx.ExecContext(ctx, createMeta); err != nil {
			return fmt.Errorf("failed to create %s: %w", MetaTable, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, 0)", WatermarkKey); err != nil {
			return fmt.Errorf("failed to seed %s: %w", MetaTable, err)
		}
		upgraded = true
	}

	if upgraded {
		var version int
		if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
			return fmt.Errorf("failed to bump schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema upgrade: %w", err)
	}
	k.ready = true
	return nil
}

func existingTables(ctx context.Context, tx *sql.Tx) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name IN (?, ?)", LocationsTable, MetaTable)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect schema: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, 2)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		found[name] = true
	}
	return found, rows.Err()
}

// run provisions the schema, executes fn, and retries once after
// re-provisioning if a table disappeared underneath us.
func (k *Keeper) run(ctx context.Context, fn func() error) error {
	if k.openErr != nil {
		return unavailable(k.openErr)
	}
	if err := k.ensureSchema(ctx); err != nil {
		return unavailable(err)
	}

	err := fn()
	if isMissingTable(err) {
		k.mu.Lock()
		k.ready = false
		k.mu.Unlock()

		if err := k.ensureSchema(ctx); err != nil {
			return unavailable(err)
		}
		err = fn()
	}
	return unavailable(err)
}

// Enqueue persists rec and returns its freshly assigned local id.
func (k *Keeper) Enqueue(ctx context.Context, rec models.LocationRecord) (int64, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to encode record: %w", err)
	}
	sealed, err := k.codec.Encrypt(string(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to seal record: %w", err)
	}

	var id int64
	err = k.run(ctx, func() error {
		res, err := k.db.ExecContext(ctx,
			"INSERT INTO locations (payload, created_at) VALUES (?, ?)", sealed, time.Now().UnixMilli())
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListAll returns every queued record in insertion order. Rows whose payload
// cannot be opened or decoded are logged and left out; they stay on disk.
func (k *Keeper) ListAll(ctx context.Context) ([]models.LocationRecord, error) {
	var records []models.LocationRecord
	err := k.run(ctx, func() error {
		records = records[:0]

		rows, err := k.db.QueryContext(ctx, "SELECT id, payload FROM locations ORDER BY id")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id     int64
				sealed string
			)
			if err := rows.Scan(&id, &sealed); err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}
			rec, err := k.decode(sealed)
			if err != nil {
				k.log.WithError(err).WithField("local_id", id).Warn("skipping undecodable queued record")
				continue
			}
			rec.LocalID = id
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (k *Keeper) decode(sealed string) (models.LocationRecord, error) {
	var rec models.LocationRecord
	payload, err := k.codec.Decrypt(sealed)
	if err != nil {
		return rec, fmt.Errorf("failed to open payload: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return rec, fmt.Errorf("failed to decode payload: %w", err)
	}
	return rec, nil
}

// Remove deletes the record with the given id. Removing an absent id is not an error.
func (k *Keeper) Remove(ctx context.Context, id int64) error {
	return k.run(ctx, func() error {
		_, err := k.db.ExecContext(ctx, "DELETE FROM locations WHERE id = ?", id)
		return err
	})
}

func (k *Keeper) Count(ctx context.Context) (int, error) {
	var n int
	err := k.run(ctx, func() error {
		return k.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM locations").Scan(&n)
	})
	return n, err
}

// GetWatermark returns the durable watermark; ok is false when none is stored.
func (k *Keeper) GetWatermark(ctx context.Context) (ts int64, ok bool, err error) {
	err = k.run(ctx, func() error {
		err := k.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", WatermarkKey).Scan(&ts)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		return nil
	})
	return ts, ok, err
}

// PutWatermark stores ts unless a larger value is already stored.
func (k *Keeper) PutWatermark(ctx context.Context, ts int64) error {
	return k.run(ctx, func() error {
		_, err := k.db.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = MAX(value, excluded.value)`, WatermarkKey, ts)
		return err
	})
}

func (k *Keeper) Close() error {
	if k.db == nil {
		return nil
	}
	return k.db.Close()
}
