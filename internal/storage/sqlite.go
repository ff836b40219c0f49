package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"finmate/internal/core"
	"finmate/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps ledgers in a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and runs
// the embedded migrations.
func NewSQLiteStore(dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time; transactions are serialised by the pool
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

// dsn takes the write lock when a transaction begins, so concurrent
// read-modify-write cycles from other processes wait on busy_timeout
// instead of failing at commit.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadDocument(ctx context.Context, q queryer, ownerID string) (core.Snapshot, bool, error) {
	var (
		doc     string
		version int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT document, version FROM ledgers WHERE owner_id = ?`, ownerID,
	).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewSnapshot(ownerID), false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("select ledger %s: %w", ownerID, err)
	}

	var snap core.Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return core.Snapshot{}, false, fmt.Errorf("decode ledger %s: %w", ownerID, err)
	}
	snap.OwnerID = ownerID
	snap.Version = version
	return snap.WithDefaults(), true, nil
}

func writeDocument(ctx context.Context, tx *sql.Tx, snap core.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode ledger %s: %w", snap.OwnerID, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledgers (owner_id, document, version, last_synced)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			document = excluded.document,
			version = excluded.version,
			last_synced = excluded.last_synced`,
		snap.OwnerID, string(doc), snap.Version, snap.LastSynced.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write ledger %s: %w", snap.OwnerID, err)
	}
	return nil
}

// Load returns the stored ledger or a defaulted empty one.
func (s *SQLiteStore) Load(ctx context.Context, ownerID string) (core.Snapshot, error) {
	if ownerID == "" {
		return core.Snapshot{}, core.ErrEmptyOwner
	}
	snap, _, err := loadDocument(ctx, s.db, ownerID)
	return snap, err
}

// Save merges snap into the stored document if snap.Version is current.
func (s *SQLiteStore) Save(ctx context.Context, snap core.Snapshot) (core.Snapshot, error) {
	if snap.OwnerID == "" {
		return core.Snapshot{}, core.ErrEmptyOwner
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored, _, err := loadDocument(ctx, tx, snap.OwnerID)
	if err != nil {
		return core.Snapshot{}, err
	}
	if stored.Version != snap.Version {
		return core.Snapshot{}, Conflict(stored.Version, snap.Version)
	}

	merged := Stamp(Merge(stored, snap), s.now())
	if err := writeDocument(ctx, tx, merged); err != nil {
		return core.Snapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Snapshot{}, fmt.Errorf("commit ledger %s: %w", snap.OwnerID, err)
	}
	return merged, nil
}

// CommitRollover claims the batch items in rollover_claims and appends the
// winners to the stored ledger, all in one transaction.
func (s *SQLiteStore) CommitRollover(ctx context.Context, batch core.RolloverBatch) (core.Snapshot, []core.Entry, error) {
	if batch.OwnerID == "" {
		return core.Snapshot{}, nil, core.ErrEmptyOwner
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Snapshot{}, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored, _, err := loadDocument(ctx, tx, batch.OwnerID)
	if err != nil {
		return core.Snapshot{}, nil, err
	}

	claimedAt := s.now().UTC().Format(time.RFC3339Nano)
	claim := func(period core.PeriodKey, templateKey, entryID string) (bool, error) {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO rollover_claims (owner_id, period_key, template_key, entry_id, claimed_at)
			VALUES (?, ?, ?, ?, ?)`,
			batch.OwnerID, string(period), templateKey, entryID, claimedAt)
		if err != nil {
			return false, fmt.Errorf("claim %s/%s: %w", period, templateKey, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("claim %s/%s: %w", period, templateKey, err)
		}
		return n == 1, nil
	}

	doc, kept, err := ApplyRollover(stored, batch, claim)
	if err != nil {
		return core.Snapshot{}, nil, err
	}
	if len(kept) == 0 {
		return stored, kept, tx.Commit()
	}

	doc = Stamp(doc, s.now())
	if err := writeDocument(ctx, tx, doc); err != nil {
		return core.Snapshot{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return core.Snapshot{}, nil, fmt.Errorf("commit rollover %s: %w", batch.OwnerID, err)
	}

	s.logger.DebugContext(ctx, "Rollover claims committed",
		log.FieldOwnerID, batch.OwnerID,
		log.FieldPeriod, batch.Period,
		log.FieldCreatedCount, len(kept),
		log.FieldVersion, doc.Version)
	return doc, kept, nil
}

// Owners lists every owner with a stored ledger.
func (s *SQLiteStore) Owners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT owner_id FROM ledgers ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}
