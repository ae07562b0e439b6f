// Package postgres implements the ledger storage on PostgreSQL. Admissions
// are serialized across every node sharing the database with a transaction
// scoped advisory lock.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/lineage"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey serializes admissions. The value is arbitrary but must be
// the same for every node using the database.
const advisoryLockKey = int64(7_340_112_233)

//go:embed schema/*.sql
var schemaFS embed.FS

// querier is the behavior shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// =============================================================================

// Store represents the storage implementation backed by PostgreSQL. This
// implements the storage.Store interface.
type Store struct {
	queries
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

// Open connects to the database at the url.
func Open(ctx context.Context, url string, log *zap.SugaredLogger) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return New(pool, log), nil
}

// New constructs a store over an existing pool.
func New(pool *pgxpool.Pool, log *zap.SugaredLogger) *Store {
	return &Store{
		queries: queries{db: pool},
		pool:    pool,
		log:     log,
	}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Begin starts a transaction and takes the admission lock. The lock is
// released when the transaction commits or rolls back.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	if _, err := pgTx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		pgTx.Rollback(ctx)
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	return &tx{queries: queries{db: pgTx}, pgTx: pgTx}, nil
}

// Migrate applies every embedded schema file that has not been applied yet.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version bigint NOT NULL,
			dirty   boolean NOT NULL,
			PRIMARY KEY (version)
		)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := fs.Glob(schemaFS, "schema/*.sql")
	if err != nil {
		return 0, fmt.Errorf("read schema: %w", err)
	}
	sort.Strings(files)

	applied := 0
	for _, f := range files {
		name := strings.TrimPrefix(f, "schema/")
		ver, err := strconv.ParseInt(strings.SplitN(name, "_", 2)[0], 10, 64)
		if err != nil {
			return applied, fmt.Errorf("parse version from %s: %w", name, err)
		}

		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1 AND dirty = false)`, ver,
		).Scan(&exists); err != nil {
			return applied, fmt.Errorf("check %s: %w", name, err)
		}
		if exists {
			continue
		}

		sql, err := schemaFS.ReadFile(f)
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", name, err)
		}

		if _, err := s.pool.Exec(ctx,
			`INSERT INTO schema_migrations (version, dirty) VALUES ($1, true)
			 ON CONFLICT (version) DO UPDATE SET dirty = true`, ver,
		); err != nil {
			return applied, fmt.Errorf("mark dirty %s: %w", name, err)
		}

		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return applied, fmt.Errorf("apply %s: %w", name, err)
		}

		if _, err := s.pool.Exec(ctx,
			`UPDATE schema_migrations SET dirty = false WHERE version = $1`, ver,
		); err != nil {
			return applied, fmt.Errorf("mark clean %s: %w", name, err)
		}

		s.log.Infow("migrate", "status", "applied", "file", name)
		applied++
	}

	return applied, nil
}

// Truncate removes every ledger record. The admin tooling uses this to reset
// a network.
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx,
		`TRUNCATE star_log_bindings, events, event_signature_refs, event_signatures,
		 fleets, star_logs, chain_indexes RESTART IDENTITY`,
	); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	s.log.Infow("truncate", "status", "ledger emptied")
	return nil
}

// =============================================================================

// tx is a storage transaction.
type tx struct {
	queries
	pgTx pgx.Tx
}

// Commit implements the storage.Tx interface.
func (t *tx) Commit(ctx context.Context) error {
	if err := t.pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback implements the storage.Tx interface.
func (t *tx) Rollback(ctx context.Context) error {
	err := t.pgTx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// InsertIndex implements the storage.Writer interface.
func (t *tx) InsertIndex(ctx context.Context, idx lineage.Index) (lineage.Index, error) {
	err := t.db.QueryRow(ctx,
		`INSERT INTO chain_indexes (root_id, previous_id, height, chain, hash, previous_hash)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		idx.RootID, idx.PreviousID, int64(idx.Height), idx.ChainID, idx.Hash, idx.PreviousHash,
	).Scan(&idx.ID)
	if err != nil {
		return lineage.Index{}, fmt.Errorf("insert chain index: %w", err)
	}
	return idx, nil
}

// InsertStarLog implements the storage.Writer interface.
func (t *tx) InsertStarLog(ctx context.Context, sl database.StarLog) error {
	if _, err := t.db.Exec(ctx,
		`INSERT INTO star_logs (hash, previous_hash, height, version, difficulty, nonce, time,
		 events_hash, meta, meta_hash, interval_hash, chain, size)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sl.Hash, sl.PreviousHash, int64(sl.Height), sl.Version, int64(sl.Difficulty), int64(sl.Nonce), sl.Time,
		sl.EventsHash, sl.Meta, sl.MetaHash, sl.IntervalHash, sl.ChainID, sl.Size,
	); err != nil {
		return fmt.Errorf("insert star log: %w", err)
	}
	return nil
}

// UpsertFleet implements the storage.Writer interface. A known public key is
// never replaced.
func (t *tx) UpsertFleet(ctx context.Context, fleet database.Fleet) error {
	if _, err := t.db.Exec(ctx,
		`INSERT INTO fleets (hash, public_key) VALUES ($1, $2)
		 ON CONFLICT (hash) DO UPDATE SET public_key = EXCLUDED.public_key
		 WHERE fleets.public_key = '' AND EXCLUDED.public_key <> ''`,
		fleet.Hash, fleet.PublicKey,
	); err != nil {
		return fmt.Errorf("upsert fleet: %w", err)
	}
	return nil
}

// InsertEventSignature implements the storage.Writer interface.
func (t *tx) InsertEventSignature(ctx context.Context, es database.EventSignature) error {
	if _, err := t.db.Exec(ctx,
		`INSERT INTO event_signatures (hash, fleet_hash, signature, type, time, confirmations)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		es.Hash, es.FleetHash, es.Signature, es.Type.String(), es.Time, es.Confirmations,
	); err != nil {
		return fmt.Errorf("insert event signature: %w", err)
	}

	refs := []struct {
		usage string
		refs  []database.EventRef
	}{
		{usageInput, es.Inputs},
		{usageOutput, es.Outputs},
	}

	for _, group := range refs {
		for _, ref := range group.refs {
			if _, err := t.db.Exec(ctx,
				`INSERT INTO event_signature_refs (signature_hash, usage, idx, key) VALUES ($1, $2, $3, $4)`,
				es.Hash, group.usage, ref.Index, ref.Key,
			); err != nil {
				return fmt.Errorf("insert event %s[%d]: %w", group.usage, ref.Index, err)
			}
		}
	}

	return nil
}

// InsertEvent implements the storage.Writer interface.
func (t *tx) InsertEvent(ctx context.Context, ev database.Event) error {
	var model any
	if ev.Model != nil {
		data, err := json.Marshal(ev.Model)
		if err != nil {
			return fmt.Errorf("marshal model: %w", err)
		}
		model = string(data)
	}

	if _, err := t.db.Exec(ctx,
		`INSERT INTO events (key, type, fleet_hash, count, star_system, location, model_type, model, origin)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.Key, ev.Type.String(), ev.FleetHash, int64(ev.Count), ev.StarSystem, ev.Location, ev.ModelType, model, ev.Origin,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// IncrementConfirmations implements the storage.Writer interface.
func (t *tx) IncrementConfirmations(ctx context.Context, signatureHash string) error {
	tag, err := t.db.Exec(ctx,
		`UPDATE event_signatures SET confirmations = confirmations + 1 WHERE hash = $1`, signatureHash)
	if err != nil {
		return fmt.Errorf("increment confirmations: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event signature[%s]: %w", signatureHash, database.ErrNotFound)
	}
	return nil
}

// InsertBinding implements the storage.Writer interface.
func (t *tx) InsertBinding(ctx context.Context, b database.Binding) error {
	if _, err := t.db.Exec(ctx,
		`INSERT INTO star_log_bindings (star_log_hash, signature_hash, idx) VALUES ($1, $2, $3)`,
		b.StarLogHash, b.SignatureHash, b.Index,
	); err != nil {
		return fmt.Errorf("insert binding: %w", err)
	}
	return nil
}
