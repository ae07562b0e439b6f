package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/lineage"
	"github.com/jackc/pgx/v5"
)

// Usage values of an event signature reference.
const (
	usageInput  = "input"
	usageOutput = "output"
)

const indexColumns = `id, root_id, previous_id, height, chain, hash, previous_hash`

const starLogColumns = `hash, previous_hash, height, version, difficulty, nonce, time,
	events_hash, meta, meta_hash, interval_hash, chain, size`

// queries implements the storage.Reader interface over the pool or a
// transaction.
type queries struct {
	db querier
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, database.ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func scanIndex(row pgx.Row) (lineage.Index, error) {
	var idx lineage.Index
	var height int64
	err := row.Scan(&idx.ID, &idx.RootID, &idx.PreviousID, &height, &idx.ChainID, &idx.Hash, &idx.PreviousHash)
	idx.Height = uint64(height)
	return idx, err
}

func scanStarLog(row pgx.Row) (database.StarLog, error) {
	var sl database.StarLog
	var height, difficulty, nonce int64
	err := row.Scan(&sl.Hash, &sl.PreviousHash, &height, &sl.Version, &difficulty, &nonce, &sl.Time,
		&sl.EventsHash, &sl.Meta, &sl.MetaHash, &sl.IntervalHash, &sl.ChainID, &sl.Size)
	sl.Height = uint64(height)
	sl.Difficulty = uint32(difficulty)
	sl.Nonce = uint64(nonce)
	return sl, err
}

// SlotOccupied implements the lineage.Store interface.
func (q queries) SlotOccupied(ctx context.Context, height uint64, chainID int64) (bool, error) {
	var exists bool
	if err := q.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM chain_indexes WHERE height = $1 AND chain = $2)`, int64(height), chainID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("slot occupied: %w", err)
	}
	return exists, nil
}

// MaxChainID implements the lineage.Store interface.
func (q queries) MaxChainID(ctx context.Context) (int64, bool, error) {
	var maxID *int64
	if err := q.db.QueryRow(ctx, `SELECT MAX(chain) FROM chain_indexes`).Scan(&maxID); err != nil {
		return 0, false, fmt.Errorf("max chain id: %w", err)
	}
	if maxID == nil {
		return 0, false, nil
	}
	return *maxID, true, nil
}

// IndexByID implements the lineage.Lookup interface.
func (q queries) IndexByID(ctx context.Context, id int64) (lineage.Index, error) {
	idx, err := scanIndex(q.db.QueryRow(ctx, `SELECT `+indexColumns+` FROM chain_indexes WHERE id = $1`, id))
	if err != nil {
		return lineage.Index{}, notFound(err, "chain index[%d]", id)
	}
	return idx, nil
}

// IndexByHash implements the storage.Reader interface.
func (q queries) IndexByHash(ctx context.Context, hash string) (lineage.Index, error) {
	idx, err := scanIndex(q.db.QueryRow(ctx, `SELECT `+indexColumns+` FROM chain_indexes WHERE hash = $1`, hash))
	if err != nil {
		return lineage.Index{}, notFound(err, "chain index[%s]", hash)
	}
	return idx, nil
}

// StarLog implements the storage.Reader interface.
func (q queries) StarLog(ctx context.Context, hash string) (database.StarLog, error) {
	sl, err := scanStarLog(q.db.QueryRow(ctx, `SELECT `+starLogColumns+` FROM star_logs WHERE hash = $1`, hash))
	if err != nil {
		return database.StarLog{}, notFound(err, "star log[%s]", hash)
	}
	return sl, nil
}

// Fleet implements the storage.Reader interface.
func (q queries) Fleet(ctx context.Context, hash string) (database.Fleet, error) {
	var f database.Fleet
	if err := q.db.QueryRow(ctx, `SELECT hash, public_key FROM fleets WHERE hash = $1`, hash).Scan(&f.Hash, &f.PublicKey); err != nil {
		return database.Fleet{}, notFound(err, "fleet[%s]", hash)
	}
	return f, nil
}

// EventSignature implements the storage.Reader interface.
func (q queries) EventSignature(ctx context.Context, hash string) (database.EventSignature, error) {
	var es database.EventSignature
	var typ string
	if err := q.db.QueryRow(ctx,
		`SELECT hash, fleet_hash, signature, type, time, confirmations FROM event_signatures WHERE hash = $1`, hash,
	).Scan(&es.Hash, &es.FleetHash, &es.Signature, &typ, &es.Time, &es.Confirmations); err != nil {
		return database.EventSignature{}, notFound(err, "event signature[%s]", hash)
	}

	et, err := database.ParseEventType(typ)
	if err != nil {
		return database.EventSignature{}, err
	}
	es.Type = et

	rows, err := q.db.Query(ctx,
		`SELECT usage, idx, key FROM event_signature_refs WHERE signature_hash = $1 ORDER BY usage, idx`, hash)
	if err != nil {
		return database.EventSignature{}, fmt.Errorf("query event refs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var usage string
		var ref database.EventRef
		if err := rows.Scan(&usage, &ref.Index, &ref.Key); err != nil {
			return database.EventSignature{}, fmt.Errorf("scan event ref: %w", err)
		}

		switch usage {
		case usageInput:
			es.Inputs = append(es.Inputs, ref)
		case usageOutput:
			es.Outputs = append(es.Outputs, ref)
		}
	}

	return es, rows.Err()
}

// Event implements the storage.Reader interface.
func (q queries) Event(ctx context.Context, key string) (database.Event, error) {
	var ev database.Event
	var typ string
	var count int64
	var model []byte
	if err := q.db.QueryRow(ctx,
		`SELECT key, type, fleet_hash, count, star_system, location, model_type, model, origin FROM events WHERE key = $1`, key,
	).Scan(&ev.Key, &typ, &ev.FleetHash, &count, &ev.StarSystem, &ev.Location, &ev.ModelType, &model, &ev.Origin); err != nil {
		return database.Event{}, notFound(err, "event[%s]", key)
	}

	et, err := database.ParseEventType(typ)
	if err != nil {
		return database.Event{}, err
	}
	ev.Type = et
	ev.Count = uint64(count)

	if len(model) > 0 {
		var v database.Vessel
		if err := json.Unmarshal(model, &v); err != nil {
			return database.Event{}, fmt.Errorf("unmarshal model: %w", err)
		}
		ev.Model = &v
	}

	return ev, nil
}

// Bindings implements the storage.Reader interface.
func (q queries) Bindings(ctx context.Context, signatureHash string) ([]database.Binding, error) {
	return q.bindings(ctx,
		`SELECT b.star_log_hash, b.signature_hash, b.idx, s.height, s.chain
		 FROM star_log_bindings b JOIN star_logs s ON s.hash = b.star_log_hash
		 WHERE b.signature_hash = $1`, signatureHash)
}

// BindingsForStarLog implements the storage.Reader interface.
func (q queries) BindingsForStarLog(ctx context.Context, starLogHash string) ([]database.Binding, error) {
	return q.bindings(ctx,
		`SELECT b.star_log_hash, b.signature_hash, b.idx, s.height, s.chain
		 FROM star_log_bindings b JOIN star_logs s ON s.hash = b.star_log_hash
		 WHERE b.star_log_hash = $1 ORDER BY b.idx`, starLogHash)
}

func (q queries) bindings(ctx context.Context, sql string, arg string) ([]database.Binding, error) {
	rows, err := q.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("query bindings: %w", err)
	}
	defer rows.Close()

	var binds []database.Binding
	for rows.Next() {
		var b database.Binding
		var height int64
		if err := rows.Scan(&b.StarLogHash, &b.SignatureHash, &b.Index, &height, &b.ChainID); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		b.Height = uint64(height)
		binds = append(binds, b)
	}

	return binds, rows.Err()
}

// Consumers implements the storage.Reader interface.
func (q queries) Consumers(ctx context.Context, key string) ([]string, error) {
	rows, err := q.db.Query(ctx,
		`SELECT signature_hash FROM event_signature_refs WHERE key = $1 AND usage = $2`, key, usageInput)
	if err != nil {
		return nil, fmt.Errorf("query consumers: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan consumer: %w", err)
		}
		hashes = append(hashes, h)
	}

	return hashes, rows.Err()
}

// QueryStarLogs implements the storage.Reader interface.
func (q queries) QueryStarLogs(ctx context.Context, filter database.StarLogFilter) ([]database.StarLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := q.db.Query(ctx,
		`SELECT `+starLogColumns+` FROM star_logs
		 WHERE ($1::TEXT = '' OR previous_hash = $1)
		   AND ($2::BIGINT IS NULL OR time < $2)
		   AND ($3::BIGINT IS NULL OR time >= $3)
		 ORDER BY time DESC, height DESC, hash ASC
		 LIMIT NULLIF($4, -1) OFFSET $5`,
		filter.PreviousHash, filter.BeforeTime, filter.SinceTime, limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query star logs: %w", err)
	}
	defer rows.Close()

	var sls []database.StarLog
	for rows.Next() {
		sl, err := scanStarLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan star log: %w", err)
		}
		sls = append(sls, sl)
	}

	return sls, rows.Err()
}

// ChainHeads implements the storage.Reader interface.
func (q queries) ChainHeads(ctx context.Context, height *uint64, limit int) ([]lineage.Index, error) {
	var h *int64
	if height != nil {
		v := int64(*height)
		h = &v
	}

	if limit <= 0 {
		limit = -1
	}

	rows, err := q.db.Query(ctx,
		`SELECT `+indexColumns+` FROM (
			SELECT DISTINCT ON (chain) `+indexColumns+` FROM chain_indexes ORDER BY chain, height DESC
		 ) heads
		 WHERE ($1::BIGINT IS NULL OR height = $1)
		 ORDER BY height DESC, chain ASC
		 LIMIT NULLIF($2, -1)`,
		h, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query chain heads: %w", err)
	}
	defer rows.Close()

	var heads []lineage.Index
	for rows.Next() {
		idx, err := scanIndex(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chain head: %w", err)
		}
		heads = append(heads, idx)
	}

	return heads, rows.Err()
}
