package public

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ardanlabs/cryptoverse/business/sys/validate"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/web"
)

// starLogsQuery is the query string of GET /v1/starlogs.
type starLogsQuery struct {
	PreviousHash string `json:"previous_hash" validate:"omitempty,len=64,hexadecimal"`
	BeforeTime   *int64 `json:"before_time" validate:"omitempty,gte=0"`
	SinceTime    *int64 `json:"since_time" validate:"omitempty,gte=0"`
	Limit        int    `json:"limit" validate:"gte=1"`
	Offset       int    `json:"offset" validate:"gte=0"`
}

func parseStarLogsQuery(r *http.Request, defLimit int) (database.StarLogFilter, error) {
	var q starLogsQuery
	var err error

	q.PreviousHash = web.Query(r, "previous_hash", "")

	if q.BeforeTime, err = queryInt64(r, "before_time"); err != nil {
		return database.StarLogFilter{}, err
	}
	if q.SinceTime, err = queryInt64(r, "since_time"); err != nil {
		return database.StarLogFilter{}, err
	}
	if q.Limit, err = web.QueryInt(r, "limit", defLimit); err != nil {
		return database.StarLogFilter{}, malformed(err)
	}
	if q.Offset, err = web.QueryInt(r, "offset", 0); err != nil {
		return database.StarLogFilter{}, malformed(err)
	}

	if err := validate.Check(q); err != nil {
		return database.StarLogFilter{}, err
	}

	filter := database.StarLogFilter{
		PreviousHash: q.PreviousHash,
		BeforeTime:   q.BeforeTime,
		SinceTime:    q.SinceTime,
		Limit:        q.Limit,
		Offset:       q.Offset,
	}

	return filter, nil
}

// chainsQuery is the query string of GET /v1/chains.
type chainsQuery struct {
	Height *uint64 `json:"height"`
	Limit  int     `json:"limit" validate:"gte=1"`
}

func parseChainsQuery(r *http.Request, defLimit int) (chainsQuery, error) {
	var q chainsQuery
	var err error

	if v := r.URL.Query().Get("height"); v != "" {
		h, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return chainsQuery{}, malformed(fmt.Errorf("query height: %q is not a height", v))
		}
		q.Height = &h
	}

	if q.Limit, err = web.QueryInt(r, "limit", defLimit); err != nil {
		return chainsQuery{}, malformed(err)
	}

	if err := validate.Check(q); err != nil {
		return chainsQuery{}, err
	}

	return q, nil
}

// =============================================================================

// pendingEvent is an event waiting in the mempool.
type pendingEvent struct {
	database.SignedEvent
	FleetName string `json:"fleet_name"`
}

// event is a confirmed or pending event output.
type event struct {
	database.Event
	FleetName string `json:"fleet_name"`
}

// =============================================================================

func queryInt64(r *http.Request, key string) (*int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, malformed(fmt.Errorf("query %s: %q is not an integer", key, v))
	}
	return &n, nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %s", database.ErrMalformedInput, err)
}
