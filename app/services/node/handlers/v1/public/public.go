// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ardanlabs/cryptoverse/business/web/errs"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/state"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/worker"
	"github.com/ardanlabs/cryptoverse/foundation/events"
	"github.com/ardanlabs/cryptoverse/foundation/nameservice"
	"github.com/ardanlabs/cryptoverse/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log      *zap.SugaredLogger
	State    *state.State
	NS       *nameservice.NameService
	WS       websocket.Upgrader
	Evts     *events.Events
	Progress worker.ProgressStore
}

// Rules returns the consensus rules the ledger runs with.
func (h Handlers) Rules(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveRules(), http.StatusOK)
}

// QueryStarLogs returns the star logs matching the query string, newest
// first.
func (h Handlers) QueryStarLogs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	rules := h.State.RetrieveRules()

	filter, err := parseStarLogsQuery(r, rules.StarLogsMaxLimit)
	if err != nil {
		return err
	}

	sls, err := h.State.QueryStarLogs(ctx, filter)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, sls, http.StatusOK)
}

// SubmitStarLog validates a mined star log and adds it to the ledger.
func (h Handlers) SubmitStarLog(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	raw, err := web.ReadBody(r, h.State.RetrieveRules().StarLogsMaxBytes)
	if err != nil {
		return malformed(err)
	}

	sl, err := h.State.SubmitStarLog(ctx, raw)
	if err != nil {
		return fmt.Errorf("submit star log: %w", err)
	}

	h.Log.Infow("submit star log", "traceid", v.TraceID, "hash", sl.Hash, "height", sl.Height, "chain", sl.ChainID, "events", len(sl.Events))

	return web.Respond(ctx, w, sl, http.StatusCreated)
}

// QueryChains returns the head of every chain, highest first.
func (h Handlers) QueryChains(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	q, err := parseChainsQuery(r, h.State.RetrieveRules().ChainsMaxLimit)
	if err != nil {
		return err
	}

	heads, err := h.State.QueryChains(ctx, q.Height, q.Limit)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, heads, http.StatusOK)
}

// QueryPendingEvents returns the events waiting for a star log.
func (h Handlers) QueryPendingEvents(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	maxLimit := h.State.RetrieveRules().EventsMaxLimit

	limit, err := web.QueryInt(r, "limit", maxLimit)
	if err != nil {
		return malformed(err)
	}

	if limit < 1 || limit > maxLimit {
		return malformed(fmt.Errorf("limit must be between 1 and %d", maxLimit))
	}

	pending := h.State.QueryPendingEvents(limit)

	evs := make([]pendingEvent, len(pending))
	for i, ev := range pending {
		evs[i] = pendingEvent{
			SignedEvent: ev,
			FleetName:   h.NS.Lookup(ev.FleetHash),
		}
	}

	return web.Respond(ctx, w, evs, http.StatusOK)
}

// QueryEvent returns the event output with the key.
func (h Handlers) QueryEvent(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	key := web.Param(r, "key")

	ev, err := h.State.QueryEvent(ctx, key)
	if err != nil {
		return err
	}

	resp := event{
		Event:     ev,
		FleetName: h.NS.Lookup(ev.FleetHash),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitEvent validates a signed event on its own and adds it to the
// mempool.
func (h Handlers) SubmitEvent(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	raw, err := web.ReadBody(r, h.State.RetrieveRules().EventsMaxBytes)
	if err != nil {
		return malformed(err)
	}

	ev, err := h.State.SubmitEvent(ctx, raw)
	if err != nil {
		return fmt.Errorf("submit event: %w", err)
	}

	h.Log.Infow("submit event", "traceid", v.TraceID, "hash", ev.Hash, "type", ev.Type, "fleet", h.NS.Lookup(ev.FleetHash))

	return web.Respond(ctx, w, ev, http.StatusAccepted)
}

// MiningProgress returns what every probe goroutine last reported.
func (h Handlers) MiningProgress(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	progress := []worker.Progress{}
	if h.Progress != nil {
		progress = h.Progress.All()
	}

	resp := struct {
		Mining     bool              `json:"mining"`
		MinerFleet string            `json:"miner_fleet,omitempty"`
		MinerName  string            `json:"miner_name,omitempty"`
		Pending    int               `json:"pending"`
		Progress   []worker.Progress `json:"progress"`
	}{
		Mining:   h.State.CanMine(),
		Pending:  h.State.QueryMempoolLength(),
		Progress: progress,
	}

	if resp.Mining {
		resp.MinerFleet = h.State.MinerFleet()
		resp.MinerName = h.NS.Lookup(resp.MinerFleet)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SignalMining asks the worker to start a mining operation.
func (h Handlers) SignalMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.State.Worker == nil || !h.State.CanMine() {
		return errs.NewTrusted(fmt.Errorf("this node does not mine"), http.StatusConflict)
	}

	h.State.Worker.SignalStartMining()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "mining signalled",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Events handles a web socket to provide ledger events to a client. The
// kinds query value narrows the feed, for example kinds=starlog,event.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var kinds []string
	if k := web.Query(r, "kinds", ""); k != "" {
		kinds = strings.Split(k, ",")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID, kinds...)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteJSON(msg); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
