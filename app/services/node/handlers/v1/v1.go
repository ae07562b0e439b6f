// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/cryptoverse/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/cryptoverse/business/web/v1/mid"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/state"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/worker"
	"github.com/ardanlabs/cryptoverse/foundation/events"
	"github.com/ardanlabs/cryptoverse/foundation/nameservice"
	"github.com/ardanlabs/cryptoverse/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log         *zap.SugaredLogger
	State       *state.State
	NS          *nameservice.NameService
	Evts        *events.Events
	Progress    worker.ProgressStore
	SubmitRate  float64
	SubmitBurst int
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:      cfg.Log,
		State:    cfg.State,
		NS:       cfg.NS,
		Evts:     cfg.Evts,
		Progress: cfg.Progress,
	}

	// Submissions run the full validation under the ledger lock.
	var limit []web.Middleware
	if cfg.SubmitRate > 0 {
		limit = append(limit, mid.RateLimit(cfg.SubmitRate, cfg.SubmitBurst))
	}

	app.Handle(http.MethodGet, version, "/rules", pbl.Rules)
	app.Handle(http.MethodGet, version, "/starlogs", pbl.QueryStarLogs)
	app.Handle(http.MethodPost, version, "/starlogs", pbl.SubmitStarLog, limit...)
	app.Handle(http.MethodGet, version, "/chains", pbl.QueryChains)
	app.Handle(http.MethodGet, version, "/events", pbl.QueryPendingEvents)
	app.Handle(http.MethodPost, version, "/events", pbl.SubmitEvent, limit...)
	app.Handle(http.MethodGet, version, "/events/ws", pbl.Events)
	app.Handle(http.MethodGet, version, "/events/:key", pbl.QueryEvent)
	app.Handle(http.MethodGet, version, "/mining/progress", pbl.MiningProgress)
	app.Handle(http.MethodPost, version, "/mining/signal", pbl.SignalMining)
}
