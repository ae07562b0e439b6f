// Package handlers contains the full set of handler functions and routes
// supported by the viewer.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/ardanlabs/cryptoverse/business/web/v1/mid"
	"github.com/ardanlabs/cryptoverse/foundation/web"
	"go.uber.org/zap"
)

// UIMux constructs an http.Handler with all application routes defined. The
// page it serves follows the star log feed of the node at nodeURL.
func UIMux(build string, shutdown chan os.Signal, log *zap.SugaredLogger, nodeURL string) (*web.App, error) {
	app := web.NewApp(
		shutdown,
		mid.Logger(log),
		mid.Errors(log),
		mid.Panics(),
		mid.Cors("*"),
	)

	// Register the index page for the website.
	ig, err := newIndex(build, nodeURL)
	if err != nil {
		return nil, fmt.Errorf("loading index template: %w", err)
	}
	app.Handle(http.MethodGet, "", "/", ig.handler)

	// Liveness for whatever runs the viewer.
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.Respond(ctx, w, struct {
			Status string `json:"status"`
			Build  string `json:"build"`
		}{"up", build}, http.StatusOK)
	}
	app.Handle(http.MethodGet, "", "/liveness", h)

	return app, nil
}
