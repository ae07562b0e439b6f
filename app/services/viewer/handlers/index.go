package handlers

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/ardanlabs/cryptoverse/foundation/web"
)

//go:embed views
var views embed.FS

type index struct {
	page []byte
}

// newIndex renders the index page once, it never changes while the viewer
// runs.
func newIndex(build string, nodeURL string) (index, error) {
	u, err := url.Parse(nodeURL)
	if err != nil || u.Host == "" {
		return index{}, fmt.Errorf("node url %q is not valid", nodeURL)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/events/ws"
	u.RawQuery = "kinds=starlog,event"

	tmpl, err := template.ParseFS(views, "views/index.html")
	if err != nil {
		return index{}, err
	}

	data := struct {
		Build  string
		NodeWS string
	}{
		Build:  build,
		NodeWS: u.String(),
	}

	var b bytes.Buffer
	if err := tmpl.Execute(&b, data); err != nil {
		return index{}, err
	}

	return index{page: b.Bytes()}, nil
}

func (ig index) handler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := web.SetStatusCode(ctx, http.StatusOK); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(ig.page); err != nil {
		return fmt.Errorf("write index page: %w", err)
	}

	return nil
}
