package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ardanlabs/cryptoverse/app/services/node/handlers"
	"github.com/ardanlabs/cryptoverse/business/web/errs"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/rules"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/state"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/worker"
	"github.com/ardanlabs/cryptoverse/foundation/events"
	"github.com/ardanlabs/cryptoverse/foundation/nameservice"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type node struct {
	t     *testing.T
	rules rules.Rules
	mux   http.Handler
}

func newNode(t *testing.T, submitRate float64, submitBurst int) *node {
	t.Helper()

	r := rules.Default()
	r.DifficultyFudge = 8

	r, err := rules.New(r)
	if err != nil {
		t.Fatalf("Should be able to build the rules: %s", err)
	}

	st, err := state.New(state.Config{
		Rules:   r,
		Storage: memory.New(),
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %s", err)
	}
	t.Cleanup(func() { st.Shutdown() })

	ns, err := nameservice.New(t.TempDir())
	if err != nil {
		t.Fatalf("Should be able to construct the name service: %s", err)
	}

	mux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:    make(chan os.Signal, 1),
		Log:         zap.NewNop().Sugar(),
		State:       st,
		NS:          ns,
		Evts:        events.New(),
		Progress:    worker.NewMemoryProgress(),
		SubmitRate:  submitRate,
		SubmitBurst: submitBurst,
	})

	return &node{t: t, rules: r, mux: mux}
}

func (n *node) do(method string, target string, body []byte, into any) int {
	n.t.Helper()

	r := httptest.NewRequest(method, target, bytes.NewReader(body))
	w := httptest.NewRecorder()
	n.mux.ServeHTTP(w, r)

	if into != nil {
		if err := json.NewDecoder(w.Body).Decode(into); err != nil {
			n.t.Fatalf("Should be able to decode the response of %s %s: %s", method, target, err)
		}
	}

	return w.Code
}

func (n *node) genesis() []byte {
	n.t.Helper()

	sl := database.StarLog{
		PreviousHash: signature.ZeroHash,
		Difficulty:   n.rules.DifficultyStart,
		Time:         time.Now().Unix() - 60,
		Meta:         "handlers",
	}

	cfg := worker.ProbeConfig{
		Codec:   n.rules.Codec(),
		Workers: 2,
	}

	mined, err := worker.Probe(context.Background(), cfg, sl.Seal())
	if err != nil {
		n.t.Fatalf("Should be able to mine the genesis star log: %s", err)
	}

	raw, err := json.Marshal(mined)
	if err != nil {
		n.t.Fatalf("Should be able to marshal the star log: %s", err)
	}

	return raw
}

func Test_StarLogs(t *testing.T) {
	n := newNode(t, 0, 0)

	t.Log("Given the need to serve the ledger over HTTP.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen asking for the rules.", testID)
		{
			var got rules.Rules
			if code := n.do(http.MethodGet, "/v1/rules", nil, &got); code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould receive a 200: got %d", failed, testID, code)
			}

			if got.DifficultyStart != n.rules.DifficultyStart || got.ChainsMaxLimit != n.rules.ChainsMaxLimit {
				t.Fatalf("\t%s\tTest %d:\tShould receive the rules: %+v", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould receive the rules.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen submitting a genesis star log.", testID)
		{
			raw := n.genesis()

			var sl database.StarLog
			if code := n.do(http.MethodPost, "/v1/starlogs", raw, &sl); code != http.StatusCreated {
				t.Fatalf("\t%s\tTest %d:\tShould receive a 201: got %d", failed, testID, code)
			}
			t.Logf("\t%s\tTest %d:\tShould receive a 201.", success, testID)

			var er errs.Response
			if code := n.do(http.MethodPost, "/v1/starlogs", raw, &er); code != http.StatusConflict || er.Reason != "DuplicateEntry" {
				t.Fatalf("\t%s\tTest %d:\tShould reject it twice: got %d %+v", failed, testID, code, er)
			}
			t.Logf("\t%s\tTest %d:\tShould reject it twice.", success, testID)

			var heads []database.ChainHead
			if code := n.do(http.MethodGet, "/v1/chains", nil, &heads); code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould receive the chains: got %d", failed, testID, code)
			}

			if len(heads) != 1 || heads[0].Hash != sl.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould have one chain headed by the genesis: %+v", failed, testID, heads)
			}
			t.Logf("\t%s\tTest %d:\tShould have one chain headed by the genesis.", success, testID)

			var sls []database.StarLog
			if code := n.do(http.MethodGet, "/v1/starlogs?limit=5", nil, &sls); code != http.StatusOK || len(sls) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould list the star log: got %d %d", failed, testID, code, len(sls))
			}
			t.Logf("\t%s\tTest %d:\tShould list the star log.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen sending bad queries.", testID)
		{
			var er errs.Response
			if code := n.do(http.MethodGet, "/v1/starlogs?limit=0", nil, &er); code != http.StatusBadRequest || er.Fields["limit"] == "" {
				t.Fatalf("\t%s\tTest %d:\tShould reject a zero limit: got %d %+v", failed, testID, code, er)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a zero limit.", success, testID)

			er = errs.Response{}
			if code := n.do(http.MethodGet, "/v1/starlogs?limit=ten", nil, &er); code != http.StatusBadRequest || er.Reason != "MalformedInput" {
				t.Fatalf("\t%s\tTest %d:\tShould reject a limit that isn't a number: got %d %+v", failed, testID, code, er)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a limit that isn't a number.", success, testID)

			er = errs.Response{}
			if code := n.do(http.MethodGet, "/v1/starlogs?limit=5&since_time=20&before_time=10", nil, &er); code != http.StatusBadRequest || er.Reason != "MalformedInput" {
				t.Fatalf("\t%s\tTest %d:\tShould reject an empty time window: got %d %+v", failed, testID, code, er)
			}
			t.Logf("\t%s\tTest %d:\tShould reject an empty time window.", success, testID)

			er = errs.Response{}
			if code := n.do(http.MethodGet, "/v1/chains?limit=11", nil, &er); code != http.StatusBadRequest || er.Reason != "MalformedInput" {
				t.Fatalf("\t%s\tTest %d:\tShould reject a limit above the maximum: got %d %+v", failed, testID, code, er)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a limit above the maximum.", success, testID)

			er = errs.Response{}
			if code := n.do(http.MethodGet, "/v1/events/nowhere", nil, &er); code != http.StatusNotFound {
				t.Fatalf("\t%s\tTest %d:\tShould not find an unknown event: got %d", failed, testID, code)
			}
			t.Logf("\t%s\tTest %d:\tShould not find an unknown event.", success, testID)
		}
	}
}

func Test_Submissions(t *testing.T) {
	n := newNode(t, 1, 1)

	t.Log("Given the need to limit submissions.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a client submits too fast.", testID)
		{
			var er errs.Response
			if code := n.do(http.MethodPost, "/v1/events", []byte(`{`), &er); code != http.StatusBadRequest || er.Reason != "MalformedInput" {
				t.Fatalf("\t%s\tTest %d:\tShould reject a malformed event: got %d %+v", failed, testID, code, er)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a malformed event.", success, testID)

			er = errs.Response{}
			if code := n.do(http.MethodPost, "/v1/events", []byte(`{`), &er); code != http.StatusTooManyRequests {
				t.Fatalf("\t%s\tTest %d:\tShould be rate limited: got %d", failed, testID, code)
			}
			t.Logf("\t%s\tTest %d:\tShould be rate limited.", success, testID)

			var evs []json.RawMessage
			if code := n.do(http.MethodGet, "/v1/events", nil, &evs); code != http.StatusOK || len(evs) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould leave reads unlimited: got %d", failed, testID, code)
			}
			t.Logf("\t%s\tTest %d:\tShould leave reads unlimited.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the node has no miner fleet.", testID)
		{
			var progress struct {
				Mining   bool              `json:"mining"`
				Progress []worker.Progress `json:"progress"`
			}
			if code := n.do(http.MethodGet, "/v1/mining/progress", nil, &progress); code != http.StatusOK || progress.Mining {
				t.Fatalf("\t%s\tTest %d:\tShould report no mining: got %d %+v", failed, testID, code, progress)
			}
			t.Logf("\t%s\tTest %d:\tShould report no mining.", success, testID)

			var er errs.Response
			if code := n.do(http.MethodPost, "/v1/mining/signal", nil, &er); code != http.StatusConflict {
				t.Fatalf("\t%s\tTest %d:\tShould refuse to mine: got %d", failed, testID, code)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse to mine.", success, testID)
		}
	}
}
