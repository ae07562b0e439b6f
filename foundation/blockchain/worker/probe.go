package worker

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/difficulty"
	"golang.org/x/sync/errgroup"
)

// checkEvery is how many nonces a probe goroutine tries between looking at
// the found flag and the clock.
const checkEvery = 1 << 10

// ErrExhausted is returned when every nonce was tried without meeting the
// difficulty.
var ErrExhausted = errors.New("nonce space exhausted")

// ProbeConfig represents the settings of a nonce search.
type ProbeConfig struct {
	Codec       difficulty.Codec
	Workers     int
	Progress    ProgressStore
	ReportEvery time.Duration
	StartNonce  uint64
}

// Probe searches for a nonce that makes the star log meet its difficulty.
// The nonce space is striped across the workers, the first one to succeed
// stops the rest. The returned star log carries the nonce and final hash.
func Probe(ctx context.Context, cfg ProbeConfig, sl database.StarLog) (database.StarLog, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	prefix := sl.Header(false)

	var found atomic.Bool
	var nonce atomic.Uint64

	g, gctx := errgroup.WithContext(ctx)

	for id := range workers {
		g.Go(func() error {
			p := prober{
				id:       id,
				cfg:      cfg,
				starLog:  sl.Hash,
				prefix:   prefix,
				packed:   sl.Difficulty,
				stride:   uint64(workers),
				found:    &found,
				winner:   &nonce,
				started:  time.Now(),
				reported: time.Now(),
			}
			return p.run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return database.StarLog{}, err
	}

	// The group context is always done once Wait returns, only the caller's
	// context tells a cancellation apart from an exhausted search.
	if !found.Load() {
		if err := ctx.Err(); err != nil {
			return database.StarLog{}, err
		}
		return database.StarLog{}, ErrExhausted
	}

	sl.Nonce = nonce.Load()
	sl.Hash = sl.ComputeHash()

	return sl, nil
}

// =============================================================================

// prober is the state of one probe goroutine.
type prober struct {
	id       int
	cfg      ProbeConfig
	starLog  string
	prefix   string
	packed   uint32
	stride   uint64
	found    *atomic.Bool
	winner   *atomic.Uint64
	started  time.Time
	reported time.Time
	tries    uint64
}

func (p *prober) run(ctx context.Context) error {
	start := p.cfg.StartNonce + uint64(p.id)

	for n := start; n >= start; n += p.stride {
		if p.tries%checkEvery == 0 {
			if p.found.Load() || ctx.Err() != nil {
				return nil
			}
			p.report(false, 0)
		}

		hash := database.HashWithNonce(p.prefix, n)
		p.tries++

		ok, err := p.cfg.Codec.MeetsTarget(hash, p.packed)
		if err != nil {
			return err
		}

		if ok {
			if p.found.CompareAndSwap(false, true) {
				p.winner.Store(n)
				p.report(true, n)
			}
			return nil
		}
	}

	// The stride wrapped past the top of the nonce space.
	return nil
}

// report stores the progress if the report interval has passed. Errors from
// the store are dropped.
func (p *prober) report(found bool, nonce uint64) {
	if p.cfg.Progress == nil {
		return
	}

	now := time.Now()
	if !found && now.Sub(p.reported) < p.cfg.ReportEvery {
		return
	}
	p.reported = now

	elapsed := now.Sub(p.started)

	var hps float64
	if secs := elapsed.Seconds(); secs > 0 {
		hps = float64(p.tries) / secs
	}

	p.cfg.Progress.Put(ProgressKey(p.id), Progress{
		Worker:          p.id,
		StarLog:         p.starLog,
		Tries:           p.tries,
		HashesPerSecond: hps,
		ElapsedMinutes:  elapsed.Minutes(),
		Found:           found,
		Nonce:           nonce,
		Updated:         now,
	})
}
