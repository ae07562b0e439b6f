package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/state"
)

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation assembles a star log from the mempool on top of the best
// chain head, searches for its nonce and adds it to the ledger.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	if !w.state.CanMine() {
		w.evHandler("worker: runMiningOperation: MINING: no miner fleet")
		return
	}

	// After running a mining operation, check if a new operation should
	// be signaled again.
	defer func() {
		if w.isShutdown() {
			return
		}

		length := w.state.QueryMempoolLength()
		if w.cfg.Continuous || length > 0 {
			w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: events[%d]", length)
			w.SignalStartMining()
		}
	}()

	// If mining is signalled to be cancelled by the SubmitStarLog function,
	// this G can't terminate until it is told it can.
	var wait chan struct{}
	defer func() {
		if wait != nil {
			w.evHandler("worker: runMiningOperation: MINING: termination signal: waiting")
			<-wait
			w.evHandler("worker: runMiningOperation: MINING: termination signal: received")
		}
	}()

	// Drain the cancel mining channel before starting.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	// Create a context so mining can be cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Can't return from this function until these G's are complete.
	var wg sync.WaitGroup
	wg.Add(2)

	// This G exists to cancel the mining operation.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		select {
		case wait = <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
		case <-ctx.Done():
		}
	}()

	// This G is performing the mining.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		t := time.Now()
		err := w.mine(ctx)
		duration := time.Since(t)

		w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", duration)

		if err != nil {
			switch {
			case ctx.Err() != nil:
				w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
			default:
				w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
			}
		}
	}()

	// Wait for both G's to terminate.
	wg.Wait()
}

// mine performs one assemble, probe and admit cycle. A pending event that
// made the star log fail is dropped from the mempool so the next cycle can
// succeed.
func (w *Worker) mine(ctx context.Context) error {
	sl, err := w.state.AssembleStarLog(ctx)
	if err != nil {
		return err
	}

	cfg := ProbeConfig{
		Codec:       w.state.RetrieveRules().Codec(),
		Workers:     w.cfg.Workers,
		Progress:    w.cfg.Progress,
		ReportEvery: w.cfg.ReportEvery,
	}

	mined, err := Probe(ctx, cfg, sl)
	if err != nil {
		return err
	}

	w.evHandler("worker: mine: MINING: SOLVED: hash[%s]: nonce[%d]", mined.Hash, mined.Nonce)

	// A star log that arrived while the nonce was found may have replaced
	// the head this one was built on. It is still a valid sibling.
	if _, err := w.state.AdmitStarLog(ctx, mined); err != nil {
		var ee *state.EventError
		if errors.As(err, &ee) && ee.Index > 0 {
			w.evHandler("worker: mine: MINING: evicting event[%s]: %s", ee.Hash, ee.Err)
			w.state.RemovePending(ee.Hash)
		}
		return err
	}

	return nil
}
