package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/rules"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
	"github.com/ardanlabs/cryptoverse/foundation/blockchain/worker"
	"github.com/spf13/cobra"
)

var (
	probePrevious   string
	probeHeight     uint64
	probeDifficulty uint32
	probeFudge      int
	probeMeta       string
	probeTime       int64
	probeEvents     string
	probeWorkers    int
	probeTimeout    time.Duration
	probeURL        string
	probeSubmit     bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Mine a star log locally",
	Long: `Mine a star log locally with a pool of probe goroutines.

Events are read from a file holding a JSON array of signed events, in the
order they go into the star log.`,
	RunE: probeRun,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringVar(&probePrevious, "previous", signature.ZeroHash, "Hash of the previous star log.")
	probeCmd.Flags().Uint64Var(&probeHeight, "height", 0, "Height of the star log.")
	probeCmd.Flags().Uint32Var(&probeDifficulty, "difficulty", rules.Default().DifficultyStart, "Packed difficulty.")
	probeCmd.Flags().IntVar(&probeFudge, "fudge", 0, "Difficulty fudge the node runs with.")
	probeCmd.Flags().StringVar(&probeMeta, "meta", "", "Meta text.")
	probeCmd.Flags().Int64Var(&probeTime, "time", 0, "Star log time in unix seconds, defaults to now.")
	probeCmd.Flags().StringVarP(&probeEvents, "events", "e", "", "File with the signed events.")
	probeCmd.Flags().IntVarP(&probeWorkers, "workers", "w", 0, "Probe goroutines, 0 uses every CPU.")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 0, "Give up after this long, 0 never does.")
	probeCmd.Flags().StringVarP(&probeURL, "url", "u", "http://localhost:8080", "Url of the node.")
	probeCmd.Flags().BoolVarP(&probeSubmit, "submit", "s", false, "Submit the star log to the node.")
}

func probeRun(cmd *cobra.Command, args []string) error {
	r := rules.Default()
	r.DifficultyFudge = probeFudge

	r, err := rules.New(r)
	if err != nil {
		return err
	}

	var evs []database.SignedEvent
	if probeEvents != "" {
		data, err := os.ReadFile(probeEvents)
		if err != nil {
			return fmt.Errorf("reading events: %w", err)
		}
		if err := json.Unmarshal(data, &evs); err != nil {
			return fmt.Errorf("decoding events: %w", err)
		}
	}

	for i := range evs {
		evs[i].Index = i
	}

	tm := probeTime
	if tm == 0 {
		tm = time.Now().Unix()
	}

	sl := database.StarLog{
		PreviousHash: probePrevious,
		Height:       probeHeight,
		Version:      r.Version,
		Difficulty:   probeDifficulty,
		Time:         tm,
		Meta:         probeMeta,
		Events:       evs,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, probeTimeout)
		defer cancel()
	}

	progress := worker.NewMemoryProgress()

	cfg := worker.ProbeConfig{
		Codec:    r.Codec(),
		Workers:  probeWorkers,
		Progress: progress,
	}

	start := time.Now()
	mined, err := worker.Probe(ctx, cfg, sl.Seal())
	if err != nil {
		return fmt.Errorf("probing: %w", err)
	}

	var tries uint64
	for _, p := range progress.All() {
		tries += p.Tries
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "nonce %d found after %d tries in %v\n", mined.Nonce, tries, time.Since(start).Round(time.Millisecond))

	data, err := json.Marshal(mined)
	if err != nil {
		return err
	}

	if probeSubmit {
		if data, err = submit(probeURL, "/v1/starlogs", data); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
