package state

import (
	"errors"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	starLogsAdmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cryptoverse",
		Name:      "star_logs_admitted_total",
		Help:      "Star logs added to the ledger.",
	})

	eventsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cryptoverse",
		Name:      "events_accepted_total",
		Help:      "Events accepted on their own into the mempool.",
	})

	rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cryptoverse",
		Name:      "rejections_total",
		Help:      "Submissions rejected, by kind and reason.",
	}, []string{"kind", "reason"})

	mempoolGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cryptoverse",
		Name:      "mempool_events",
		Help:      "Events waiting for a star log.",
	})
)

var reasons = []struct {
	err  error
	name string
}{
	{database.ErrMalformedInput, "malformed_input"},
	{database.ErrInvalidSignature, "invalid_signature"},
	{database.ErrInvalidHash, "invalid_hash"},
	{database.ErrDuplicateEntry, "duplicate_entry"},
	{database.ErrDuplicateOutputKey, "duplicate_output_key"},
	{database.ErrUnknownAncestor, "unknown_ancestor"},
	{database.ErrUnknownInput, "unknown_input"},
	{database.ErrOriginMissing, "origin_missing"},
	{database.ErrUnknownStarSystem, "unknown_star_system"},
	{database.ErrAlreadySpent, "already_spent"},
	{database.ErrRuleViolation, "rule_violation"},
	{database.ErrDifficultyMismatch, "difficulty_mismatch"},
	{database.ErrHeightMismatch, "height_mismatch"},
}

// rejected counts the failed submission and returns the error unchanged.
func (s *State) rejected(kind string, err error) error {
	reason := "internal"
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			reason = r.name
			break
		}
	}

	rejections.WithLabelValues(kind, reason).Inc()

	return err
}
