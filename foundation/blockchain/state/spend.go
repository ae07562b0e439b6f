package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/database"
)

// checkSpends decides, for every input, whether the event it consumes is
// spendable in the history of the admission. Spent status is never stored,
// it is derived from the bindings of the signatures that created and
// consumed the event.
func (s *State) checkSpends(ctx context.Context, ad admission, inputs []database.Event) error {
	for _, in := range inputs {
		if _, exists := ad.spent[in.Key]; exists {
			return fmt.Errorf("%w: %s is consumed twice in the submission", database.ErrAlreadySpent, in.Key)
		}

		if err := s.checkOrigin(ctx, ad, in); err != nil {
			return err
		}

		if err := s.checkConsumers(ctx, ad, in); err != nil {
			return err
		}

		ad.spent[in.Key] = struct{}{}
	}

	return nil
}

// checkOrigin requires the signature that created the event to be bound to
// a star log in the history, below the admission height.
func (s *State) checkOrigin(ctx context.Context, ad admission, in database.Event) error {
	if in.Origin == "" {
		return fmt.Errorf("%w: %s has no origin", database.ErrOriginMissing, in.Key)
	}

	binds, err := ad.tx.Bindings(ctx, in.Origin)
	if err != nil {
		return err
	}

	for _, b := range binds {
		if b.Height < ad.height && ad.ancestry.Contains(b.ChainID, b.Height) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s is not confirmed in this lineage", database.ErrOriginMissing, in.Key)
}

// checkConsumers rejects the input if any signature that ever consumed the
// event is bound to a star log in the history, below the admission height.
func (s *State) checkConsumers(ctx context.Context, ad admission, in database.Event) error {
	consumers, err := ad.tx.Consumers(ctx, in.Key)
	if err != nil {
		return err
	}

	for _, sigHash := range consumers {
		binds, err := ad.tx.Bindings(ctx, sigHash)
		if err != nil {
			return err
		}

		for _, b := range binds {
			if b.Height < ad.height && ad.ancestry.Contains(b.ChainID, b.Height) {
				return fmt.Errorf("%w: %s was consumed by %s in star log %s", database.ErrAlreadySpent, in.Key, sigHash, b.StarLogHash)
			}
		}
	}

	return nil
}
