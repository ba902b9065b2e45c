package syncqueue

import (
	"errors"
	"fmt"

	"github.com/celestiaorg/syncqueue/types"
)

// ParentValidator checks a candidate chain before the queue commits to it.
//
// chain[0] is the frontier header the candidate hangs from, followed by the
// candidate headers in ascending order. A nil error accepts the chain.
// ValidateChain is called with the queue lock held and must not call back
// into the queue.
type ParentValidator interface {
	ValidateChain(chain []*types.Header) error
}

// ParentValidatorFunc adapts a function to ParentValidator.
type ParentValidatorFunc func(chain []*types.Header) error

// ValidateChain calls f(chain).
func (f ParentValidatorFunc) ValidateChain(chain []*types.Header) error {
	return f(chain)
}

// LinkageValidator accepts chains where every header is well formed and
// builds on the previous one: parent hash, consecutive number and a time
// that does not go backwards.
type LinkageValidator struct{}

var _ ParentValidator = LinkageValidator{}

// ValidateChain implements ParentValidator.
func (LinkageValidator) ValidateChain(chain []*types.Header) error {
	if len(chain) == 0 {
		return errors.New("empty chain")
	}
	for i, h := range chain {
		if err := h.ValidateBasic(); err != nil {
			return fmt.Errorf("header #%d: %w", h.Number, err)
		}
		if i == 0 {
			continue
		}
		parent := chain[i-1]
		if h.ParentHash != parent.Hash() {
			return fmt.Errorf("header #%d: parent hash %v, expected %v", h.Number, h.ParentHash.Short(), parent.Hash().Short())
		}
		if h.Number != parent.Number+1 {
			return fmt.Errorf("header #%d follows #%d", h.Number, parent.Number)
		}
		if h.Time.Before(parent.Time) {
			return fmt.Errorf("header #%d: time %v before parent time %v", h.Number, h.Time, parent.Time)
		}
	}
	return nil
}
