// Package capacity holds the pure allocation math: the decision a
// serializable transaction applies after re-reading the event's counter,
// and the in-order replay the repair job uses to re-derive statuses.
package capacity

import (
	"fmt"

	"kartis/internal/apperrors"
	"kartis/internal/models"
)

// Decision is the outcome of a capacity check.
type Decision struct {
	Status string
}

// CanRegister decides CONFIRMED vs WAITLIST for a request of requestedSpots
// against an event with totalCapacity of which currentReserved are taken.
// Pure and deterministic; no I/O. The transaction engine calls it with
// values re-read inside the transaction.
func CanRegister(currentReserved, totalCapacity, requestedSpots int) (Decision, error) {
	if requestedSpots <= 0 {
		return Decision{}, fmt.Errorf("%w: requested spots must be positive", apperrors.ErrValidation)
	}
	if totalCapacity <= 0 {
		return Decision{}, fmt.Errorf("%w: total capacity must be positive", apperrors.ErrValidation)
	}
	if currentReserved < 0 {
		return Decision{}, fmt.Errorf("%w: current reserved cannot be negative", apperrors.ErrValidation)
	}

	if currentReserved+requestedSpots <= totalCapacity {
		return Decision{Status: models.StatusConfirmed}, nil
	}
	return Decision{Status: models.StatusWaitlist}, nil
}

// Replay re-derives the status of every non-cancelled registration of an
// event by replaying arrival order against the capacity. The input must be
// ordered by creation time ascending. Returns the expected status per
// registration, keyed by index. Deterministic: running it twice over the
// same input yields the same output, which is what makes the repair job
// idempotent.
func Replay(capacity int, spots []int) []string {
	statuses := make([]string, len(spots))
	confirmed := 0
	for i, n := range spots {
		if confirmed+n <= capacity {
			statuses[i] = models.StatusConfirmed
			confirmed += n
		} else {
			statuses[i] = models.StatusWaitlist
		}
	}
	return statuses
}
