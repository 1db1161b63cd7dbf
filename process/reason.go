package process

import (
	"fmt"

	"github.com/hive2hive/h2h"
)

// RollbackReason is an immutable record describing why a component is being
// rolled back: a human-readable hint, the causal error (if any), the id of
// the component that originated the cancel/failure, and — filled in only if
// the rollback hook itself errors — the rollback error. Error handling §7
// requires both the original and the rollback error to survive to FAILED.
type RollbackReason struct {
	Hint        string
	Cause       error
	OriginID    h2h.ID
	RollbackErr error
}

// NewRollbackReason builds a RollbackReason for the given hint/cause,
// attributed to the component identified by originID.
func NewRollbackReason(hint string, cause error, originID h2h.ID) RollbackReason {
	return RollbackReason{Hint: hint, Cause: cause, OriginID: originID}
}

// WithRollbackError returns a copy of r with RollbackErr set. Used when a
// component's own doRollback hook fails (§7 "rollback failures").
func (r RollbackReason) WithRollbackError(err error) RollbackReason {
	r.RollbackErr = err
	return r
}

func (r RollbackReason) Error() string {
	if r.RollbackErr != nil {
		return fmt.Sprintf("%s (origin %s): %v; rollback also failed: %v", r.Hint, r.OriginID, r.Cause, r.RollbackErr)
	}
	return fmt.Sprintf("%s (origin %s): %v", r.Hint, r.OriginID, r.Cause)
}
