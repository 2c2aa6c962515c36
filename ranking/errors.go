package ranking

import "errors"

// Business outcomes surfaced verbatim to members. These are expected
// results of a command, not system faults, and are never retried.
var (
	ErrNotFound           = errors.New("no stats recorded for this member")
	ErrPreconditionFailed = errors.New("member is not in the right state for that change")
	ErrNotEligible        = errors.New("promotion requirements are not met")
	ErrCapReached         = errors.New("no free slots remain for that role")
	ErrNotAuthorized      = errors.New("only Advisors and Rulers can validate promotions")
	ErrNotAssigned        = errors.New("member does not hold that role")
	ErrAlreadyRequested   = errors.New("contribution request already recorded")
	ErrWrongRank          = errors.New("member holds the wrong rank for that change")
	ErrInvalidArgument    = errors.New("invalid argument")
)

// ErrStoreUnavailable wraps collaborator failures. Command handlers show a
// generic failure message for it instead of internal detail.
var ErrStoreUnavailable = errors.New("stat store unavailable")

// IsBusiness reports whether err is an expected business outcome whose
// message is safe to show to members as-is.
func IsBusiness(err error) bool {
	for _, e := range []error{
		ErrNotFound, ErrPreconditionFailed, ErrNotEligible, ErrCapReached,
		ErrNotAuthorized, ErrNotAssigned, ErrAlreadyRequested, ErrWrongRank,
		ErrInvalidArgument,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
