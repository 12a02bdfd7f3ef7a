package deal

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrDealNotFound means the deal is absent in cache, graph store
	// and registry.
	ErrDealNotFound = errors.New("deal not found")
	// ErrNotPending rejects activation of a deal that already left the
	// pending state.
	ErrNotPending = errors.New("deal is not pending")
	// ErrNotActive rejects renewal of a deal that is not active.
	ErrNotActive = errors.New("deal is not active")
	// ErrDealExpired rejects renewal of a deal past its expiry.
	ErrDealExpired = errors.New("deal has expired")
	// ErrAlreadyTerminated rejects a second termination. Termination
	// is not idempotent.
	ErrAlreadyTerminated = errors.New("deal already terminated")
	// ErrTerminateNotAllowed rejects termination by anyone other than
	// the owning client or an admin.
	ErrTerminateNotAllowed = errors.New("actor may not terminate this deal")
	// ErrInvalidTier rejects an unknown pricing tier.
	ErrInvalidTier = errors.New("unknown tier")
	// ErrNotRegistered means the operation needs an on-chain record
	// the deal does not have.
	ErrNotRegistered = errors.New("deal is not registered on-chain")
)

// PaymentError is a fatal payment verification or settlement failure.
// It is always surfaced to the caller.
type PaymentError struct {
	Reason string
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment error: %s", e.Reason)
}

// LedgerError is a fatal registry failure. Activation never partially
// succeeds past it.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}
