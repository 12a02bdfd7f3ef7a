package service

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/scobru/shogun-relay/deal"
	"github.com/scobru/shogun-relay/proof"
)

var (
	errSystem         = errors.New("system error")
	ErrInvalidRequest = errors.New("invalid request")
	errInvalidCID     = errors.New("invalid content identifier")
	errMissingDealRef = errors.New("missing deal id or cid")
	errSyncDisabled   = errors.New("sync job is not configured")
)

// ErrorCode maps every error the API can surface to its stable
// numeric code.
var ErrorCode = map[error]int{
	errSystem:         1000,
	ErrInvalidRequest: 1001,
	errInvalidCID:     1002,
	errMissingDealRef: 1003,
	errSyncDisabled:   1004,

	deal.ErrDealNotFound:        1100,
	deal.ErrInvalidTier:         1101,
	deal.ErrNotPending:          1102,
	deal.ErrNotActive:           1103,
	deal.ErrDealExpired:         1104,
	deal.ErrAlreadyTerminated:   1105,
	deal.ErrTerminateNotAllowed: 1106,
	deal.ErrNotRegistered:       1107,

	proof.ErrContentNotFound: 1200,
}

var httpStatus = map[error]int{
	errSystem:         http.StatusInternalServerError,
	ErrInvalidRequest: http.StatusBadRequest,
	errInvalidCID:     http.StatusBadRequest,
	errMissingDealRef: http.StatusBadRequest,
	errSyncDisabled:   http.StatusConflict,

	deal.ErrDealNotFound:        http.StatusNotFound,
	deal.ErrInvalidTier:         http.StatusBadRequest,
	deal.ErrNotPending:          http.StatusConflict,
	deal.ErrNotActive:           http.StatusConflict,
	deal.ErrDealExpired:         http.StatusConflict,
	deal.ErrAlreadyTerminated:   http.StatusConflict,
	deal.ErrTerminateNotAllowed: http.StatusForbidden,
	deal.ErrNotRegistered:       http.StatusConflict,

	proof.ErrContentNotFound: http.StatusNotFound,
}

// Lookup resolves an error to its numeric code and HTTP status,
// unwrapping to find a known sentinel. Payment and ledger failures
// carry their own types.
func Lookup(err error) (int, int) {
	for known, code := range ErrorCode {
		if errors.Is(err, known) {
			return code, httpStatus[known]
		}
	}

	var paymentErr *deal.PaymentError
	if errors.As(err, &paymentErr) {
		return 1300, http.StatusPaymentRequired
	}

	var ledgerErr *deal.LedgerError
	if errors.As(err, &ledgerErr) {
		return 1301, http.StatusBadGateway
	}

	return ErrorCode[errSystem], http.StatusInternalServerError
}
