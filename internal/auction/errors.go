package auction

import (
	"errors"
	"fmt"
)

// ErrorCode is the bid-placement error taxonomy. All of these are expected
// business outcomes; genuine store failures travel as wrapped errors instead.
type ErrorCode string

const (
	CodeInvalidAuctionID ErrorCode = "INVALID_AUCTION_ID"
	CodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	CodeAuctionNotFound  ErrorCode = "AUCTION_NOT_FOUND"
	CodeAuctionNotLive   ErrorCode = "AUCTION_NOT_LIVE"
	CodeBidTooLow        ErrorCode = "BID_TOO_LOW"
	// CodeConflictRetry is the only code meaning "try again, nothing is
	// wrong": the bounded retry budget lost every race.
	CodeConflictRetry ErrorCode = "CONFLICT_RETRY"
)

// BidError is a rejected bid with enough numeric context for the client to
// resubmit correctly without another round trip.
type BidError struct {
	Code             ErrorCode
	Message          string
	MinRequired      *int64
	CurrentBidAmount *int64
}

func (e *BidError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether the caller may resubmit unchanged.
func (e *BidError) Retryable() bool {
	return e.Code == CodeConflictRetry
}

// AsBidError unwraps err into a *BidError when it carries one.
func AsBidError(err error) (*BidError, bool) {
	var bidErr *BidError
	if errors.As(err, &bidErr) {
		return bidErr, true
	}
	return nil, false
}

func newBidError(code ErrorCode, format string, args ...any) *BidError {
	return &BidError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Admin guard sentinels. Handlers map these to client errors; anything else
// coming out of the guard is a store failure.
var (
	ErrValidation      = errors.New("invalid auction definition")
	ErrScheduleOverlap = errors.New("call slot overlaps another auction")
	ErrTermsLocked     = errors.New("commercial terms are locked once bids exist")
	ErrNotSettleable   = errors.New("auction cannot be settled")
	ErrConflict        = errors.New("auction was modified concurrently")
)
