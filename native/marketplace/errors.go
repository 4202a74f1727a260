package marketplace

import (
	"errors"

	"hgigs/native/bank"
	nativecommon "hgigs/native/common"
)

var (
	ErrNotFound           = errors.New("marketplace: not found")
	ErrUnauthorized       = errors.New("marketplace: unauthorized")
	ErrPaused             = nativecommon.ErrModulePaused
	ErrNotPaused          = errors.New("marketplace: not paused")
	ErrInactiveGig        = errors.New("marketplace: gig is not active")
	ErrSelfOrder          = errors.New("marketplace: cannot order your own gig")
	ErrIncorrectAmount    = errors.New("marketplace: incorrect payment amount")
	ErrAlreadyPaid        = errors.New("marketplace: order is already paid")
	ErrAlreadyCompleted   = errors.New("marketplace: order is already completed")
	ErrAlreadyReleased    = errors.New("marketplace: payment already released")
	ErrNotCompleted       = errors.New("marketplace: order is not completed")
	ErrNotPaid            = errors.New("marketplace: order is not paid")
	ErrAlreadyInitialized = errors.New("marketplace: already initialized")
	ErrNotInitialized     = errors.New("marketplace: not initialized")
	ErrInvalidPrice       = errors.New("marketplace: invalid price")
	ErrInvalidInput       = errors.New("marketplace: invalid input")
	ErrInvalidFee         = errors.New("marketplace: invalid fee")
	ErrReentrant          = errors.New("marketplace: reentrant call")
	ErrInsufficientFunds  = bank.ErrInsufficientFunds

	errNilState   = errors.New("marketplace engine: state not configured")
	errNilFunding = errors.New("marketplace engine: funding not configured")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "NOT_FOUND"},
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrPaused, "PAUSED"},
	{ErrNotPaused, "NOT_PAUSED"},
	{ErrInactiveGig, "INACTIVE_GIG"},
	{ErrSelfOrder, "SELF_ORDER"},
	{ErrIncorrectAmount, "INCORRECT_AMOUNT"},
	{ErrAlreadyPaid, "ALREADY_PAID"},
	{ErrAlreadyCompleted, "ALREADY_COMPLETED"},
	{ErrAlreadyReleased, "ALREADY_RELEASED"},
	{ErrNotCompleted, "NOT_COMPLETED"},
	{ErrNotPaid, "NOT_PAID"},
	{ErrAlreadyInitialized, "ALREADY_INITIALIZED"},
	{ErrNotInitialized, "NOT_INITIALIZED"},
	{ErrInvalidPrice, "INVALID_PRICE"},
	{ErrInvalidInput, "INVALID_INPUT"},
	{ErrInvalidFee, "INVALID_FEE"},
	{ErrReentrant, "REENTRANT"},
	{ErrInsufficientFunds, "INSUFFICIENT_FUNDS"},
	{bank.ErrInvalidAmount, "INVALID_INPUT"},
}

// Code maps err onto a stable identifier suitable for API responses and
// metric labels. Unknown errors map to "INTERNAL".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return "INTERNAL"
}
