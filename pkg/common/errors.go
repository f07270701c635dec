package common

import (
	"errors"
	"net/http"
)

// Domain error kinds surfaced by the dispatch core. Transport handlers map
// them to HTTP status codes; nothing in the core retries them.
var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrDriverNotFound  = errors.New("driver not found")
	ErrOfferNotFound   = errors.New("offer not found")

	// ErrOfferGone means the offer is no longer pending: it was already
	// accepted, declined, expired or cancelled. Callers poll for current state.
	ErrOfferGone = errors.New("offer no longer pending")

	// ErrOfferExpired means the deadline passed during accept; the offer is
	// flipped to expired in the same transaction.
	ErrOfferExpired = errors.New("offer expired")

	// ErrBookingTerminal means the operation is not valid from a terminal
	// booking state.
	ErrBookingTerminal = errors.New("booking in terminal state")

	// ErrInvalidTransition means the requested booking status change is not in
	// the transition table for the current state.
	ErrInvalidTransition = errors.New("invalid booking transition")

	// ErrDriverIneligible means the acting driver is not on the offer or does
	// not satisfy the eligibility gates.
	ErrDriverIneligible = errors.New("driver not eligible")

	// ErrRaceLost means a concurrent dispatch won the unique-pending-per-booking
	// race; the caller re-reads and returns the existing pending offer.
	ErrRaceLost = errors.New("concurrent dispatch won the race")

	// ErrStoreUnavailable wraps backing-store failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// AppError carries an HTTP status alongside a domain error.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError creates a new AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// StatusFor maps a domain error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrDriverNotFound),
		errors.Is(err, ErrOfferNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOfferGone),
		errors.Is(err, ErrOfferExpired),
		errors.Is(err, ErrRaceLost):
		return http.StatusConflict
	case errors.Is(err, ErrBookingTerminal),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrDriverIneligible):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
