package store

import "errors"

var (
	// ErrInvalidObservation is returned when a price or rate update carries a
	// non-positive or otherwise malformed value. The update never reaches the store.
	ErrInvalidObservation = errors.New("invalid observation")

	// ErrUnknownCurrency is returned when a rate update names a fiat the store
	// was not configured with. Rejecting it keeps malformed provider data from
	// growing the rate table without bound.
	ErrUnknownCurrency = errors.New("unknown currency")
)
