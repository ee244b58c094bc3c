// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by
// someone else, while ErrOutOfStock signals that no sellable unit
// remains for the requested restaurant and date.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrOutOfStock is returned by the inventory reserve path when the
// effective quantity for a (restaurant, date) is exhausted or sales
// are suspended. Handlers should translate this into an HTTP 409
// response before any payment authorization is attempted.
var ErrOutOfStock = errors.New("out of stock")

// ErrInvalidTransition is returned when a conditional status update
// does not match the current row state, i.e. another actor already
// moved the reservation out of the expected status. The attempted
// change has no side effects.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrOverrideBelowReserved is returned when a merchant tries to set a
// daily override quantity below the number of non-cancelled
// reservations already bound to that date.
var ErrOverrideBelowReserved = errors.New("override quantity below reserved count")
