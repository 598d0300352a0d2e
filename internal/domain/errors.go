package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
)

// CapacityError reports a cart line that would push an instance past its
// event's maxAttendees. Remaining is surfaced verbatim to the client.
type CapacityError struct {
	EventID    uuid.UUID
	EventTitle string
	Remaining  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("not enough tickets available for event: %s. Available spots: %d", e.EventTitle, e.Remaining)
}

// CapError reports a per-user purchase cap violation for one event.
type CapError struct {
	EventID       uuid.UUID
	AlreadyBooked int
	Cap           int
}

func (e *CapError) Error() string {
	return fmt.Sprintf("ticket limit of %d reached for this event, already booked: %d", e.Cap, e.AlreadyBooked)
}

type PaymentProviderError struct {
	Err error
}

func (e *PaymentProviderError) Error() string {
	return "payment provider: " + e.Err.Error()
}

func (e *PaymentProviderError) Unwrap() error {
	return e.Err
}
