package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
)

type OrderStatus string

const (
	OrderConfirmed OrderStatus = "Confirmed"
	OrderCancelled OrderStatus = "Cancelled"
)

// The two status axes are independent: payment capture can still be pending
// on a confirmed order. Completed, Failed and Cancelled are terminal.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentPending && (next == PaymentCompleted || next == PaymentFailed)
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderConfirmed && next == OrderCancelled
}

// CartLine is one (instance, quantity, price) tuple submitted for purchase.
// EventID is the parent event, carried so the purchase cap can be enforced
// per event across all of its instances.
type CartLine struct {
	InstanceID uuid.UUID
	EventID    uuid.UUID
	Name       string
	Quantity   int
	Price      float64
}

type Cart struct {
	UserID      string
	Lines       []CartLine
	TotalAmount float64
}

func (c Cart) Validate() error {
	if c.UserID == "" || len(c.Lines) == 0 {
		return ErrInvalidInput
	}
	for _, l := range c.Lines {
		if l.InstanceID == uuid.Nil || l.Quantity <= 0 || l.Price < 0 {
			return ErrInvalidInput
		}
	}
	return nil
}

func NewOrder(cart Cart, payment PaymentStatus) Order {
	lines := make([]OrderLine, len(cart.Lines))
	for i, l := range cart.Lines {
		lines[i] = OrderLine{
			InstanceID: l.InstanceID,
			EventID:    l.EventID,
			Quantity:   l.Quantity,
			Price:      l.Price,
		}
	}
	return Order{
		ID:            uuid.New(),
		UserID:        cart.UserID,
		Lines:         lines,
		TotalAmount:   cart.TotalAmount,
		PaymentStatus: payment,
		OrderStatus:   OrderConfirmed,
		CreatedAt:     time.Now(),
	}
}
