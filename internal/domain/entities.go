package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID         uuid.UUID
	ExternalID string
	Name       string
	Email      string
	Phone      string
	Address    string
	Role       Role
}

type Event struct {
	ID                uuid.UUID
	OrganizerID       string
	Title             string
	Description       string
	StartsAt          time.Time
	Location          string
	MaxAttendees      int
	TicketPrice       float64
	Recurrence        Recurrence
	RecurrenceEnd     time.Time
	NeedVolunteers    bool
	NeedSponsorship   bool
	SponsorshipTarget float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (e Event) IsRecurring() bool {
	return e.Recurrence != RecurrenceNone
}

type EventInstance struct {
	ID          uuid.UUID
	EventID     uuid.UUID
	StartsAt    time.Time
	Location    string
	TicketsSold int
}

type Order struct {
	ID            uuid.UUID
	UserID        string
	Lines         []OrderLine
	TotalAmount   float64
	PaymentStatus PaymentStatus
	OrderStatus   OrderStatus
	SessionID     string
	CreatedAt     time.Time
}

type OrderLine struct {
	InstanceID uuid.UUID
	EventID    uuid.UUID
	Quantity   int
	Price      float64
}

type Volunteer struct {
	ID          uuid.UUID
	EventID     uuid.UUID
	UserID      string
	AccessLevel string
	CreatedAt   time.Time
}

type Sponsorship struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	SponsorID string
	Amount    float64
	Status    SponsorshipStatus
	SessionID string
	CreatedAt time.Time
}

type SponsorshipStatus string

const (
	SponsorshipPending   SponsorshipStatus = "Pending"
	SponsorshipCompleted SponsorshipStatus = "Completed"
)

type OrganizerRequest struct {
	ID        uuid.UUID
	UserID    string
	Message   string
	Status    RequestStatus
	CreatedAt time.Time
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestApproved RequestStatus = "Approved"
	RequestRejected RequestStatus = "Rejected"
)

// EventQuery is an audience question about an event, routed to its organizer.
type EventQuery struct {
	ID          uuid.UUID
	EventID     uuid.UUID
	OrganizerID string
	UserID      string
	Email       string
	Query       string
	CreatedAt   time.Time
}

type Review struct {
	ID        uuid.UUID
	Name      string
	Rating    int
	Review    string
	CreatedAt time.Time
}

type NewsletterSubscriber struct {
	Email        string
	SubscribedAt time.Time
}
