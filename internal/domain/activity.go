package domain

import (
	"time"

	"github.com/google/uuid"
)

type Activity struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	City        string    `json:"city"`
	Venue       string    `json:"venue"`
	CreatedAt   time.Time `json:"created_at"`

	// Populated on detail/list reads.
	Attendees []Attendee `json:"attendees,omitempty"`
	Comments  []Comment  `json:"comments,omitempty"`
	IsGoing   bool       `json:"is_going"`
	IsHost    bool       `json:"is_host"`
}

// AttendanceRecord is keyed by (ActivityID, UserID).
type AttendanceRecord struct {
	ActivityID uuid.UUID `json:"activity_id"`
	UserID     uuid.UUID `json:"user_id"`
	IsHost     bool      `json:"is_host"`
	JoinedAt   time.Time `json:"joined_at"`
}

// Attendee is an attendance record joined with the attendee's profile.
type Attendee struct {
	UserID      uuid.UUID `json:"-"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Image       *string   `json:"image,omitempty"`
	IsHost      bool      `json:"is_host"`
	Following   bool      `json:"following"`
	JoinedAt    time.Time `json:"joined_at"`
}

// ActivityFilter pages by the (After, AfterID) keyset. A nil AfterID makes
// After an exclusive date bound.
type ActivityFilter struct {
	After     *time.Time
	AfterID   *uuid.UUID
	StartDate *time.Time
	IsGoing   bool
	IsHost    bool
	Limit     int
}
