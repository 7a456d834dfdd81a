package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Checkin struct {
	bun.BaseModel `bun:"table:checkins"`

	CheckinID   string    `bun:"checkin_id,pk" json:"checkin_id"`
	ItemID      string    `bun:"item_id,notnull,unique" json:"item_id"`
	CheckedInBy string    `bun:"checked_in_by" json:"checked_in_by,omitempty"`
	CheckedInAt time.Time `bun:"checked_in_at,notnull" json:"checked_in_at"`
}

type CheckinRequest struct {
	Credential  string `json:"credential"`
	CheckedInBy string `json:"checked_in_by,omitempty"`
}

// BoardingPass is the summary returned to staff on a successful scan.
type BoardingPass struct {
	TicketReference string    `json:"ticket_reference"`
	PassengerName   string    `json:"passenger_name"`
	ScheduleID      string    `json:"schedule_id"`
	TierID          string    `json:"tier_id"`
	SeatID          string    `json:"seat_id,omitempty"`
	CheckedInAt     time.Time `json:"checked_in_at"`
	AlreadyScanned  bool      `json:"already_scanned"`
}
