package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Trip struct {
	bun.BaseModel `bun:"table:trips"`

	TripID      string    `bun:"trip_id,pk" json:"trip_id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Route       string    `bun:"route" json:"route"`
	DurationMin int       `bun:"duration_min" json:"duration_min"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "active"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

type TripSchedule struct {
	bun.BaseModel `bun:"table:trip_schedules"`

	ScheduleID string         `bun:"schedule_id,pk" json:"schedule_id"`
	TripID     string         `bun:"trip_id,notnull" json:"trip_id"`
	StartTime  time.Time      `bun:"start_time,notnull" json:"start_time"`
	EndTime    time.Time      `bun:"end_time,notnull" json:"end_time"`
	Capacity   int            `bun:"capacity,notnull" json:"capacity"`
	Currency   string         `bun:"currency,notnull" json:"currency"`
	Status     ScheduleStatus `bun:"status,notnull" json:"status"`
}

type PriceTier struct {
	bun.BaseModel `bun:"table:price_tiers"`

	TierID     string `bun:"tier_id,pk" json:"tier_id"`
	ScheduleID string `bun:"schedule_id,notnull" json:"schedule_id"`
	Name       string `bun:"name,notnull" json:"name"`
	PriceKobo  int64  `bun:"price_kobo,notnull" json:"price_kobo"`
	Capacity   int    `bun:"capacity,notnull" json:"capacity"`
	// Reserved counts seats held by non-cancelled booking items. Mutated only
	// by guarded updates inside a booking state transition.
	Reserved int `bun:"reserved,notnull,default:0" json:"reserved"`
}

type TripSeat struct {
	bun.BaseModel `bun:"table:trip_seats"`

	SeatID     string `bun:"seat_id,pk" json:"seat_id"`
	ScheduleID string `bun:"schedule_id,notnull" json:"schedule_id"`
	TierID     string `bun:"tier_id,notnull" json:"tier_id"`
	Label      string `bun:"label,notnull" json:"label"`
	Active     bool   `bun:"active,notnull" json:"active"`
}
