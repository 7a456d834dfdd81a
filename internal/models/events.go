package models

import "time"

// BookingEvent is published to Kafka on booking lifecycle transitions so the
// notification service can email/SMS the customer.
type BookingEvent struct {
	Type       string        `json:"type"`
	BookingID  string        `json:"booking_id"`
	UserID     string        `json:"user_id"`
	ScheduleID string        `json:"schedule_id"`
	Status     BookingStatus `json:"status"`
	AmountKobo int64         `json:"amount_kobo"`
	Timestamp  time.Time     `json:"timestamp"`
}
