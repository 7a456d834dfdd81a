package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("no booking item matches the credential")
	ErrNotConfirmed = errors.New("booking is not confirmed")
)

type DBLayer interface {
	GetItemByReference(ctx context.Context, ticketReference string) (*models.BookingItem, error)
	SearchItemsByPassenger(ctx context.Context, name string) ([]models.BookingItem, error)
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	InsertCheckin(ctx context.Context, checkin *models.Checkin) (bool, error)
	GetCheckinByItem(ctx context.Context, itemID string) (*models.Checkin, error)
}

type Service struct {
	DB     DBLayer
	QR     *QRGenerator
	Logger *logger.Logger
}

func NewService(db DBLayer, qr *QRGenerator, log *logger.Logger) *Service {
	return &Service{DB: db, QR: qr, Logger: log}
}

// CheckIn validates a boarding credential and records attendance exactly
// once. A repeated scan is a normal outcome: the pass comes back flagged
// AlreadyScanned with the original check-in time, and no second record is
// written.
func (s *Service) CheckIn(ctx context.Context, credential, staffID string) (*models.BoardingPass, error) {
	reference := s.resolveCredential(credential)

	item, err := s.DB.GetItemByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if item.Status != models.ItemActive {
		return nil, ErrNotConfirmed
	}

	booking, err := s.DB.GetBooking(ctx, item.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingConfirmed {
		return nil, ErrNotConfirmed
	}

	record := &models.Checkin{
		CheckinID:   uuid.NewString(),
		ItemID:      item.ItemID,
		CheckedInBy: staffID,
		CheckedInAt: time.Now(),
	}
	inserted, err := s.DB.InsertCheckin(ctx, record)
	if err != nil {
		return nil, err
	}
	if !inserted {
		existing, err := s.DB.GetCheckinByItem(ctx, item.ItemID)
		if err != nil {
			return nil, err
		}
		s.Logger.Info("CHECKIN", fmt.Sprintf("repeat scan for %s, first checked in at %s", reference, existing.CheckedInAt.Format(time.RFC3339)))
		return boardingPass(item, existing.CheckedInAt, true), nil
	}

	s.Logger.Info("CHECKIN", fmt.Sprintf("passenger %s checked in for schedule %s", item.PassengerName, item.ScheduleID))
	return boardingPass(item, record.CheckedInAt, false), nil
}

// Search is the manual fallback over the same uniqueness guarantee:
// read-only lookup by ticket reference or passenger name.
func (s *Service) Search(ctx context.Context, query string) ([]models.BookingItem, error) {
	if item, err := s.DB.GetItemByReference(ctx, query); err == nil {
		return []models.BookingItem{*item}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	items, err := s.DB.SearchItemsByPassenger(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items, nil
}

// resolveCredential accepts either an encrypted QR payload or a bare ticket
// reference typed in by staff.
func (s *Service) resolveCredential(credential string) string {
	if s.QR != nil {
		if reference, err := s.QR.DecodeCredential(credential); err == nil {
			return reference
		}
	}
	return credential
}

func boardingPass(item *models.BookingItem, checkedInAt time.Time, alreadyScanned bool) *models.BoardingPass {
	return &models.BoardingPass{
		TicketReference: item.TicketReference,
		PassengerName:   item.PassengerName,
		ScheduleID:      item.ScheduleID,
		TierID:          item.TierID,
		SeatID:          item.SeatID,
		CheckedInAt:     checkedInAt,
		AlreadyScanned:  alreadyScanned,
	}
}
