package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/inventory"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/promo"
	"ms-booking/internal/utils"

	"github.com/google/uuid"
)

var ErrPromoNotFound = errors.New("promo code not found")

type StoreLayer interface {
	CreateHeldBooking(ctx context.Context, booking *models.Booking, items []models.BookingItem) error
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	GetBookingWithItems(ctx context.Context, bookingID string) (*models.BookingWithItems, error)
	GetBookingsByUser(ctx context.Context, userID string) ([]models.BookingWithItems, error)
	GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	CountUserRedemptions(ctx context.Context, code, userID string) (int, error)
	ConfirmBooking(ctx context.Context, bookingID string) (models.BookingStatus, bool, error)
	ExpireBooking(ctx context.Context, bookingID string) (models.BookingStatus, bool, error)
	CancelHeldBooking(ctx context.Context, bookingID string) (models.BookingStatus, bool, error)
	CancelConfirmedBooking(ctx context.Context, bookingID string) (models.BookingStatus, bool, error)
	CompleteBooking(ctx context.Context, bookingID string) (models.BookingStatus, bool, error)
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Booking, error)
	ListEndedConfirmed(ctx context.Context, now time.Time, limit int) ([]models.Booking, error)
	UpdateItemQR(ctx context.Context, itemID string, qr []byte) error
}

type InventoryLayer interface {
	CheckBookable(ctx context.Context, scheduleID string, now time.Time) (*models.TripSchedule, error)
	GetTier(ctx context.Context, tierID string) (*models.PriceTier, error)
}

type SeatLocks interface {
	ReleaseAll(scheduleID string, keys []string, holderID string) error
}

type Publisher interface {
	PublishBookingConfirmed(event models.BookingEvent) error
	PublishBookingExpired(event models.BookingEvent) error
	PublishBookingCancelled(event models.BookingEvent) error
}

type PassIssuer interface {
	GenerateBoardingQR(item models.BookingItem) ([]byte, error)
}

type Service struct {
	Store      StoreLayer
	Inventory  InventoryLayer
	Locks      SeatLocks
	Kafka      Publisher
	Passes     PassIssuer
	HoldWindow time.Duration
	Logger     *logger.Logger
}

func NewService(store StoreLayer, inv InventoryLayer, locks SeatLocks, kafka Publisher, passes PassIssuer, holdWindow time.Duration, log *logger.Logger) *Service {
	return &Service{
		Store:      store,
		Inventory:  inv,
		Locks:      locks,
		Kafka:      kafka,
		Passes:     passes,
		HoldWindow: holdWindow,
		Logger:     log,
	}
}

// CreateBooking validates the schedule, prices the order, evaluates any
// promo code and persists a held booking with a hold window. Capacity and
// seat-uniqueness checks run inside the store transaction, never as a
// separate read step.
func (s *Service) CreateBooking(ctx context.Context, userID string, req models.BookingRequest) (*models.BookingResponse, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("booking must contain at least one passenger")
	}

	now := time.Now()
	schedule, err := s.Inventory.CheckBookable(ctx, req.ScheduleID, now)
	if err != nil {
		return nil, err
	}

	bookingID := uuid.NewString()
	items := make([]models.BookingItem, 0, len(req.Items))
	var subtotal int64

	for _, itemReq := range req.Items {
		tier, err := s.Inventory.GetTier(ctx, itemReq.TierID)
		if err != nil {
			return nil, fmt.Errorf("tier %s: %w", itemReq.TierID, err)
		}
		if tier.ScheduleID != req.ScheduleID {
			return nil, fmt.Errorf("tier %s does not belong to schedule %s: %w",
				itemReq.TierID, req.ScheduleID, inventory.ErrNotFound)
		}
		subtotal += tier.PriceKobo

		items = append(items, models.BookingItem{
			ItemID:          uuid.NewString(),
			BookingID:       bookingID,
			ScheduleID:      req.ScheduleID,
			TierID:          itemReq.TierID,
			SeatID:          itemReq.SeatID,
			PassengerName:   itemReq.PassengerName,
			TicketReference: utils.GenerateTicketReference(),
			PriceKobo:       tier.PriceKobo,
			Status:          models.ItemActive,
		})
	}

	var discount int64
	if req.PromoCode != "" {
		code, err := s.Store.GetPromoCode(ctx, req.PromoCode)
		if errors.Is(err, inventory.ErrNotFound) {
			return nil, ErrPromoNotFound
		}
		if err != nil {
			return nil, err
		}
		prior, err := s.Store.CountUserRedemptions(ctx, req.PromoCode, userID)
		if err != nil {
			return nil, err
		}
		discount, err = promo.Evaluate(code, subtotal, prior, now)
		if err != nil {
			return nil, err
		}
	}

	booking := &models.Booking{
		BookingID:       bookingID,
		UserID:          userID,
		ScheduleID:      req.ScheduleID,
		Status:          models.BookingHeld,
		TotalAmountKobo: subtotal - discount,
		Currency:        schedule.Currency,
		PromoCode:       req.PromoCode,
		DiscountKobo:    discount,
		HoldExpiresAt:   now.Add(s.HoldWindow),
		CreatedAt:       now,
	}

	if err := s.Store.CreateHeldBooking(ctx, booking, items); err != nil {
		return nil, err
	}
	s.Logger.LogBooking("CREATE", bookingID, fmt.Sprintf("held until %s, total %d kobo", booking.HoldExpiresAt.Format(time.RFC3339), booking.TotalAmountKobo))

	return &models.BookingResponse{
		BookingID:       bookingID,
		ScheduleID:      req.ScheduleID,
		Status:          models.BookingHeld,
		TotalAmountKobo: booking.TotalAmountKobo,
		DiscountKobo:    discount,
		Currency:        booking.Currency,
		HoldExpiresAt:   booking.HoldExpiresAt,
		Items:           items,
	}, nil
}

func (s *Service) GetBooking(ctx context.Context, bookingID string) (*models.BookingWithItems, error) {
	return s.Store.GetBookingWithItems(ctx, bookingID)
}

func (s *Service) GetBookingsByUser(ctx context.Context, userID string) ([]models.BookingWithItems, error) {
	return s.Store.GetBookingsByUser(ctx, userID)
}

// Confirm drives held → confirmed after a successful payment. A booking
// already past held is a benign no-op that reports the current state.
func (s *Service) Confirm(ctx context.Context, bookingID string) (models.BookingStatus, error) {
	status, won, err := s.Store.ConfirmBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if !won {
		s.Logger.LogBooking("CONFIRM", bookingID, fmt.Sprintf("no-op, booking already %s", status))
		return status, nil
	}

	s.Logger.LogBooking("CONFIRM", bookingID, "booking confirmed, capacity now permanent")
	s.PostConfirm(ctx, bookingID)
	return status, nil
}

// PostConfirm runs the non-transactional side effects of a confirmation:
// boarding pass QR issue and the confirmed notification event. Called by
// whoever won the transition, inside or outside this service.
func (s *Service) PostConfirm(ctx context.Context, bookingID string) {
	s.issueBoardingPasses(ctx, bookingID)
	s.publish(ctx, bookingID, models.BookingConfirmed)
}

// PostCancel runs the non-transactional side effects of a cancellation.
func (s *Service) PostCancel(ctx context.Context, bookingID string) {
	s.releaseSeatLocks(ctx, bookingID)
	s.publish(ctx, bookingID, models.BookingCancelled)
}

// Cancel handles both the customer cancel of a hold and the refund-path
// cancel of a confirmed booking. Capacity is released either way.
func (s *Service) Cancel(ctx context.Context, bookingID string) (models.BookingStatus, error) {
	status, won, err := s.Store.CancelHeldBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if !won && status == models.BookingConfirmed {
		status, won, err = s.Store.CancelConfirmedBooking(ctx, bookingID)
		if err != nil {
			return "", err
		}
	}
	if !won {
		s.Logger.LogBooking("CANCEL", bookingID, fmt.Sprintf("no-op, booking already %s", status))
		return status, nil
	}

	s.Logger.LogBooking("CANCEL", bookingID, "booking cancelled, capacity released")
	s.PostCancel(ctx, bookingID)
	return status, nil
}

// Expire is the sweeper-driven held → expired transition.
func (s *Service) Expire(ctx context.Context, bookingID string) (models.BookingStatus, error) {
	status, won, err := s.Store.ExpireBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if !won {
		return status, nil
	}

	s.Logger.LogBooking("EXPIRE", bookingID, "hold lapsed, capacity released")
	s.releaseSeatLocks(ctx, bookingID)
	s.publish(ctx, bookingID, models.BookingExpired)
	return status, nil
}

// Complete marks a confirmed booking on an ended sailing as completed.
func (s *Service) Complete(ctx context.Context, bookingID string) (models.BookingStatus, error) {
	status, _, err := s.Store.CompleteBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}
	return status, nil
}

func (s *Service) issueBoardingPasses(ctx context.Context, bookingID string) {
	if s.Passes == nil {
		return
	}
	bwi, err := s.Store.GetBookingWithItems(ctx, bookingID)
	if err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("failed to load items for QR issue on %s: %v", bookingID, err))
		return
	}
	for _, item := range bwi.Items {
		qr, err := s.Passes.GenerateBoardingQR(item)
		if err != nil {
			s.Logger.Error("BOOKING", fmt.Sprintf("QR generation failed for item %s: %v", item.ItemID, err))
			continue
		}
		if err := s.Store.UpdateItemQR(ctx, item.ItemID, qr); err != nil {
			s.Logger.Error("BOOKING", fmt.Sprintf("failed to store QR for item %s: %v", item.ItemID, err))
		}
	}
}

// releaseSeatLocks drops any UX locks still held for the booking's seats so
// the seats show as free immediately rather than after the lock TTL.
func (s *Service) releaseSeatLocks(ctx context.Context, bookingID string) {
	if s.Locks == nil {
		return
	}
	bwi, err := s.Store.GetBookingWithItems(ctx, bookingID)
	if err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("failed to load items for lock release on %s: %v", bookingID, err))
		return
	}
	keys := []string{}
	for _, item := range bwi.Items {
		if item.SeatID != "" {
			keys = append(keys, item.SeatID)
		}
	}
	if len(keys) == 0 {
		return
	}
	// Locks were taken during checkout with the user id as holder, so the
	// owner check only passes when we release as that same user.
	if err := s.Locks.ReleaseAll(bwi.Booking.ScheduleID, keys, bwi.Booking.UserID); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("failed to release seat locks for %s: %v", bookingID, err))
	}
}

// Kafka publish failures never fail a transition; notifications are a
// best-effort collaborator.
func (s *Service) publish(ctx context.Context, bookingID string, status models.BookingStatus) {
	if s.Kafka == nil {
		return
	}
	booking, err := s.Store.GetBooking(ctx, bookingID)
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("failed to load booking %s for event publish: %v", bookingID, err))
		return
	}

	event := models.BookingEvent{
		Type:       "booking." + string(status),
		BookingID:  booking.BookingID,
		UserID:     booking.UserID,
		ScheduleID: booking.ScheduleID,
		Status:     status,
		AmountKobo: booking.TotalAmountKobo,
		Timestamp:  time.Now(),
	}

	switch status {
	case models.BookingConfirmed:
		err = s.Kafka.PublishBookingConfirmed(event)
	case models.BookingExpired:
		err = s.Kafka.PublishBookingExpired(event)
	case models.BookingCancelled:
		err = s.Kafka.PublishBookingCancelled(event)
	}
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("publish %s event for %s failed: %v", status, bookingID, err))
	}
}
