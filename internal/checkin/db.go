package checkin

import (
	"context"
	"database/sql"
	"errors"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetItemByReference(ctx context.Context, ticketReference string) (*models.BookingItem, error) {
	var item models.BookingItem
	err := d.Bun.NewSelect().
		Model(&item).
		Where("ticket_reference = ?", ticketReference).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (d *DB) SearchItemsByPassenger(ctx context.Context, name string) ([]models.BookingItem, error) {
	var items []models.BookingItem
	err := d.Bun.NewSelect().
		Model(&items).
		Where("passenger_name LIKE ?", "%"+name+"%").
		Where("status = ?", models.ItemActive).
		Order("passenger_name").
		Limit(25).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (d *DB) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("booking_id = ?", bookingID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// InsertCheckin writes the attendance record. The unique item_id constraint
// plus ON CONFLICT DO NOTHING makes the insert the exactly-once gate: a
// losing concurrent scan sees zero rows affected.
func (d *DB) InsertCheckin(ctx context.Context, checkin *models.Checkin) (bool, error) {
	res, err := d.Bun.NewInsert().
		Model(checkin).
		On("CONFLICT (item_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (d *DB) GetCheckinByItem(ctx context.Context, itemID string) (*models.Checkin, error) {
	var checkin models.Checkin
	err := d.Bun.NewSelect().
		Model(&checkin).
		Where("item_id = ?", itemID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &checkin, nil
}
