// Package database persists durable booking records in SQLite. The key-value
// store only keeps reservations until their TTL; once a reservation converts
// into a booking, the record here is what survives.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"slothold/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("booking record not found")

type DB struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	// Создаем директорию для БД, если её нет
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS booking_records (
            booking_id TEXT PRIMARY KEY,
            reservation_id TEXT NOT NULL,
            slot_datetime DATETIME NOT NULL,
            service_type TEXT NOT NULL,
            holder TEXT NOT NULL,
            converted_at DATETIME NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE INDEX IF NOT EXISTS idx_booking_records_reservation_id ON booking_records(reservation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_records_slot_datetime ON booking_records(slot_datetime)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// RecordBooking upserts the durable row for a finalized conversion. Replaying
// the same booking id is safe.
func (d *DB) RecordBooking(ctx context.Context, rec *models.BookingRecord) error {
	query := `INSERT INTO booking_records (
				booking_id, reservation_id, slot_datetime, service_type, holder, converted_at
			) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(booking_id) DO UPDATE SET
				reservation_id = excluded.reservation_id,
				converted_at = excluded.converted_at`
	_, err := d.db.ExecContext(ctx, query,
		rec.BookingID,
		rec.ReservationID,
		rec.Datetime.UTC().Format(time.RFC3339),
		rec.ServiceType,
		rec.Holder,
		rec.ConvertedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record booking: %w", err)
	}
	return nil
}

// GetBookingRecord returns the record for a booking id.
func (d *DB) GetBookingRecord(ctx context.Context, bookingID string) (*models.BookingRecord, error) {
	query := `SELECT booking_id, reservation_id, slot_datetime, service_type, holder, converted_at
			FROM booking_records WHERE booking_id = ?`

	var rec models.BookingRecord
	var slotDatetime, convertedAt string
	err := d.db.QueryRowContext(ctx, query, bookingID).Scan(
		&rec.BookingID,
		&rec.ReservationID,
		&slotDatetime,
		&rec.ServiceType,
		&rec.Holder,
		&convertedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking record: %w", err)
	}

	if rec.Datetime, err = time.Parse(time.RFC3339, slotDatetime); err != nil {
		return nil, fmt.Errorf("failed to parse slot datetime: %w", err)
	}
	if rec.ConvertedAt, err = time.Parse(time.RFC3339, convertedAt); err != nil {
		return nil, fmt.Errorf("failed to parse converted_at: %w", err)
	}
	return &rec, nil
}

// ListRecentBookings returns up to limit records, newest conversions first.
func (d *DB) ListRecentBookings(ctx context.Context, limit int) ([]*models.BookingRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT booking_id, reservation_id, slot_datetime, service_type, holder, converted_at
			FROM booking_records ORDER BY converted_at DESC LIMIT ?`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list booking records: %w", err)
	}
	defer rows.Close()

	var records []*models.BookingRecord
	for rows.Next() {
		var rec models.BookingRecord
		var slotDatetime, convertedAt string
		if err := rows.Scan(
			&rec.BookingID,
			&rec.ReservationID,
			&slotDatetime,
			&rec.ServiceType,
			&rec.Holder,
			&convertedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan booking record: %w", err)
		}
		if rec.Datetime, err = time.Parse(time.RFC3339, slotDatetime); err != nil {
			return nil, fmt.Errorf("failed to parse slot datetime: %w", err)
		}
		if rec.ConvertedAt, err = time.Parse(time.RFC3339, convertedAt); err != nil {
			return nil, fmt.Errorf("failed to parse converted_at: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (d *DB) Close() error {
	return d.db.Close()
}
