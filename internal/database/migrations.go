package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createExtensions,
		createAccommodationsTable,
		createAmenitiesTable,
		createReservationsTable,
		createReservationsIndexes,
		createPaymentsTable,
		createBlockedDateRangesTable,
		createReservationActivitiesTable,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

// btree_gist is required for TEXT equality inside the exclusion constraint
const createExtensions = `
CREATE EXTENSION IF NOT EXISTS btree_gist;`

const createAccommodationsTable = `
CREATE TABLE IF NOT EXISTS accommodations (
    id TEXT PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    type VARCHAR(50) NOT NULL,
    capacity INTEGER NOT NULL DEFAULT 1,
    day_rate BIGINT NOT NULL DEFAULT 0,
    night_rate BIGINT NOT NULL DEFAULT 0,
    extra_person_rate BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createAmenitiesTable = `
CREATE TABLE IF NOT EXISTS amenities (
    id TEXT PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    price BIGINT NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE
);`

const createReservationsTable = `
CREATE TABLE IF NOT EXISTS reservations (
    id BIGSERIAL PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    accommodation_id TEXT NOT NULL REFERENCES accommodations(id),
    guest_user_id TEXT,
    guest_name VARCHAR(200) NOT NULL,
    guest_email VARCHAR(255) NOT NULL DEFAULT '',
    guest_phone VARCHAR(50) NOT NULL DEFAULT '',
    start_at TIMESTAMPTZ NOT NULL,
    end_at TIMESTAMPTZ NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    payment_status VARCHAR(20) NOT NULL DEFAULT 'PARTIALLY_PAID',
    payment_method VARCHAR(50) NOT NULL DEFAULT '',
    guests INTEGER NOT NULL DEFAULT 1,
    entrance_adult INTEGER NOT NULL DEFAULT 0,
    entrance_child INTEGER NOT NULL DEFAULT 0,
    entrance_pwd_senior INTEGER NOT NULL DEFAULT 0,
    amenities JSONB NOT NULL DEFAULT '[]',
    amount_accommodation BIGINT NOT NULL DEFAULT 0,
    amount_entrance BIGINT NOT NULL DEFAULT 0,
    amount_amenities BIGINT NOT NULL DEFAULT 0,
    amount_extra_person BIGINT NOT NULL DEFAULT 0,
    amount_total BIGINT NOT NULL DEFAULT 0,
    amount_paid BIGINT NOT NULL DEFAULT 0,
    reschedule JSONB,
    walk_in BOOLEAN NOT NULL DEFAULT FALSE,
    reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (start_at < end_at),
    CHECK (status IN ('PENDING', 'CONFIRMED', 'CANCELLED', 'COMPLETED', 'RESCHEDULED', 'ARCHIVED')),
    CHECK (amount_total = amount_accommodation + amount_entrance + amount_amenities + amount_extra_person),
    CONSTRAINT reservations_no_overlap EXCLUDE USING gist (
        accommodation_id WITH =,
        tstzrange(start_at, end_at, '[)') WITH &&
    ) WHERE (status <> 'CANCELLED')
);`

const createReservationsIndexes = `
CREATE INDEX IF NOT EXISTS reservations_status_start_idx ON reservations (status, start_at);
CREATE INDEX IF NOT EXISTS reservations_status_end_idx ON reservations (status, end_at);
CREATE INDEX IF NOT EXISTS reservations_accommodation_idx ON reservations (accommodation_id, start_at);`

const createPaymentsTable = `
CREATE TABLE IF NOT EXISTS payments (
    id BIGSERIAL PRIMARY KEY,
    intent_id TEXT NOT NULL UNIQUE,
    reservation_code TEXT NOT NULL,
    amount BIGINT NOT NULL,
    method VARCHAR(50) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS payments_reservation_code_idx ON payments (reservation_code);`

const createBlockedDateRangesTable = `
CREATE TABLE IF NOT EXISTS blocked_date_ranges (
    id UUID PRIMARY KEY,
    accommodation_id TEXT REFERENCES accommodations(id) ON DELETE CASCADE,
    start_at TIMESTAMPTZ NOT NULL,
    end_at TIMESTAMPTZ NOT NULL,
    kind VARCHAR(20) NOT NULL DEFAULT 'BLACKOUT',
    reason TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (start_at < end_at),
    CHECK (kind IN ('BLACKOUT', 'MAINTENANCE'))
);`

const createReservationActivitiesTable = `
CREATE TABLE IF NOT EXISTS reservation_activities (
    id BIGSERIAL PRIMARY KEY,
    reservation_code TEXT NOT NULL,
    kind VARCHAR(40) NOT NULL,
    description TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS reservation_activities_code_idx ON reservation_activities (reservation_code, created_at);`
