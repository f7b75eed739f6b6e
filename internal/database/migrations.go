package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createSchoolsTable,
		createEventsTable,
		createTablesTable,
		createRegistrationsTable,
		createUserBansTable,
		createCheckInsTable,
		createRegistrationIndexes,
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

const createSchoolsTable = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
CREATE TABLE IF NOT EXISTS schools (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    name VARCHAR(255) NOT NULL,
    slug VARCHAR(255) UNIQUE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    school_id UUID NOT NULL REFERENCES schools(id) ON DELETE CASCADE,
    title VARCHAR(500) NOT NULL,
    event_type VARCHAR(20) NOT NULL DEFAULT 'CAPACITY_BASED',
    status VARCHAR(20) NOT NULL DEFAULT 'OPEN',
    capacity INTEGER NOT NULL DEFAULT 0,
    spots_reserved INTEGER NOT NULL DEFAULT 0,
    max_spots_per_person INTEGER NOT NULL DEFAULT 10,
    cancellation_deadline_hours INTEGER NOT NULL DEFAULT 24,
    check_in_token VARCHAR(64) UNIQUE,
    required_fields TEXT[] NOT NULL DEFAULT '{}',
    start_at TIMESTAMPTZ NOT NULL,
    end_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (event_type IN ('CAPACITY_BASED', 'TABLE_BASED')),
    CHECK (status IN ('OPEN', 'CLOSED', 'COMPLETED')),
    CHECK (spots_reserved >= 0)
);`

const createTablesTable = `
CREATE TABLE IF NOT EXISTS tables (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    table_number INTEGER NOT NULL,
    capacity INTEGER NOT NULL,
    min_order INTEGER NOT NULL DEFAULT 1,
    status VARCHAR(20) NOT NULL DEFAULT 'AVAILABLE',
    table_order INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(event_id, table_number),
    CHECK (status IN ('AVAILABLE', 'RESERVED', 'INACTIVE')),
    CHECK (capacity > 0),
    CHECK (min_order > 0 AND min_order <= capacity)
);`

const createRegistrationsTable = `
CREATE TABLE IF NOT EXISTS registrations (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    phone_number VARCHAR(20) NOT NULL,
    status VARCHAR(20) NOT NULL,
    spots_count INTEGER NOT NULL DEFAULT 1,
    guests_count INTEGER,
    waitlist_priority INTEGER,
    confirmation_code VARCHAR(12) UNIQUE NOT NULL,
    cancellation_token TEXT UNIQUE NOT NULL,
    assigned_table_id UUID REFERENCES tables(id) ON DELETE SET NULL,
    form_data JSONB NOT NULL DEFAULT '{}',
    cancelled_at TIMESTAMPTZ,
    cancelled_by VARCHAR(20),
    cancellation_reason TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('CONFIRMED', 'WAITLIST', 'CANCELLED')),
    CHECK (spots_count > 0),
    CHECK (cancelled_by IS NULL OR cancelled_by IN ('CUSTOMER', 'ADMIN'))
);`

const createUserBansTable = `
CREATE TABLE IF NOT EXISTS user_bans (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    school_id UUID NOT NULL REFERENCES schools(id) ON DELETE CASCADE,
    phone_number VARCHAR(20) NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    expires_at TIMESTAMPTZ,
    banned_games_count INTEGER NOT NULL DEFAULT 0,
    events_blocked INTEGER NOT NULL DEFAULT 0,
    reason TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (expires_at IS NOT NULL OR banned_games_count > 0)
);`

const createCheckInsTable = `
CREATE TABLE IF NOT EXISTS check_ins (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    registration_id UUID UNIQUE NOT NULL REFERENCES registrations(id) ON DELETE CASCADE,
    checked_in_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    undone_at TIMESTAMPTZ,
    is_late BOOLEAN NOT NULL DEFAULT FALSE
);`

const createRegistrationIndexes = `
CREATE INDEX IF NOT EXISTS registrations_event_status_idx
    ON registrations (event_id, status);
CREATE INDEX IF NOT EXISTS registrations_event_phone_idx
    ON registrations (event_id, phone_number);
CREATE INDEX IF NOT EXISTS tables_event_status_idx
    ON tables (event_id, status);
CREATE INDEX IF NOT EXISTS user_bans_school_phone_idx
    ON user_bans (school_id, phone_number) WHERE active;`
