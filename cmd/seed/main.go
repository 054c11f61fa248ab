package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/caregrid/scheduling/internal/db"
	"github.com/caregrid/scheduling/internal/scheduling"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS providers (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		specialty TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS facilities (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		timezone TEXT NOT NULL DEFAULT 'UTC',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS slots (
		id UUID PRIMARY KEY,
		provider_id UUID NOT NULL REFERENCES providers(id),
		facility_id UUID NOT NULL REFERENCES facilities(id),
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT 'FREE',
		appointment_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT slot_end_gt_start CHECK (end_time > start_time),
		CONSTRAINT uniq_provider_start UNIQUE (provider_id, start_time)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_provider_start_free
		ON slots (provider_id, start_time) WHERE status = 'FREE'`,
	`CREATE INDEX IF NOT EXISTS idx_slots_provider_facility_start
		ON slots (provider_id, facility_id, start_time)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id UUID PRIMARY KEY,
		patient_id UUID NOT NULL REFERENCES patients(id),
		provider_id UUID NOT NULL REFERENCES providers(id),
		facility_id UUID NOT NULL REFERENCES facilities(id),
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'REQUESTED',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT appointment_end_gt_start CHECK (end_time > start_time),
		CONSTRAINT uniq_patient_provider_start UNIQUE (patient_id, provider_id, start_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_provider_facility_start
		ON appointments (provider_id, facility_id, start_time)`,
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := ensureSchema(context.Background(), pool); err != nil {
		logger.Fatal().Err(err).Msg("ensure schema")
	}

	gofakeit.Seed(time.Now().UnixNano())

	facilities, err := seedFacilities(context.Background(), pool, 5)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed facilities")
	}
	providers, err := seedProviders(context.Background(), pool, 40)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed providers")
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedSlots(context.Background(), pool, providers, facilities, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed slots")
	}

	logger.Info().Msg("seed complete")
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func seedFacilities(ctx context.Context, pool *pgxpool.Pool, count int) ([]scheduling.Facility, error) {
	timezones := []string{
		"UTC",
		"America/New_York",
		"Europe/London",
		"Asia/Kolkata",
		"Australia/Sydney",
	}

	facilities := make([]scheduling.Facility, 0, count)
	for i := 0; i < count; i++ {
		f := scheduling.Facility{
			ID:       uuid.New(),
			Name:     gofakeit.City() + " " + gofakeit.RandomString([]string{"General Hospital", "Medical Center", "Clinic"}),
			Timezone: timezones[i%len(timezones)],
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO facilities (id, name, timezone)
			VALUES ($1, $2, $3)
		`, f.ID, f.Name, f.Timezone)
		if err != nil {
			return nil, err
		}
		facilities = append(facilities, f)
	}
	return facilities, nil
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) ([]scheduling.Provider, error) {
	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	providers := make([]scheduling.Provider, 0, count)
	for i := 0; i < count; i++ {
		specialty := specialties[i%len(specialties)]
		p := scheduling.Provider{
			ID:        uuid.New(),
			Name:      "Dr. " + gofakeit.Name(),
			Specialty: &specialty,
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO providers (id, name, specialty)
			VALUES ($1, $2, $3)
		`, p.ID, p.Name, p.Specialty)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	for i := 0; i < count; i++ {
		email := gofakeit.Email()
		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, name, email)
			VALUES ($1, $2, $3)
		`, uuid.New(), gofakeit.Name(), email)
		if err != nil {
			return err
		}
	}
	return nil
}

// seedSlots tiles the next seven working days for every provider at one
// facility with 30 minute slots from 09:00 to 17:00 local time.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, providers []scheduling.Provider, facilities []scheduling.Facility, logger zerolog.Logger) error {
	repo := scheduling.NewPgRepository(pool, 2*time.Second)

	opening := scheduling.LocalTime{Hour: 9}
	closing := scheduling.LocalTime{Hour: 17}

	var total int64
	for i, p := range providers {
		facility := facilities[i%len(facilities)]
		loc := scheduling.LocationOf(&facility)

		for day := 1; day <= 7; day++ {
			date := time.Now().In(loc).AddDate(0, 0, day)
			candidates := scheduling.TileDay(p.ID, facility.ID, date, opening, closing, 30*time.Minute, loc)

			inserted, err := repo.BulkInsertSlots(ctx, candidates)
			if err != nil {
				return err
			}
			total += inserted
		}
	}

	logger.Info().Int64("slots", total).Msg("seeded slots")
	return nil
}
