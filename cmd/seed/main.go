package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medagenda/clinic-scheduling/internal/db"
)

var log = zerolog.New(os.Stderr).With().Timestamp().Str("service", "seed").Logger()

func main() {
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 10, 1)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	siteID := uuid.New()
	if err := seedSite(context.Background(), pool, siteID); err != nil {
		log.Fatal().Err(err).Msg("seed site")
	}

	professionals, err := seedProfessionals(context.Background(), pool, 25)
	if err != nil {
		log.Fatal().Err(err).Msg("seed professionals")
	}
	patients, err := seedPatients(context.Background(), pool, 2000)
	if err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedWorkingHours(context.Background(), pool, professionals); err != nil {
		log.Fatal().Err(err).Msg("seed working hours")
	}
	if err := seedAppointments(context.Background(), pool, siteID, professionals, patients); err != nil {
		log.Fatal().Err(err).Msg("seed appointments")
	}
	if err := seedBlocks(context.Background(), pool, professionals); err != nil {
		log.Fatal().Err(err).Msg("seed blocks")
	}

	log.Info().Msg("seed complete")
}

func seedSite(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO sites (id, name, created_at, updated_at)
		VALUES ($1, $2, now(), now())
	`, id, gofakeit.Company()+" Clinic")
	return err
}

func seedProfessionals(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding professionals")

	specialties := []string{
		"Dermatology",
		"Physiotherapy",
		"General Practice",
		"Dentistry",
		"Aesthetic Medicine",
		"Nutrition",
		"Podiatry",
		"Psychology",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO professionals (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, specialty)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Info().Msg("professionals seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500
	ids := make([]uuid.UUID, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()
			phone := gofakeit.Phone()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, name, email, phone)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Info().Int("done", end).Int("total", count).Msg("patients seeded batch")
	}

	return ids, nil
}

// seedWorkingHours gives every professional a Monday-Friday template:
// mornings 09:00-13:00 and, for most, afternoons 14:00-18:00.
func seedWorkingHours(ctx context.Context, pool *pgxpool.Pool, professionals []uuid.UUID) error {
	log.Info().Msg("seeding working hours")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, profID := range professionals {
		hasAfternoons := gofakeit.Number(0, 9) < 8
		for weekday := 1; weekday <= 5; weekday++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO working_hours (professional_id, weekday, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)
			`, profID, weekday, 9*60, 13*60)
			if err != nil {
				return err
			}
			if hasAfternoons {
				_, err := tx.Exec(ctx, `
					INSERT INTO working_hours (professional_id, weekday, start_minute, end_minute)
					VALUES ($1, $2, $3, $4)
				`, profID, weekday, 14*60, 18*60)
				if err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit(ctx)
}

// seedAppointments books non-overlapping visits over the next two weeks by
// stepping through each professional's mornings in 30-minute increments.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, siteID uuid.UUID, professionals, patients []uuid.UUID) error {
	log.Info().Msg("seeding appointments")

	statuses := []string{"scheduled", "scheduled", "confirmed", "confirmed", "cancelled"}
	now := time.Now()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	total := 0
	for _, profID := range professionals {
		for dayOffset := 1; dayOffset <= 14; dayOffset++ {
			day := now.AddDate(0, 0, dayOffset)
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				continue
			}
			morning := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, time.Local)

			// Fill roughly half the morning slots.
			for slot := 0; slot < 8; slot++ {
				if gofakeit.Bool() {
					continue
				}
				start := morning.Add(time.Duration(slot*30) * time.Minute)
				end := start.Add(30 * time.Minute)
				patient := patients[gofakeit.Number(0, len(patients)-1)]
				status := statuses[gofakeit.Number(0, len(statuses)-1)]
				id := uuid.New()

				_, err := tx.Exec(ctx, `
					INSERT INTO appointments (
						id, patient_id, professional_id, site_id, start_time, end_time,
						status, notes, version, created_at, updated_at
					)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, now(), now())
				`, id, patient, profID, siteID, start, end, status, gofakeit.Sentence(6))
				if err != nil {
					return err
				}

				_, err = tx.Exec(ctx, `
					INSERT INTO appointment_history (appointment_id, occurred_at, actor, description)
					VALUES ($1, now(), 'seed', 'created')
				`, id)
				if err != nil {
					return err
				}
				total++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info().Int("count", total).Msg("appointments seeded")
	return nil
}

func seedBlocks(ctx context.Context, pool *pgxpool.Pool, professionals []uuid.UUID) error {
	log.Info().Msg("seeding blocks")

	reasons := []string{"vacation", "training", "maintenance", "meeting"}
	now := time.Now()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, profID := range professionals {
		if gofakeit.Number(0, 2) != 0 {
			continue
		}
		day := now.AddDate(0, 0, gofakeit.Number(3, 20))
		start := time.Date(day.Year(), day.Month(), day.Day(), 14, 0, 0, 0, time.Local)
		end := start.Add(4 * time.Hour)

		_, err := tx.Exec(ctx, `
			INSERT INTO blocks (id, professional_id, resource, start_time, end_time, reason)
			VALUES ($1, $2, NULL, $3, $4, $5)
		`, uuid.New(), profID, start, end, reasons[gofakeit.Number(0, len(reasons)-1)])
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
