package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/milifusa/mumpabackend-sub000/internal"
)

type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger internal.Logger
}

func NewPostgresStorage(dsn string, logger internal.Logger) (*PostgresStorage, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	return &PostgresStorage{pool: pool, logger: logger}, nil
}

// --- SleepEventRepository ---

func (p *PostgresStorage) SaveEvent(ctx context.Context, event *internal.SleepEvent) error {
	pauses, err := json.Marshal(event.Pauses)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO sleep_events
		(id, child_id, type, start_time, end_time, duration_minutes, gross_duration_minutes, pauses, quality, wake_ups, location, temperature, noise_level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		event.ID, event.ChildID, event.Type, event.StartTime, event.EndTime,
		event.DurationMinutes, event.GrossDurationMinutes, pauses, event.Quality,
		event.WakeUps, event.Location, event.Temperature, event.NoiseLevel, event.CreatedAt)
	if err != nil {
		p.logger.Errorf("failed to insert sleep event: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) UpdateEvent(ctx context.Context, event *internal.SleepEvent) error {
	pauses, err := json.Marshal(event.Pauses)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `UPDATE sleep_events SET
		end_time = $2, duration_minutes = $3, gross_duration_minutes = $4,
		pauses = $5, quality = $6, wake_ups = $7
		WHERE id = $1`,
		event.ID, event.EndTime, event.DurationMinutes, event.GrossDurationMinutes,
		pauses, event.Quality, event.WakeUps)
	if err != nil {
		p.logger.Errorf("failed to update sleep event: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStorage) GetEvent(ctx context.Context, id string) (*internal.SleepEvent, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, child_id, type, start_time, end_time, duration_minutes, gross_duration_minutes, pauses, quality, wake_ups, location, temperature, noise_level, created_at
		FROM sleep_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		p.logger.Errorf("sleep event not found: %v", err)
		return nil, err
	}
	return e, nil
}

func (p *PostgresStorage) ListEventsSince(ctx context.Context, childID string, since time.Time) ([]internal.SleepEvent, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, child_id, type, start_time, end_time, duration_minutes, gross_duration_minutes, pauses, quality, wake_ups, location, temperature, noise_level, created_at
		FROM sleep_events WHERE child_id = $1 AND start_time >= $2 ORDER BY start_time ASC`, childID, since)
	if err != nil {
		p.logger.Errorf("failed to query sleep events: %v", err)
		return nil, err
	}
	defer rows.Close()

	events := []internal.SleepEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			p.logger.Errorf("failed to scan sleep event: %v", err)
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func scanEvent(row pgx.Row) (*internal.SleepEvent, error) {
	var e internal.SleepEvent
	var pauses []byte
	if err := row.Scan(&e.ID, &e.ChildID, &e.Type, &e.StartTime, &e.EndTime,
		&e.DurationMinutes, &e.GrossDurationMinutes, &pauses, &e.Quality,
		&e.WakeUps, &e.Location, &e.Temperature, &e.NoiseLevel, &e.CreatedAt); err != nil {
		return nil, err
	}
	if len(pauses) > 0 {
		if err := json.Unmarshal(pauses, &e.Pauses); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

// --- ChildRepository ---

func (p *PostgresStorage) SaveChild(ctx context.Context, child *internal.ChildProfile) error {
	stats, err := json.Marshal(child.SleepStats)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO children
		(id, user_id, name, birth_date, is_unborn, gestation_weeks, sleep_stats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, birth_date = EXCLUDED.birth_date,
		is_unborn = EXCLUDED.is_unborn, gestation_weeks = EXCLUDED.gestation_weeks,
		sleep_stats = EXCLUDED.sleep_stats`,
		child.ID, child.UserID, child.Name, child.BirthDate, child.IsUnborn,
		child.GestationWeeks, stats, child.CreatedAt)
	if err != nil {
		p.logger.Errorf("failed to upsert child: %v", err)
		return err
	}
	return nil
}

func (p *PostgresStorage) UpdateChild(ctx context.Context, child *internal.ChildProfile) error {
	return p.SaveChild(ctx, child)
}

func (p *PostgresStorage) GetChild(ctx context.Context, id string) (*internal.ChildProfile, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, user_id, name, birth_date, is_unborn, gestation_weeks, sleep_stats, created_at
		FROM children WHERE id = $1`, id)
	var c internal.ChildProfile
	var stats []byte
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.BirthDate, &c.IsUnborn,
		&c.GestationWeeks, &stats, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		p.logger.Errorf("child not found: %v", err)
		return nil, err
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &c.SleepStats); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// --- UserRepository ---

func (p *PostgresStorage) GetUserByToken(ctx context.Context, token string) (*internal.User, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, token, name FROM users WHERE token = $1`, token)
	var u internal.User
	if err := row.Scan(&u.ID, &u.Token, &u.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		p.logger.Errorf("user not found: %v", err)
		return nil, err
	}
	return &u, nil
}

// --- Compile-time assertions ---
var _ SleepEventRepository = (*PostgresStorage)(nil)
var _ ChildRepository = (*PostgresStorage)(nil)
var _ UserRepository = (*PostgresStorage)(nil)
