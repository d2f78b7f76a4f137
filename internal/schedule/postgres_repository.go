package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// scheduleDB is the slice of pgxpool.Pool the repository needs; narrow so
// pgxmock can stand in during tests.
type scheduleDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores schedules and time off in the relational database.
type PostgresRepository struct {
	db scheduleDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("schedule: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting a mock database for testing.
func NewPostgresRepositoryWithDB(db scheduleDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateSchedule inserts a new pattern and closes the effective range of any
// still-open pattern for the same staff+weekday, in one transaction.
func (r *PostgresRepository) CreateSchedule(ctx context.Context, req *CreateScheduleRequest) (*StaffSchedule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("schedule: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE staff_schedules
		SET effective_until = $3::date - 1
		WHERE staff_id = $1 AND weekday = $2 AND active AND effective_until IS NULL
	`, req.StaffID, int(req.Weekday), req.EffectiveFrom); err != nil {
		return nil, fmt.Errorf("schedule: supersede pattern: %w", err)
	}

	id := uuid.New()
	var createdAt time.Time
	if err := tx.QueryRow(ctx, `
		INSERT INTO staff_schedules
			(id, staff_id, weekday, start_minutes, end_minutes, break_start_minutes, break_end_minutes,
			 max_appointments, default_duration_minutes, active, effective_from, effective_until, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true, $10, $11, $12)
		RETURNING created_at
	`,
		id,
		req.StaffID,
		int(req.Weekday),
		int(req.StartTime),
		int(req.EndTime),
		minutesOrNil(req.BreakStart),
		minutesOrNil(req.BreakEnd),
		req.MaxAppointments,
		req.DefaultDuration,
		req.EffectiveFrom,
		req.EffectiveUntil,
		req.Notes,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("schedule: insert pattern: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("schedule: commit pattern: %w", err)
	}

	return &StaffSchedule{
		ID:              id.String(),
		StaffID:         req.StaffID,
		Weekday:         req.Weekday,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		BreakStart:      req.BreakStart,
		BreakEnd:        req.BreakEnd,
		MaxAppointments: req.MaxAppointments,
		DefaultDuration: req.DefaultDuration,
		Active:          true,
		EffectiveFrom:   req.EffectiveFrom,
		EffectiveUntil:  req.EffectiveUntil,
		Notes:           req.Notes,
		CreatedAt:       createdAt,
	}, nil
}

const scheduleColumns = `
	id, staff_id, weekday, start_minutes, end_minutes, break_start_minutes, break_end_minutes,
	max_appointments, default_duration_minutes, active, effective_from, effective_until, notes, created_at`

// ListSchedules returns every pattern for the staff member, newest first.
func (r *PostgresRepository) ListSchedules(ctx context.Context, staffID string) ([]*StaffSchedule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM staff_schedules
		WHERE staff_id = $1
		ORDER BY effective_from DESC, weekday
	`, staffID)
	if err != nil {
		return nil, fmt.Errorf("schedule: list patterns: %w", err)
	}
	defer rows.Close()

	out := []*StaffSchedule{}
	for rows.Next() {
		entry, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: list patterns: %w", err)
	}
	return out, nil
}

// ResolveForDate returns the active pattern covering the date.
func (r *PostgresRepository) ResolveForDate(ctx context.Context, staffID string, date time.Time) (*StaffSchedule, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM staff_schedules
		WHERE staff_id = $1
		  AND weekday = $2
		  AND active
		  AND effective_from <= $3
		  AND (effective_until IS NULL OR effective_until >= $3)
		ORDER BY effective_from DESC
		LIMIT 1
	`, staffID, int(date.Weekday()), date)
	entry, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	return entry, nil
}

// CreateTimeOff inserts a new pending time-off request.
func (r *PostgresRepository) CreateTimeOff(ctx context.Context, req *CreateTimeOffRequest) (*TimeOff, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	var createdAt time.Time
	if err := r.db.QueryRow(ctx, `
		INSERT INTO time_off
			(id, staff_id, start_date, end_date, start_minutes, end_minutes, all_day, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		RETURNING created_at
	`,
		id,
		req.StaffID,
		req.StartDate,
		req.EndDate,
		minutesOrNil(req.StartTime),
		minutesOrNil(req.EndTime),
		req.AllDay,
		string(req.Reason),
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("schedule: insert time off: %w", err)
	}

	return &TimeOff{
		ID:        id.String(),
		StaffID:   req.StaffID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		AllDay:    req.AllDay,
		Reason:    req.Reason,
		Status:    TimeOffPending,
		CreatedAt: createdAt,
	}, nil
}

const timeOffColumns = `
	id, staff_id, start_date, end_date, start_minutes, end_minutes, all_day, reason, status, approved_by, created_at`

// DecideTimeOff approves or rejects a pending request. The status guard lives
// in the WHERE clause so two concurrent deciders cannot both win.
func (r *PostgresRepository) DecideTimeOff(ctx context.Context, id string, approve bool, approverID string) (*TimeOff, error) {
	status := TimeOffRejected
	if approve {
		status = TimeOffApproved
	}
	row := r.db.QueryRow(ctx, `
		UPDATE time_off
		SET status = $2, approved_by = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING `+timeOffColumns+`
	`, id, string(status), approverID)
	entry, err := scanTimeOff(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyDecideMiss(ctx, id)
		}
		return nil, err
	}
	return entry, nil
}

// classifyDecideMiss distinguishes "no such entry" from "already decided".
func (r *PostgresRepository) classifyDecideMiss(ctx context.Context, id string) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM time_off WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTimeOffNotFound
		}
		return fmt.Errorf("schedule: load time off status: %w", err)
	}
	return ErrTimeOffDecided
}

// ListTimeOff returns entries overlapping [from, to], oldest first.
func (r *PostgresRepository) ListTimeOff(ctx context.Context, staffID string, from, to time.Time) ([]*TimeOff, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+timeOffColumns+`
		FROM time_off
		WHERE staff_id = $1 AND end_date >= $2 AND start_date <= $3
		ORDER BY start_date
	`, staffID, from, to)
	if err != nil {
		return nil, fmt.Errorf("schedule: list time off: %w", err)
	}
	defer rows.Close()

	out := []*TimeOff{}
	for rows.Next() {
		entry, err := scanTimeOff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: list time off: %w", err)
	}
	return out, nil
}

// TimeOffForDate returns entries overlapping one calendar date.
func (r *PostgresRepository) TimeOffForDate(ctx context.Context, staffID string, date time.Time) ([]*TimeOff, error) {
	return r.ListTimeOff(ctx, staffID, date, date)
}

func scanSchedule(row pgx.Row) (*StaffSchedule, error) {
	var (
		entry      StaffSchedule
		weekday    int
		start, end int
		brkStart   *int
		brkEnd     *int
	)
	if err := row.Scan(
		&entry.ID,
		&entry.StaffID,
		&weekday,
		&start,
		&end,
		&brkStart,
		&brkEnd,
		&entry.MaxAppointments,
		&entry.DefaultDuration,
		&entry.Active,
		&entry.EffectiveFrom,
		&entry.EffectiveUntil,
		&entry.Notes,
		&entry.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("schedule: scan pattern: %w", err)
	}
	entry.Weekday = time.Weekday(weekday)
	entry.StartTime = TimeOfDay(start)
	entry.EndTime = TimeOfDay(end)
	entry.BreakStart = timeOfDayOrNil(brkStart)
	entry.BreakEnd = timeOfDayOrNil(brkEnd)
	return &entry, nil
}

func scanTimeOff(row pgx.Row) (*TimeOff, error) {
	var (
		entry      TimeOff
		start, end *int
		reason     string
		status     string
		approvedBy *string
	)
	if err := row.Scan(
		&entry.ID,
		&entry.StaffID,
		&entry.StartDate,
		&entry.EndDate,
		&start,
		&end,
		&entry.AllDay,
		&reason,
		&status,
		&approvedBy,
		&entry.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("schedule: scan time off: %w", err)
	}
	entry.StartTime = timeOfDayOrNil(start)
	entry.EndTime = timeOfDayOrNil(end)
	entry.Reason = TimeOffReason(reason)
	entry.Status = TimeOffStatus(status)
	if approvedBy != nil {
		entry.ApprovedBy = *approvedBy
	}
	return &entry, nil
}

func minutesOrNil(t *TimeOfDay) *int {
	if t == nil {
		return nil
	}
	m := int(*t)
	return &m
}

func timeOfDayOrNil(m *int) *TimeOfDay {
	if m == nil {
		return nil
	}
	t := TimeOfDay(*m)
	return &t
}
