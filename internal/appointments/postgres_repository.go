package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jacob-ai2ai/Ai2aimMedicalEngine-sub002/internal/schedule"
)

type appointmentDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database. The
// overlap invariant is enforced twice: a row-locking conflict check inside
// the insert transaction, and a btree_gist exclusion constraint on active
// rows as the backstop for anything the check misses.
type PostgresRepository struct {
	db appointmentDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting a mock database for testing.
func NewPostgresRepositoryWithDB(db appointmentDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const appointmentColumns = `
	id, patient_id, staff_id, type_id, date, start_minutes, end_minutes, status,
	confirmation_source, actual_revenue_cents, notes, created_by, created_at, updated_at`

// Create inserts a new appointment, re-checking for conflicts transactionally.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateAppointmentRequest) (*Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := insertAppointment(ctx, tx, req)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit insert: %w", err)
	}
	return appt, nil
}

// insertAppointment performs the locked conflict check and insert inside the
// caller's transaction.
func insertAppointment(ctx context.Context, tx pgx.Tx, req *CreateAppointmentRequest) (*Appointment, error) {
	// Lock competing active rows for this staff+date so two concurrent
	// bookings serialize; exactly one sees the other's row.
	var conflicts int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM appointments
			WHERE staff_id = $1 AND date = $2
			  AND status NOT IN ('cancelled', 'rescheduled')
			  AND start_minutes < $4 AND $3 < end_minutes
			FOR UPDATE
		) locked
	`, req.StaffID, req.Date, int(req.StartTime), int(req.EndTime)).Scan(&conflicts); err != nil {
		return nil, fmt.Errorf("appointments: conflict check: %w", err)
	}
	if conflicts > 0 {
		return nil, ErrBookingConflict
	}

	id := uuid.New()
	var createdAt, updatedAt time.Time
	if err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, staff_id, type_id, date, start_minutes, end_minutes, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`,
		id,
		req.PatientID,
		req.StaffID,
		req.TypeID,
		req.Date,
		int(req.StartTime),
		int(req.EndTime),
		string(req.Status),
		req.Notes,
		req.CreatedBy,
	).Scan(&createdAt, &updatedAt); err != nil {
		if isExclusionViolation(err) {
			return nil, ErrBookingConflict
		}
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}

	return &Appointment{
		ID:        id.String(),
		PatientID: req.PatientID,
		StaffID:   req.StaffID,
		TypeID:    req.TypeID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Status:    req.Status,
		Notes:     req.Notes,
		CreatedBy: req.CreatedBy,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// GetByID returns one appointment.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return appt, nil
}

// ListForStaffDate returns all appointments for one staff+date, earliest first.
func (r *PostgresRepository) ListForStaffDate(ctx context.Context, staffID string, date time.Time) ([]*Appointment, error) {
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1 AND date = $2
		ORDER BY start_minutes, id
	`, staffID, date)
}

// ListRange returns appointments in [from, to] inclusive.
func (r *PostgresRepository) ListRange(ctx context.Context, staffID string, from, to time.Time) ([]*Appointment, error) {
	if staffID == "" {
		return r.list(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE date >= $1 AND date <= $2
			ORDER BY date, start_minutes, id
		`, from, to)
	}
	return r.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date, start_minutes, id
	`, staffID, from, to)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	out := []*Appointment{}
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	return out, nil
}

// Transition applies a guarded status change. The expected current status is
// part of the WHERE clause so a concurrent transition loses cleanly.
func (r *PostgresRepository) Transition(ctx context.Context, id string, from, to Status, update TransitionUpdate) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
		    confirmation_source = COALESCE(NULLIF($4, ''), confirmation_source),
		    actual_revenue_cents = COALESCE($5, actual_revenue_cents),
		    notes = COALESCE(NULLIF($6, ''), notes),
		    updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns+`
	`, id, string(from), string(to), string(update.ConfirmationSource), update.ActualRevenueCents, update.Notes)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyTransitionMiss(ctx, id, to)
		}
		return nil, err
	}
	return appt, nil
}

// classifyTransitionMiss distinguishes a missing row from a lost status race.
func (r *PostgresRepository) classifyTransitionMiss(ctx context.Context, id string, requested Status) error {
	var current string
	err := r.db.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("appointments: load status: %w", err)
	}
	return &StateConflictError{Current: Status(current), Requested: requested}
}

// Reschedule atomically marks the original rescheduled and inserts the
// replacement. If the new slot conflicts, the transaction rolls back and the
// original keeps its status.
func (r *PostgresRepository) Reschedule(ctx context.Context, originalID string, req *CreateAppointmentRequest) (*Appointment, *Appointment, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("appointments: begin reschedule: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'rescheduled', updated_at = now()
		WHERE id = $1 AND status IN ('requested', 'confirmed')
		RETURNING `+appointmentColumns+`
	`, originalID)
	original, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, r.classifyTransitionMiss(ctx, originalID, StatusRescheduled)
		}
		return nil, nil, err
	}

	replacement, err := insertAppointment(ctx, tx, req)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("appointments: commit reschedule: %w", err)
	}
	return original, replacement, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		appt       Appointment
		start, end int
		status     string
		source     *string
		notes      *string
	)
	if err := row.Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.StaffID,
		&appt.TypeID,
		&appt.Date,
		&start,
		&end,
		&status,
		&source,
		&appt.ActualRevenueCents,
		&notes,
		&appt.CreatedBy,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("appointments: scan: %w", err)
	}
	appt.StartTime = schedule.TimeOfDay(start)
	appt.EndTime = schedule.TimeOfDay(end)
	appt.Status = Status(status)
	if source != nil {
		appt.ConfirmationSource = ConfirmationSource(*source)
	}
	if notes != nil {
		appt.Notes = *notes
	}
	return &appt, nil
}

// isExclusionViolation reports whether err is the appointments_no_overlap
// exclusion constraint firing (class 23, exclusion_violation).
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// PostgresTypeRepository reads appointment types from the database.
type PostgresTypeRepository struct {
	db appointmentDB
}

// NewPostgresTypeRepository initializes a type repo backed by pgxpool.
func NewPostgresTypeRepository(pool *pgxpool.Pool) *PostgresTypeRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresTypeRepository{db: pool}
}

// NewPostgresTypeRepositoryWithDB allows injecting a mock database for testing.
func NewPostgresTypeRepositoryWithDB(db appointmentDB) *PostgresTypeRepository {
	return &PostgresTypeRepository{db: db}
}

// GetType returns one appointment type.
func (r *PostgresTypeRepository) GetType(ctx context.Context, id string) (*AppointmentType, error) {
	var t AppointmentType
	err := r.db.QueryRow(ctx, `
		SELECT id, name, default_duration_minutes, expected_revenue_cents, required_role
		FROM appointment_types
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.DefaultDuration, &t.ExpectedRevenueCents, &t.RequiredRole)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTypeNotFound
		}
		return nil, fmt.Errorf("appointments: select type: %w", err)
	}
	return &t, nil
}

// ListTypes returns the full catalog ordered by ID.
func (r *PostgresTypeRepository) ListTypes(ctx context.Context) ([]*AppointmentType, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, default_duration_minutes, expected_revenue_cents, required_role
		FROM appointment_types
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("appointments: list types: %w", err)
	}
	defer rows.Close()

	out := []*AppointmentType{}
	for rows.Next() {
		var t AppointmentType
		if err := rows.Scan(&t.ID, &t.Name, &t.DefaultDuration, &t.ExpectedRevenueCents, &t.RequiredRole); err != nil {
			return nil, fmt.Errorf("appointments: scan type: %w", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list types: %w", err)
	}
	return out, nil
}
