package staff

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type staffDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads the roster from the relational database.
type PostgresRepository struct {
	db staffDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("staff: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting a mock database for testing.
func NewPostgresRepositoryWithDB(db staffDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns one member.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Member, error) {
	var m Member
	err := r.db.QueryRow(ctx, `
		SELECT id, name, role, active, created_at
		FROM staff
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.Role, &m.Active, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, fmt.Errorf("staff: select member: %w", err)
	}
	return &m, nil
}

// ListActive returns active members ordered by ID.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]*Member, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, role, active, created_at
		FROM staff
		WHERE active
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("staff: list active: %w", err)
	}
	defer rows.Close()

	out := []*Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Role, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("staff: scan member: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("staff: list active: %w", err)
	}
	return out, nil
}
