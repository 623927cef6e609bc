package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/simaogato/budgetpool-backend/internal/domain"
)

// teamRepository implements domain.TeamRepository
type teamRepository struct {
	db *DB
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(db *DB) domain.TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	var team domain.Team
	var createdAt int64
	err := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM teams WHERE id = ?`, id).
		Scan(&team.ID, &team.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team by ID: %w", err)
	}
	team.CreatedAt = fromMicros(createdAt)
	return &team, nil
}

func (r *teamRepository) Create(ctx context.Context, team *domain.Team) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO teams (id, name, created_at) VALUES (?, ?, ?)`,
		team.ID, team.Name, toMicros(team.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}
