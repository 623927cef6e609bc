package postgres

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

// GetByID retrieves a team by its ID
func (r *teamRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	query := `
		SELECT id, name, created_at
		FROM teams
		WHERE id = $1
	`

	var team domain.Team
	err := r.db.QueryRowContext(ctx, query, id).Scan(&team.ID, &team.Name, &team.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team by ID: %w", err)
	}

	return &team, nil
}

// Create creates a new team
func (r *teamRepository) Create(ctx context.Context, team *domain.Team) error {
	query := `
		INSERT INTO teams (id, name, created_at)
		VALUES ($1, $2, $3)
	`

	if _, err := r.db.ExecContext(ctx, query, team.ID, team.Name, team.CreatedAt); err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}

	return nil
}
