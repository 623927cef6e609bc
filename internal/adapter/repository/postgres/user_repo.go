package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/simaogato/budgetpool-backend/internal/domain"
)

// userRepository implements domain.UserRepository
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) domain.UserRepository {
	return &userRepository{db: db}
}

func scanUser(row scanner) (*domain.User, error) {
	var user domain.User
	var role string
	if err := row.Scan(&user.ID, &user.TeamID, &user.Name, &user.Email, &role, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	return &user, nil
}

// GetByID retrieves a user by its ID
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, team_id, name, email, role, created_at
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// Create creates a new user
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, team_id, name, email, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.TeamID,
		user.Name,
		user.Email,
		string(user.Role),
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// ListByTeam retrieves all users of a team, admins first
func (r *userRepository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]*domain.User, error) {
	query := `
		SELECT id, team_id, name, email, role, created_at
		FROM users
		WHERE team_id = $1
		ORDER BY CASE role WHEN 'ADMIN' THEN 0 ELSE 1 END, name
	`

	return r.list(ctx, query, teamID)
}

// ListAll retrieves the users of every team, ordered by team name, admins first, then by name
func (r *userRepository) ListAll(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT u.id, u.team_id, u.name, u.email, u.role, u.created_at
		FROM users u
		JOIN teams t ON t.id = u.team_id
		ORDER BY t.name, u.team_id, CASE u.role WHEN 'ADMIN' THEN 0 ELSE 1 END, u.name
	`

	return r.list(ctx, query)
}

func (r *userRepository) list(ctx context.Context, query string, args ...any) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}
