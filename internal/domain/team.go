package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Team owns a pool of budgets. Team names are unique.
type Team struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Validate ensures the team adheres to domain rules
func (t *Team) Validate() error {
	if t.Name == "" {
		return errors.New("team name cannot be empty")
	}
	return nil
}
