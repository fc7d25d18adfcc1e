package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category labels income or expense transactions.
type Category struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	Name      string       `json:"name"`
	Type      CategoryType `json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}

func (c *Category) Validate() error {
	if c.UserID == uuid.Nil {
		return NewValidationError("user_id", CodeRequired, "owner is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("name", CodeRequired, "name is required")
	}
	if !c.Type.Valid() {
		return NewValidationError("type", CodeInvalid, "unknown category type %q", c.Type)
	}
	return nil
}
