package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a node in a self-referential hierarchy. Only ParentID is persisted;
// the tree shape is rebuilt on demand.
type Product struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id"`
	CreatedAt   time.Time  `json:"created_at"`
}
