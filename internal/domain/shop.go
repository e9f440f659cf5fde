package domain

import "time"

// Shop is a campus vendor. Owned by the storefront subsystem; the engine
// reads it to resolve batch ownership and notification recipients.
type Shop struct {
	ID        string
	OwnerID   string
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
