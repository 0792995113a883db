package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rohits-web03/peerlink/internal/models"
)

// Principal is the authenticated caller of a request. A nil *Principal is a guest.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Role     models.Role
}

func (p *Principal) role() models.Role {
	if p == nil {
		return models.RoleGuest
	}
	return p.Role
}

func (p *Principal) require(perm models.Permission) error {
	if !p.role().Can(perm) {
		return fmt.Errorf("%w: %s requires %s", ErrForbidden, p.role(), perm)
	}
	return nil
}

// requireUser is require plus a non-guest check for owner-scoped operations.
func (p *Principal) requireUser(perm models.Permission) error {
	if p == nil {
		return ErrUnauthenticated
	}
	return p.require(perm)
}
