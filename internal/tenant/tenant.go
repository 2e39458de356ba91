// Package tenant carries the caller identity through every operation and
// hides entities that belong to other tenants.
package tenant

import (
	"strings"

	"github.com/vbonduro/inspectflow/internal/domain"
)

// Scope identifies who is calling. It is passed explicitly to every
// operation; there is no ambient tenant.
type Scope struct {
	TenantID string
	ActorID  string
	Role     domain.Role
}

func (s Scope) Validate() error {
	if strings.TrimSpace(s.TenantID) == "" {
		return domain.Invalid("tenantId", "must not be empty")
	}
	if strings.TrimSpace(s.ActorID) == "" {
		return domain.Invalid("actorId", "must not be empty")
	}
	if _, err := domain.ParseRole(string(s.Role)); err != nil {
		return err
	}
	return nil
}

// Owned is any entity that records its owning tenant.
type Owned interface {
	comparable
	OwnerTenant() string
}

// Check converts a lookup result into the caller's view of it. A missing
// entity and one owned by another tenant both become the same NotFound
// error, so existence never leaks across tenants.
func Check[T Owned](s Scope, kind, id string, entity T, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if entity == zero || entity.OwnerTenant() != s.TenantID {
		return zero, domain.NotFound(kind, id)
	}
	return entity, nil
}
