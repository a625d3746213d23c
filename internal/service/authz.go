package service

import (
	"fmt"

	"github.com/opentagger/tagstore/internal/domain"
)

// Authorize decides whether the acting identity may touch data scoped to
// owner. identity "" means anonymous; owner "" means the public namespace.
//
// Read paths pass allowAnonymous=true: public data is world-readable, private
// data requires the matching identity. Write and delete paths pass
// allowAnonymous=false: anonymous writers are rejected even in the public
// namespace.
//
// Rules are evaluated in order; the first violation wins.
func Authorize(identity, owner string, allowAnonymous bool) error {
	if identity == "" && !allowAnonymous {
		return domain.ErrUnauthorized
	}
	if owner != "" {
		if identity == "" {
			return fmt.Errorf("%w for owner %q", domain.ErrUnauthorized, owner)
		}
		if identity != owner {
			return &domain.OwnerMismatchError{Owner: owner, Identity: identity}
		}
	}
	return nil
}
