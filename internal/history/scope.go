package history

import "timetrail/pkg/domain"

// Scoper narrows a caller-supplied filter to what the actor may see. It
// never raises an authorization error: disallowed breadth is silently
// restricted, and endpoints that should not exist for a role are the
// transport layer's problem.
type Scoper struct{}

// NewScoper constructs the default visibility scoper.
func NewScoper() *Scoper {
	return &Scoper{}
}

// Scope returns the filter the store is allowed to execute for this actor.
//
// Tenant isolation: CompanyID always comes from the actor, never from the
// request. Self-scoping: without the org-wide permission the subject filter
// is forced to the actor themselves, overriding whatever was requested; with
// it, a requested userID narrows and omitting it yields organization-wide
// visibility within the tenant.
func (s *Scoper) Scope(actor domain.Actor, requested Filter) Filter {
	scoped := requested
	scoped.CompanyID = actor.CompanyID
	if !actor.Can(domain.PermViewOrgHistory) {
		scoped.UserID = actor.ID
	}
	return scoped
}
