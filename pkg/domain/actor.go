package domain

// PermViewOrgHistory grants organization-wide visibility over the history
// log within the actor's own company. Actors without it only ever see rows
// whose subject is themselves.
const PermViewOrgHistory = "history:view_org"

// PermApproveTimesheets allows approving or rejecting submitted timesheet
// entries and leave requests within the actor's company.
const PermApproveTimesheets = "timesheet:approve"

// Actor is the authenticated principal attached to a request. It is a plain
// value built by the auth middleware from session claims; the core trusts it
// as given and never reaches back into auth state.
type Actor struct {
	ID          UserID
	CompanyID   CompanyID
	Permissions map[string]struct{}
}

// NewActor builds an actor with the given permission names.
func NewActor(id UserID, companyID CompanyID, permissions ...string) Actor {
	perms := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		perms[p] = struct{}{}
	}
	return Actor{ID: id, CompanyID: companyID, Permissions: perms}
}

// Can reports whether the actor holds the named permission.
func (a Actor) Can(permission string) bool {
	_, ok := a.Permissions[permission]
	return ok
}
