package domain

// Role is the privilege level resolved by the authentication middleware.
type Role string

const (
	RoleRootAdmin Role = "root_admin"
	RoleOrgAdmin  Role = "org_admin"
	RoleCoach     Role = "coach"
	RoleMember    Role = "member"
)

// Actor is the identity attached to every request.
type Actor struct {
	ID        string
	Name      string
	Role      Role
	CompanyID *string
}

// Privileged actors bypass moderation and may decide approvals.
func (a Actor) Privileged() bool {
	return a.Role == RoleRootAdmin || a.Role == RoleOrgAdmin
}

func (a Actor) IsRoot() bool {
	return a.Role == RoleRootAdmin
}

// CanAccess reports whether the survey is inside the actor's scope.
// Global surveys are visible to everyone.
func (a Actor) CanAccess(s Survey) bool {
	if a.IsRoot() || s.CompanyID == nil {
		return true
	}
	return a.CompanyID != nil && *a.CompanyID == *s.CompanyID
}

// CanModify reports whether the actor may edit or delete the survey.
func (a Actor) CanModify(s Survey) bool {
	if !a.CanAccess(s) {
		return false
	}
	if a.IsRoot() || s.CreatedBy == a.ID {
		return true
	}
	if a.Role != RoleOrgAdmin || a.CompanyID == nil {
		return false
	}
	return s.CompanyID != nil && *s.CompanyID == *a.CompanyID
}

// CanModerate reports whether a privileged actor may decide on the survey.
// Global surveys are moderated by root only; org admins moderate their company.
func (a Actor) CanModerate(s Survey) bool {
	if a.IsRoot() {
		return true
	}
	if a.Role != RoleOrgAdmin || a.CompanyID == nil || s.CompanyID == nil {
		return false
	}
	return *a.CompanyID == *s.CompanyID
}
