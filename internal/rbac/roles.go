package rbac

// Role names issued by the CRM. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleDirector = "director"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
