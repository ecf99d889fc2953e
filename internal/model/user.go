package model

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleUsher      Role = "usher"
)

// AuthUser is the caller resolved from a verified access token.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// CanManage reports whether the user may mutate, export or message for the event.
func (u *AuthUser) CanManage(e *Event) bool {
	if u == nil || e == nil {
		return false
	}
	return u.Role == RoleSuperAdmin || e.OwnerID == u.ID
}

func (u *AuthUser) Usher() Usher {
	name := u.Name
	if name == "" {
		name = u.Email
	}
	return Usher{UserID: u.ID, Name: name, Email: u.Email}
}
