package model

import "time"

// Role represents one role an identity holds within the enrollment
// system. Identities hold a set of roles, not a single one; the role
// catalog for broadcast comes from the upstream API and may grow, these
// constants cover the roles the console itself gates on.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// Valid reports whether the role is one the console recognizes.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return true
	}
	return false
}

// Identity represents a user of the enrollment system as seen by the console.
// Avatar carries the base64-encoded image the upstream stores, when set.
type Identity struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstname"`
	LastName  string     `json:"lastname"`
	Roles     []Role     `json:"roles"`
	Avatar    *string    `json:"avatar,omitempty"`
	Age       *int       `json:"age,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Address   *string    `json:"address,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitzero"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// HasRole reports whether the identity's role set contains the role.
func (i *Identity) HasRole(role Role) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin returns true if the identity holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin)
}

// FullName returns the display name the console renders for the identity.
func (i *Identity) FullName() string {
	if i.FirstName == "" {
		return i.LastName
	}
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}
