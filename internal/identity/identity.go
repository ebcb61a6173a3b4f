// Package identity models the two kinds of principals that can hold a session
// (end users and recyclers) and the stores that resolve them.
package identity

import (
	"fmt"
	"strings"
	"time"
)

// Role names the principal kind carried inside a signed token.
type Role string

const (
	RoleUser     Role = "user"
	RoleRecycler Role = "recycler"
)

// ParseRole converts a claim or path value into a Role.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleUser:
		return RoleUser, nil
	case RoleRecycler:
		return RoleRecycler, nil
	default:
		return "", fmt.Errorf("identity: unknown role %q", value)
	}
}

func (r Role) String() string { return string(r) }

// Principal is the resolved identity attached to a request. It is implemented
// only by User and Recycler; callers discriminate with a type switch.
type Principal interface {
	Subject() string
	Role() Role
	IsAdministrator() bool
	principal()
}

// User is an end user scheduling pickups.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Admin     bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) Subject() string       { return u.ID }
func (User) Role() Role              { return RoleUser }
func (u User) IsAdministrator() bool { return u.Admin }
func (User) principal()              {}

// Recycler is a recycling partner operating the web portal.
type Recycler struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	CompanyName string    `json:"companyName,omitempty"`
	Verified    bool      `json:"isVerified"`
	Admin       bool      `json:"isAdmin"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (r Recycler) Subject() string       { return r.ID }
func (Recycler) Role() Role              { return RoleRecycler }
func (r Recycler) IsAdministrator() bool { return r.Admin }
func (Recycler) principal()              {}

// Credentials pairs a principal with its stored password hash. It is only
// returned by login lookups and never attached to a request.
type Credentials struct {
	Principal    Principal
	PasswordHash string
}

// NewAccount carries the fields required to register a principal.
type NewAccount struct {
	Name         string
	Email        string
	Phone        string
	CompanyName  string
	PasswordHash string
}

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
