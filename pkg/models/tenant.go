package models

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// companyCodeAlphabet excludes easily confused characters (0/O, 1/I).
const companyCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const companyCodeLength = 8

// GenerateCompanyCode produces a random 8-character join code. Uniqueness is
// enforced by the companies.company_code index; callers retry on collision.
func GenerateCompanyCode() string {
	b := make([]byte, companyCodeLength)
	for i := range b {
		b[i] = companyCodeAlphabet[rand.Intn(len(companyCodeAlphabet))]
	}
	return string(b)
}

type Company struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Email       string    `json:"email" db:"email"`
	CompanyCode string    `json:"company_code" db:"company_code"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// User roles.
const (
	RoleDeveloper = "developer"
	RoleTester    = "tester"
	RoleManager   = "manager"
	RoleAdmin     = "admin"
)

func ValidRole(role string) bool {
	switch role {
	case RoleDeveloper, RoleTester, RoleManager, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	CompanyID    uuid.UUID `json:"company_id" db:"company_id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	Avatar       *string   `json:"avatar,omitempty" db:"avatar"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Actor is the resolved identity a mutation runs as: who, which company,
// which role. The auth middleware builds it from the request.
type Actor struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Role      string    `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// UserToken is one issued session token. Rows are added at login and removed
// at logout or when the auth middleware sees the token expire.
type UserToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
