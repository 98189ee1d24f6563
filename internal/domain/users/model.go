package users

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleDesigner Role = "designer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID         uint `gorm:"primaryKey"`
	Name       string
	Lastname   string
	Tel        string
	Email      string `gorm:"not null;uniqueIndex:idx_users_email"`
	Role       Role   `gorm:"type:varchar(20);not null;default:'customer';index"`
	IsVerified bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u User) FullName() string {
	if u.Lastname == "" {
		return u.Name
	}
	return u.Name + " " + u.Lastname
}

// Principal is the already-authenticated caller of a service operation.
type Principal struct {
	UserID uint
	Role   Role
}

func (p Principal) IsAdmin() bool    { return p.Role == RoleAdmin }
func (p Principal) IsDesigner() bool { return p.Role == RoleDesigner }
