package users

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	Role         string
	IsActive     bool
	PasswordHash []byte
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the user-editable subset; nil fields are left untouched.
type Profile struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
}

type NewUser struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func (u *User) clone() *User {
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	if u.LastLogin != nil {
		ll := *u.LastLogin
		c.LastLogin = &ll
	}
	return &c
}
