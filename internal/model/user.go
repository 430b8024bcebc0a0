package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary возвращает публичные поля для вложения в другие ответы.
func (u *User) Summary() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Actor — идентичность вызывающего, передаётся явно в каждую операцию.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
