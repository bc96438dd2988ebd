package account

import (
	"time"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncproto"
)

type UserType string

const (
	UserTypeDoctor  UserType = "doctor"
	UserTypePatient UserType = "patient"
	UserTypeAdmin   UserType = "admin"
)

func (t UserType) Valid() bool {
	return t == UserTypeDoctor || t == UserTypePatient || t == UserTypeAdmin
}

// Built-in administrator.
const (
	AdminID       = "admin-001"
	AdminEmail    = "admin@pddiagnosys.com"
	AdminPassword = "admin123"
	AdminName     = "System Administrator"
)

// User is the signed-in identity. Email is unique among accounts.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	UserType  UserType  `json:"userType"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session returns the login/logout payload for u.
func (u User) Session() syncproto.SessionEvent {
	return syncproto.SessionEvent{
		UserID:   u.ID,
		Email:    u.Email,
		Name:     u.Name,
		UserType: string(u.UserType),
	}
}

// Account is a registered user as stored on the device. Passwords are kept
// in plain text; this system has no real authentication.
type Account struct {
	User
	Password string `json:"password"`
}
