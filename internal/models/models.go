package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	DefaultImage = "https://i.ibb.co.com/gbVvwDHp/360-F-724597608-pmo5-Bs-Vum-Fc-Fy-HJKl-ASG2-Y2-Kpkkfi-YUU.jpg"
)

type User struct {
	ID                string
	Username          string
	Email             string
	PassHash          []byte
	IsVerified        bool
	IsLoggedIn        bool
	VerificationToken *string
	OTP               *string
	OTPExpiresAt      *time.Time
	Role              string
	Image             string
	Friends           []string
	FriendRequests    []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PublicUser is the projection returned to clients. The password hash and OTP
// fields never leave the service.
type PublicUser struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	Email          string   `json:"email"`
	IsVerified     bool     `json:"is_verified"`
	Role           string   `json:"role,omitempty"`
	Image          string   `json:"image,omitempty"`
	Friends        []string `json:"friends,omitempty"`
	FriendRequests []string `json:"friend_requests,omitempty"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		IsVerified: u.IsVerified,
		Role:       u.Role,
		Image:      u.Image,
	}
}

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	Email   string `json:"to"`
	Link    string `json:"link,omitempty"`
	Code    string `json:"code,omitempty"`
	Purpose string `json:"purpose"`
}
