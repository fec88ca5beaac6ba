package domain

import "time"

// SessionState — состояние сессии портала: Active(strikes) -> Revoked
type SessionState struct {
	SessionID     string    `json:"session_id"`
	UserEmail     string    `json:"email"`
	Role          string    `json:"role"`
	LoginTime     time.Time `json:"login_time"`
	StrikeCount   int       `json:"strike_count"`
	AccessRevoked bool      `json:"access_revoked"`
}
