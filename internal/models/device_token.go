package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceToken is an FCM registration token for one of a user's devices.
type DeviceToken struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"` // android, ios, web
	CreatedAt time.Time `json:"created_at"`
}
