package models

import (
	"time"

	"github.com/google/uuid"
)

// Photo is an uploaded image stored in S3, referenced by zone reports.
type Photo struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	URL        string    `json:"url"`
	S3Key      string    `json:"-"`
	UploadedAt time.Time `json:"uploaded_at"`
}
