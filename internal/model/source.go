package model

import (
	"time"

	"github.com/google/uuid"
)

// Source is one uploaded document owned by a user.
// The db tags map it onto the sources table; the json tags are its API representation.
type Source struct {
	ID               uuid.UUID `json:"id" db:"id"`
	Title            string    `json:"title" db:"title"`
	Description      *string   `json:"description" db:"description"`
	OwnerUserID      *string   `json:"owner_user_id" db:"owner_user_id"`
	OriginalFileName string    `json:"original_file_name" db:"original_file_name"`
	ContentType      string    `json:"content_type" db:"content_type"`
	FileSize         int64     `json:"file_size" db:"file_size"`
	FilePath         string    `json:"file_path" db:"file_path"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Column limits of the sources table.
const (
	MaxTitleLength       = 255
	MaxFileNameLength    = 255
	MaxContentTypeLength = 128
	MaxFilePathLength    = 1024
)
