package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Video rows persist the object key only. URL is resolved into a short-lived
// download link at serve time and is never stored.
type Video struct {
	ID          uuid.UUID `json:"id"`
	Creator     int64     `json:"creator"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Key         string    `json:"key"`
	URL         string    `json:"url,omitempty"`
	Visibility  string    `json:"visibility"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Comment struct {
	ID        uuid.UUID  `json:"id"`
	VideoID   uuid.UUID  `json:"video_id"`
	UserID    int64      `json:"user_id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Username  string     `json:"username"`
	Text      string     `json:"comment_text"`
	CreatedAt time.Time  `json:"created_at"`
}
