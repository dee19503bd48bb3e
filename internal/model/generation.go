package model

import "time"

// GenerationKind is the type of content produced by a generation request.
type GenerationKind string

const (
	KindImage GenerationKind = "image"
	KindVideo GenerationKind = "video"
)

// Valid reports whether k is a known generation kind.
func (k GenerationKind) Valid() bool {
	return k == KindImage || k == KindVideo
}

// Generation is one persisted result of a content-generation request.
// Records are immutable once created; owners may hard-delete them.
type Generation struct {
	ID               string         `db:"id" json:"id"`
	UserID           string         `db:"user_id" json:"user_id"`
	AvatarID         *string        `db:"avatar_id" json:"avatar_id,omitempty"`
	Kind             GenerationKind `db:"kind" json:"kind"`
	URL              string         `db:"url" json:"url"`
	Prompt           string         `db:"prompt" json:"prompt"`
	SceneDescription string         `db:"scene_description" json:"scene_description,omitempty"`
	Style            string         `db:"style" json:"style,omitempty"`
	ExtraParams      map[string]any `db:"extra_params" json:"extra_params,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}
