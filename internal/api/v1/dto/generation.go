package dto

import "time"

// AttributesDTO mirrors generator.Attributes on the wire.
type AttributesDTO struct {
	Gender       string `json:"gender,omitempty"`
	Ethnicity    string `json:"ethnicity,omitempty"`
	Age          string `json:"age,omitempty"`
	BodyType     string `json:"body_type,omitempty"`
	HairStyle    string `json:"hair_style,omitempty"`
	HairColor    string `json:"hair_color,omitempty"`
	EyeColor     string `json:"eye_color,omitempty"`
	FashionStyle string `json:"fashion_style,omitempty"`
}

// GenerationCreateDTO is the body of POST /generations. Exactly one of
// Prompt and Attributes must be present.
type GenerationCreateDTO struct {
	AvatarID         *string        `json:"avatar_id,omitempty"`
	Kind             string         `json:"kind" validate:"required,oneof=image video"`
	Prompt           string         `json:"prompt,omitempty"`
	Attributes       *AttributesDTO `json:"attributes,omitempty"`
	SceneDescription string         `json:"scene_description,omitempty"`
	Style            string         `json:"style,omitempty"`
	ExtraParams      map[string]any `json:"extra_params,omitempty"`
}

// GenerationResponseDTO is one generation in API responses.
type GenerationResponseDTO struct {
	ID               string         `json:"id"`
	AvatarID         *string        `json:"avatar_id,omitempty"`
	Kind             string         `json:"kind"`
	URL              string         `json:"url"`
	Prompt           string         `json:"prompt"`
	SceneDescription string         `json:"scene_description,omitempty"`
	Style            string         `json:"style,omitempty"`
	ExtraParams      map[string]any `json:"extra_params,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// GenerationCreateResponseDTO is the success body of POST /generations.
type GenerationCreateResponseDTO struct {
	Generation       GenerationResponseDTO `json:"generation"`
	CreditsRemaining int                   `json:"credits_remaining"`
}

// ErrorResponseDTO carries a machine-readable error code and optional
// human-readable detail.
type ErrorResponseDTO struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
