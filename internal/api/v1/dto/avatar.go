package dto

import "time"

// AvatarCreateDTO is the body of POST /avatars.
type AvatarCreateDTO struct {
	Name            string `json:"name" validate:"required,max=100"`
	Description     string `json:"description,omitempty"`
	Style           string `json:"style" validate:"required,max=50"`
	Gender          string `json:"gender,omitempty"`
	Ethnicity       string `json:"ethnicity,omitempty"`
	Age             string `json:"age,omitempty"`
	BodyType        string `json:"body_type,omitempty"`
	HairStyle       string `json:"hair_style,omitempty"`
	HairColor       string `json:"hair_color,omitempty"`
	EyeColor        string `json:"eye_color,omitempty"`
	FashionStyle    string `json:"fashion_style,omitempty"`
	RoleDescription string `json:"role_description,omitempty"`
}

// AvatarUpdateDTO is the body of PATCH /avatars/{id}. Nil fields are left
// unchanged.
type AvatarUpdateDTO struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Description     *string `json:"description,omitempty"`
	Style           *string `json:"style,omitempty" validate:"omitempty,max=50"`
	Gender          *string `json:"gender,omitempty"`
	Ethnicity       *string `json:"ethnicity,omitempty"`
	Age             *string `json:"age,omitempty"`
	BodyType        *string `json:"body_type,omitempty"`
	HairStyle       *string `json:"hair_style,omitempty"`
	HairColor       *string `json:"hair_color,omitempty"`
	EyeColor        *string `json:"eye_color,omitempty"`
	FashionStyle    *string `json:"fashion_style,omitempty"`
	RoleDescription *string `json:"role_description,omitempty"`
}

// AvatarResponseDTO is one avatar in API responses.
type AvatarResponseDTO struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Style           string    `json:"style"`
	Gender          string    `json:"gender,omitempty"`
	Ethnicity       string    `json:"ethnicity,omitempty"`
	Age             string    `json:"age,omitempty"`
	BodyType        string    `json:"body_type,omitempty"`
	HairStyle       string    `json:"hair_style,omitempty"`
	HairColor       string    `json:"hair_color,omitempty"`
	EyeColor        string    `json:"eye_color,omitempty"`
	FashionStyle    string    `json:"fashion_style,omitempty"`
	RoleDescription string    `json:"role_description,omitempty"`
	PrimaryImageURL *string   `json:"primary_image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
