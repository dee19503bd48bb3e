package model

import "time"

// Avatar is a user-owned persona whose appearance attributes seed
// generation prompts. PrimaryImageURL tracks the last successful image
// generation targeting this avatar.
type Avatar struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Name            string    `db:"name" json:"name"`
	Description     string    `db:"description" json:"description,omitempty"`
	Style           string    `db:"style" json:"style"`
	Gender          string    `db:"gender" json:"gender,omitempty"`
	Ethnicity       string    `db:"ethnicity" json:"ethnicity,omitempty"`
	Age             string    `db:"age" json:"age,omitempty"`
	BodyType        string    `db:"body_type" json:"body_type,omitempty"`
	HairStyle       string    `db:"hair_style" json:"hair_style,omitempty"`
	HairColor       string    `db:"hair_color" json:"hair_color,omitempty"`
	EyeColor        string    `db:"eye_color" json:"eye_color,omitempty"`
	FashionStyle    string    `db:"fashion_style" json:"fashion_style,omitempty"`
	RoleDescription string    `db:"role_description" json:"role_description,omitempty"`
	PrimaryImageURL *string   `db:"primary_image_url" json:"primary_image_url,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
