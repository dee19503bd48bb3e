package generator

import "strings"

// Attributes is a structured description of a persona's appearance. Empty
// fields are omitted from the resolved prompt.
type Attributes struct {
	Gender       string `json:"gender,omitempty"`
	Ethnicity    string `json:"ethnicity,omitempty"`
	Age          string `json:"age,omitempty"`
	BodyType     string `json:"body_type,omitempty"`
	HairStyle    string `json:"hair_style,omitempty"`
	HairColor    string `json:"hair_color,omitempty"`
	EyeColor     string `json:"eye_color,omitempty"`
	FashionStyle string `json:"fashion_style,omitempty"`
}

// Empty reports whether no attribute field is set.
func (a Attributes) Empty() bool {
	return a == Attributes{}
}

// PromptSpec is the resolved-ready description of what to produce: either a
// free-text prompt or a structured attribute set, never both. An attribute
// set may additionally accompany a free-text prompt when it comes from an
// avatar's stored appearance, in which case it enriches the text.
type PromptSpec struct {
	text  string
	scene string
	attrs *Attributes
	style string
}

// TextSpec builds a spec from a free-text prompt with an optional scene
// description and style tag.
func TextSpec(text, scene, style string) PromptSpec {
	return PromptSpec{text: text, scene: scene, style: style}
}

// AttributeSpec builds a spec from a structured attribute set.
func AttributeSpec(attrs Attributes, style string) PromptSpec {
	return PromptSpec{attrs: &attrs, style: style}
}

// WithAvatarContext returns a copy of the spec enriched with an avatar's
// stored appearance attributes. It has no effect on attribute-based specs,
// which already carry a full attribute set.
func (s PromptSpec) WithAvatarContext(attrs Attributes) PromptSpec {
	if s.text == "" || attrs.Empty() {
		return s
	}
	s.attrs = &attrs
	return s
}

// Resolve turns the spec into a single generator-ready prompt string. It is
// a pure function: identical specs resolve to byte-identical prompts.
// Attribute fields are concatenated in a fixed order (gender, ethnicity,
// age, body type, hair style, hair color, eye color, fashion style) and
// absent fields are omitted silently.
func (s PromptSpec) Resolve() string {
	if s.text != "" {
		return s.resolveText()
	}
	return s.resolveAttributes()
}

func (s PromptSpec) resolveText() string {
	var b strings.Builder
	b.WriteString(s.text)
	if s.scene != "" {
		b.WriteString(" in a ")
		b.WriteString(s.scene)
	}
	if s.attrs != nil && !s.attrs.Empty() {
		b.WriteString(" with a")
		for _, f := range []string{s.attrs.Gender, s.attrs.Ethnicity} {
			if f != "" {
				b.WriteString(" ")
				b.WriteString(f)
			}
		}
		b.WriteString(" person")
		if rest := s.attrs.describe(); rest != "" {
			b.WriteString(" with ")
			b.WriteString(rest)
		}
	}
	if s.style != "" {
		b.WriteString(", ")
		b.WriteString(s.style)
		b.WriteString(" style")
	}
	return b.String()
}

func (s PromptSpec) resolveAttributes() string {
	parts := []string{}
	a := s.attrs
	if a == nil {
		a = &Attributes{}
	}
	if a.Gender != "" {
		parts = append(parts, a.Gender+" features")
	}
	if a.Ethnicity != "" {
		parts = append(parts, a.Ethnicity+" ethnicity")
	}
	if a.Age != "" {
		parts = append(parts, a.Age+" age")
	}
	if a.BodyType != "" {
		parts = append(parts, a.BodyType+" body type")
	}
	if hair := joinNonEmpty(a.HairStyle, a.HairColor); hair != "" {
		parts = append(parts, hair+" hair")
	}
	if a.EyeColor != "" {
		parts = append(parts, a.EyeColor+" eyes")
	}
	if a.FashionStyle != "" {
		parts = append(parts, "wearing "+a.FashionStyle+" clothes")
	}

	prompt := "Portrait of a person"
	if len(parts) > 0 {
		prompt += " with " + strings.Join(parts, ", ")
	}
	if s.style != "" {
		prompt += ", " + s.style + " style"
	}
	return prompt
}

// describe renders the appearance tail used when enriching a free-text
// prompt: hair, eyes and clothing in the same fixed order as the portrait
// template.
func (a Attributes) describe() string {
	parts := []string{}
	if hair := joinNonEmpty(a.HairStyle, a.HairColor); hair != "" {
		parts = append(parts, hair+" hair")
	}
	if a.EyeColor != "" {
		parts = append(parts, a.EyeColor+" eyes")
	}
	if a.FashionStyle != "" {
		parts = append(parts, "wearing "+a.FashionStyle+" clothes")
	}
	return strings.Join(parts, ", ")
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
