// SPDX-License-Identifier: AGPL-3.0-only
package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Role is the author of a conversational turn
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleDeveloper Role = "developer"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// ContentPart is one element of an array-of-parts message content
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// contentShape records which JSON form a Content was decoded from
type contentShape int

const (
	shapeInvalid contentShape = iota
	shapeText
	shapeParts
)

// Content is either a plain string or an ordered list of parts. Any other JSON
// value (or an absent field) decodes to an invalid shape rather than failing,
// so that translation can apply its fallback.
type Content struct {
	shape contentShape
	text  string
	parts []ContentPart
}

// TextContent builds string content
func TextContent(text string) Content {
	return Content{shape: shapeText, text: text}
}

// PartsContent builds array-of-parts content
func PartsContent(parts ...ContentPart) Content {
	return Content{shape: shapeParts, parts: parts}
}

// IsText reports whether the content was a plain string
func (c Content) IsText() bool { return c.shape == shapeText }

// IsParts reports whether the content was an array of parts
func (c Content) IsParts() bool { return c.shape == shapeParts }

// IsValid reports whether the content had a recognized shape
func (c Content) IsValid() bool { return c.shape != shapeInvalid }

// Text returns the string content, or "" for other shapes
func (c Content) Text() string { return c.text }

// TextParts returns the parts whose type is "text", in order
func (c Content) TextParts() []ContentPart {
	out := make([]ContentPart, 0, len(c.parts))
	for _, p := range c.parts {
		if p.Type == "text" {
			out = append(out, p)
		}
	}
	return out
}

// Joined returns string content as-is, or the concatenated text of all text parts
func (c Content) Joined() string {
	switch c.shape {
	case shapeText:
		return c.text
	case shapeParts:
		var b strings.Builder
		for _, p := range c.TextParts() {
			b.WriteString(p.Text)
		}
		return b.String()
	default:
		return ""
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Content) UnmarshalJSON(data []byte) error {
	*c = Content{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = TextContent(s)
	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			// An array of something other than parts is an invalid shape.
			return nil
		}
		*c = PartsContent(parts...)
	}
	return nil
}

// MarshalJSON implements json.Marshaler
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.shape {
	case shapeText:
		return json.Marshal(c.text)
	case shapeParts:
		return json.Marshal(c.parts)
	default:
		return []byte("null"), nil
	}
}

// Message is a single conversational turn supplied by the caller
type Message struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}
