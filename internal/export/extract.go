package export

import "strings"

// Fields are the values the renderer needs from one message, with defaults applied.
type Fields struct {
	Role       string
	Text       string
	CreateTime *float64
}

// ExtractText returns the cleaned text of a "text" message. Any other content type,
// a nil message or missing parts yield "".
func ExtractText(msg *Message) string {
	if msg == nil || msg.Content == nil {
		return ""
	}
	if msg.Content.ContentType != "text" {
		return ""
	}

	var sb strings.Builder
	for _, part := range msg.Content.Parts {
		// Multimodal exports mix asset objects into parts; only strings are text.
		if s, ok := part.(string); ok {
			sb.WriteString(s)
		}
	}
	return strings.TrimSpace(CleanCitations(sb.String()))
}

// Extract returns the role, text and creation time of msg.
func Extract(msg *Message) Fields {
	if msg == nil {
		return Fields{}
	}

	role := DefaultRole
	if msg.Author != nil && msg.Author.Role != "" {
		role = msg.Author.Role
	}

	return Fields{
		Role:       role,
		Text:       ExtractText(msg),
		CreateTime: msg.CreateTime,
	}
}
