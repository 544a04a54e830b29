package export

// Conversation is one exported chat session.
type Conversation struct {
	Title       string          `json:"title"`
	Mapping     map[string]Node `json:"mapping"`
	CurrentNode string          `json:"current_node"`
}

// Node is an entry in a conversation's mapping. Scaffolding nodes carry no message.
type Node struct {
	Message *Message `json:"message"`
	Parent  string   `json:"parent"`
}

type Message struct {
	Author     *Author  `json:"author"`
	Content    *Content `json:"content"`
	CreateTime *float64 `json:"create_time"` // unix seconds, nil when absent
}

type Author struct {
	Role string `json:"role"`
}

// Content is a typed union keyed by ContentType; only "text" carries string parts.
type Content struct {
	ContentType string `json:"content_type"`
	Parts       []any  `json:"parts"`
}

const (
	DefaultRole  = "unknown"
	DefaultTitle = "Untitled"
)

// DisplayTitle returns the conversation title, or DefaultTitle when it is empty.
func (c Conversation) DisplayTitle() string {
	if c.Title == "" {
		return DefaultTitle
	}
	return c.Title
}
