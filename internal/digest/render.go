package digest

import (
	"time"

	"github.com/MikeSquared-Agency/chatdigest/internal/export"
)

// RenderConversation renders a conversation as a level-2 heading followed by one
// block per message. Messages without text are left out. Text is not escaped.
func RenderConversation(title string, path []export.Node, loc *time.Location) []string {
	lines := []string{"## " + title + "\n"}

	for _, node := range path {
		f := export.Extract(node.Message)
		if f.Text == "" {
			continue
		}

		// Two trailing spaces force a Markdown line break.
		lines = append(lines, "**"+capitalize(f.Role)+"**  ")
		if f.CreateTime != nil {
			lines = append(lines, "*"+LocalTime(*f.CreateTime, loc).Format(DateTimeLayout)+"*  ")
		}
		lines = append(lines, f.Text, "")
	}

	return lines
}
