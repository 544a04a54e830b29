package convert

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Summary describes a finished run.
type Summary struct {
	RunID                 uuid.UUID
	ConversationsSeen     int
	ConversationsRendered int
	ConversationsSkipped  int // empty path or no timestamp
	ConversationsFiltered int // outside --since/--until
	Files                 []FileSummary
	DryRun                bool
	StartedAt             time.Time
	FinishedAt            time.Time
}

// FileSummary describes one digest file, written or (in a dry run) planned.
type FileSummary struct {
	Date          string
	Path          string
	Conversations int
	Bytes         int
}

// FilesWritten is zero for dry runs.
func (s Summary) FilesWritten() int {
	if s.DryRun {
		return 0
	}
	return len(s.Files)
}

// FormatRunSummary renders a run summary as Slack mrkdwn, one line per date.
func FormatRunSummary(s Summary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Chat digest run* `%s`", s.RunID)
	if s.DryRun {
		sb.WriteString(" (dry run)")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Conversations: %d seen, %d rendered, %d skipped",
		s.ConversationsSeen, s.ConversationsRendered, s.ConversationsSkipped)
	if s.ConversationsFiltered > 0 {
		fmt.Fprintf(&sb, ", %d outside date range", s.ConversationsFiltered)
	}
	sb.WriteString("\n")

	if len(s.Files) == 0 {
		sb.WriteString("_No digests produced._")
		return sb.String()
	}

	files := make([]FileSummary, len(s.Files))
	copy(files, s.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].Date < files[j].Date })

	fmt.Fprintf(&sb, "Files: %d\n", len(files))
	for _, f := range files {
		noun := "conversations"
		if f.Conversations == 1 {
			noun = "conversation"
		}
		fmt.Fprintf(&sb, "  - *%s*: %d %s, %d bytes\n", f.Date, f.Conversations, noun, f.Bytes)
	}
	return sb.String()
}
