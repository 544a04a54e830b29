package digest

import (
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/chatdigest/internal/export"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Digest is the Markdown accumulated for one local calendar date.
type Digest struct {
	Date          string
	Lines         []string
	Conversations int
}

// Render returns the file body: a date heading followed by the digest lines.
func (d Digest) Render() string {
	return "# " + d.Date + "\n\n" + strings.Join(d.Lines, "\n")
}

// Builder accumulates rendered conversations per date, keeping dates in the order
// they were first seen. A Builder belongs to a single run.
type Builder struct {
	loc     *time.Location
	order   []string
	digests map[string]*Digest
}

// NewBuilder returns a builder that renders dates and times in loc.
// A nil loc means time.Local.
func NewBuilder(loc *time.Location) *Builder {
	if loc == nil {
		loc = time.Local
	}
	return &Builder{
		loc:     loc,
		digests: make(map[string]*Digest),
	}
}

func (b *Builder) Location() *time.Location {
	return b.loc
}

// Add renders a conversation's visible path into the digest for its date.
// It reports the date and false when the path carries no timestamp.
func (b *Builder) Add(title string, path []export.Node) (string, bool) {
	date, ok := DateKey(path, b.loc)
	if !ok {
		return "", false
	}
	b.Append(date, RenderConversation(title, path, b.loc))
	return date, true
}

// Append adds one conversation's lines to the digest for date.
func (b *Builder) Append(date string, lines []string) {
	d, ok := b.digests[date]
	if !ok {
		d = &Digest{Date: date}
		b.digests[date] = d
		b.order = append(b.order, date)
	}
	d.Lines = append(d.Lines, lines...)
	d.Conversations++
}

// Digests returns the accumulated digests in first-seen date order.
func (b *Builder) Digests() []Digest {
	out := make([]Digest, 0, len(b.order))
	for _, date := range b.order {
		out = append(out, *b.digests[date])
	}
	return out
}

// FirstTimestamp returns the creation time of the first message on the path that
// has one.
func FirstTimestamp(path []export.Node) (float64, bool) {
	for _, node := range path {
		if node.Message != nil && node.Message.CreateTime != nil {
			return *node.Message.CreateTime, true
		}
	}
	return 0, false
}

// DateKey returns the local date of the path's first timestamped message.
func DateKey(path []export.Node, loc *time.Location) (string, bool) {
	ts, ok := FirstTimestamp(path)
	if !ok {
		return "", false
	}
	return LocalTime(ts, loc).Format(DateLayout), true
}

// LocalTime converts fractional unix seconds to a time in loc.
func LocalTime(ts float64, loc *time.Location) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9)).In(loc)
}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToTitle(r)) + strings.ToLower(s[size:])
}
