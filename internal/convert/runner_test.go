package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/chatdigest/internal/digest"
	"github.com/MikeSquared-Agency/chatdigest/internal/export"
	"github.com/MikeSquared-Agency/chatdigest/internal/hermes"
	"github.com/MikeSquared-Agency/chatdigest/internal/store"
)

var jst = time.FixedZone("JST", 9*60*60)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func at(v float64) *float64 { return &v }

type turn struct {
	role        string
	text        string
	created     *float64
	contentType string
}

// linearConversation builds an export record whose mapping is a single chain under
// a message-less root node.
func linearConversation(title string, turns ...turn) map[string]any {
	mapping := map[string]any{
		"root": map[string]any{"message": nil, "parent": nil},
	}
	parent := "root"
	for i, tr := range turns {
		id := fmt.Sprintf("n%d", i)
		ct := tr.contentType
		if ct == "" {
			ct = "text"
		}
		msg := map[string]any{
			"author":  map[string]any{"role": tr.role},
			"content": map[string]any{"content_type": ct, "parts": []any{tr.text}},
		}
		if tr.created != nil {
			msg["create_time"] = *tr.created
		}
		mapping[id] = map[string]any{"message": msg, "parent": parent}
		parent = id
	}

	conv := map[string]any{"mapping": mapping, "current_node": parent}
	if title != "" {
		conv["title"] = title
	}
	return conv
}

func writeArchive(t *testing.T, convs ...map[string]any) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"conversations": convs})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "conversations.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func tripPlanning() map[string]any {
	return linearConversation("Trip Planning",
		turn{role: "user", text: "Where should I go?", created: at(1700000000)},
		turn{role: "assistant", text: "Try Japan.", created: at(1700000100)},
	)
}

type fakeSink struct {
	saved   []digest.Digest
	runs    []store.Run
	saveErr error
}

func (f *fakeSink) SaveDigest(_ context.Context, _ uuid.UUID, d digest.Digest) error {
	f.saved = append(f.saved, d)
	return f.saveErr
}

func (f *fakeSink) RecordRun(_ context.Context, run store.Run) error {
	f.runs = append(f.runs, run)
	return nil
}

type fakePublisher struct {
	subjects []string
	events   []any
}

func (f *fakePublisher) Publish(subject string, data any) error {
	f.subjects = append(f.subjects, subject)
	f.events = append(f.events, data)
	return nil
}

type fakeNotifier struct {
	texts []string
	err   error
}

func (f *fakeNotifier) PostMessage(_ context.Context, text string) (string, error) {
	f.texts = append(f.texts, text)
	return "1.0", f.err
}

func TestRun_TripPlanning(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "output_md")
	var out bytes.Buffer

	r := NewRunner(Config{InputPath: writeArchive(t, tripPlanning()), OutputDir: outDir, Location: jst}, &out, discardLogger())
	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(outDir, "2023-11-15.md")
	assert.Equal(t, "written: "+path+"\n", out.String())
	assert.Equal(t, "# 2023-11-15\n\n"+
		"## Trip Planning\n\n"+
		"**User**  \n*2023-11-15 07:13:20*  \nWhere should I go?\n\n"+
		"**Assistant**  \n*2023-11-15 07:15:00*  \nTry Japan.\n", readFile(t, path))

	assert.Equal(t, 1, sum.ConversationsSeen)
	assert.Equal(t, 1, sum.ConversationsRendered)
	assert.Equal(t, 1, sum.FilesWritten())
	assert.NotEqual(t, uuid.Nil, sum.RunID)
}

func TestRun_DefaultsToLocalTime(t *testing.T) {
	outDir := t.TempDir()
	var out bytes.Buffer

	_, err := NewRunner(Config{InputPath: writeArchive(t, tripPlanning()), OutputDir: outDir}, &out, discardLogger()).Run(context.Background())
	require.NoError(t, err)

	first := time.Unix(1700000000, 0).Local()
	body := readFile(t, filepath.Join(outDir, first.Format("2006-01-02")+".md"))
	assert.Contains(t, body, "*"+first.Format("2006-01-02 15:04:05")+"*  \nWhere should I go?")
}

func TestRun_MergesSameDateAndKeepsFirstSeenOrder(t *testing.T) {
	outDir := t.TempDir()
	var out bytes.Buffer

	archive := writeArchive(t,
		linearConversation("Late", turn{role: "user", text: "day two", created: at(1700100000)}),
		linearConversation("Morning", turn{role: "user", text: "day one a", created: at(1700000000)}),
		linearConversation("", turn{role: "user", text: "day two again", created: at(1700103600)}),
		linearConversation("Evening", turn{role: "user", text: "day one b", created: at(1700020000)}),
	)
	sum, err := NewRunner(Config{InputPath: archive, OutputDir: outDir, Location: jst}, &out, discardLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "written: "+filepath.Join(outDir, "2023-11-16.md")+"\n"+
		"written: "+filepath.Join(outDir, "2023-11-15.md")+"\n", out.String())
	require.Len(t, sum.Files, 2)
	assert.Equal(t, 2, sum.Files[0].Conversations)

	dayOne := readFile(t, filepath.Join(outDir, "2023-11-15.md"))
	assert.Less(t, strings.Index(dayOne, "## Morning"), strings.Index(dayOne, "## Evening"))

	dayTwo := readFile(t, filepath.Join(outDir, "2023-11-16.md"))
	assert.Contains(t, dayTwo, "day two\n\n## Untitled\n\n**User**  ")
}

func TestRun_SkipsConversationsWithoutTimestamps(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")
	var out bytes.Buffer

	archive := writeArchive(t,
		linearConversation("Timeless",
			turn{role: "user", text: "hi"},
			turn{role: "assistant", text: "hello"},
		),
		linearConversation("Nothing here"),
	)
	sum, err := NewRunner(Config{InputPath: archive, OutputDir: outDir, Location: jst}, &out, discardLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, out.String())
	assert.Equal(t, 2, sum.ConversationsSkipped)
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err, "output directory is still created")
	assert.Empty(t, entries)
}

func TestRun_OmitsNonTextMessages(t *testing.T) {
	outDir := t.TempDir()
	var out bytes.Buffer

	archive := writeArchive(t, linearConversation("Pictures",
		turn{role: "user", text: "draw a fox", created: at(1700000000)},
		turn{role: "assistant", text: "file-service://abc", created: at(1700000010), contentType: "image_asset_pointer"},
		turn{role: "assistant", text: "Here is your fox.", created: at(1700000020)},
	))
	_, err := NewRunner(Config{InputPath: archive, OutputDir: outDir, Location: jst}, &out, discardLogger()).Run(context.Background())
	require.NoError(t, err)

	body := readFile(t, filepath.Join(outDir, "2023-11-15.md"))
	assert.NotContains(t, body, "file-service")
	assert.NotContains(t, body, "07:13:30")
	assert.Equal(t, 1, strings.Count(body, "**Assistant**"))
}

func TestRun_CyclicMappingIsFatal(t *testing.T) {
	conv := map[string]any{
		"title":        "Loop",
		"current_node": "a",
		"mapping": map[string]any{
			"a": map[string]any{"message": map[string]any{"create_time": 1}, "parent": "b"},
			"b": map[string]any{"message": map[string]any{"create_time": 2}, "parent": "a"},
		},
	}
	var out bytes.Buffer

	_, err := NewRunner(Config{InputPath: writeArchive(t, conv), OutputDir: t.TempDir()}, &out, discardLogger()).Run(context.Background())
	require.ErrorIs(t, err, export.ErrCyclicPath)
	assert.Contains(t, err.Error(), "Loop")
}

func TestRun_InputErrors(t *testing.T) {
	var out bytes.Buffer
	dir := t.TempDir()

	_, err := NewRunner(Config{InputPath: filepath.Join(dir, "missing.json"), OutputDir: dir}, &out, discardLogger()).Run(context.Background())
	assert.ErrorIs(t, err, export.ErrInputNotFound)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{nope"), 0o644))
	_, err = NewRunner(Config{InputPath: bad, OutputDir: dir}, &out, discardLogger()).Run(context.Background())
	assert.ErrorIs(t, err, export.ErrMalformedJSON)
}

func TestRun_OutputDirFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "taken")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	var out bytes.Buffer

	_, err := NewRunner(Config{InputPath: writeArchive(t, tripPlanning()), OutputDir: blocker, Location: jst}, &out, discardLogger()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output directory")
	assert.Empty(t, out.String())
}

func TestRun_WriteFailureStopsRemainingFiles(t *testing.T) {
	outDir := t.TempDir()
	// A directory where the first digest file should go makes that write fail.
	require.NoError(t, os.Mkdir(filepath.Join(outDir, "2023-11-15.md"), 0o755))
	var out bytes.Buffer

	archive := writeArchive(t,
		tripPlanning(),
		linearConversation("Later", turn{role: "user", text: "next day", created: at(1700100000)}),
	)
	sink := &fakeSink{}
	_, err := NewRunner(Config{InputPath: archive, OutputDir: outDir, Location: jst}, &out, discardLogger(), WithSink(sink)).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write file")

	assert.NoFileExists(t, filepath.Join(outDir, "2023-11-16.md"))
	assert.Empty(t, out.String())
	assert.Empty(t, sink.saved)
	assert.Empty(t, sink.runs)
}

func TestRun_DateRangeFilter(t *testing.T) {
	outDir := t.TempDir()
	var out bytes.Buffer

	archive := writeArchive(t,
		linearConversation("Before", turn{role: "user", text: "a", created: at(1699900000)}),
		tripPlanning(),
		linearConversation("After", turn{role: "user", text: "c", created: at(1700200000)}),
	)
	cfg := Config{InputPath: archive, OutputDir: outDir, Location: jst, Since: "2023-11-15", Until: "2023-11-16"}
	sum, err := NewRunner(cfg, &out, discardLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.ConversationsFiltered)
	assert.Equal(t, "written: "+filepath.Join(outDir, "2023-11-15.md")+"\n", out.String())
}

func TestRun_InvalidDateRange(t *testing.T) {
	var out bytes.Buffer
	for _, cfg := range []Config{
		{Since: "15/11/2023"},
		{Until: "tomorrow"},
		{Since: "2023-11-16", Until: "2023-11-15"},
	} {
		cfg.InputPath = writeArchive(t, tripPlanning())
		cfg.OutputDir = t.TempDir()
		_, err := NewRunner(cfg, &out, discardLogger()).Run(context.Background())
		assert.Error(t, err)
	}
	assert.Empty(t, out.String())
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "never")
	var out bytes.Buffer
	pub := &fakePublisher{}
	sink := &fakeSink{}

	sum, err := NewRunner(Config{InputPath: writeArchive(t, tripPlanning()), OutputDir: outDir, Location: jst, DryRun: true},
		&out, discardLogger(), WithPublisher(pub), WithSink(sink)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "would write: "+filepath.Join(outDir, "2023-11-15.md")+"\n", out.String())
	assert.NoDirExists(t, outDir)
	assert.Equal(t, 0, sum.FilesWritten())
	assert.Empty(t, sink.saved)
	require.Len(t, sink.runs, 1)
	assert.True(t, sink.runs[0].DryRun)
	assert.Equal(t, []string{hermes.SubjectRunCompleted}, pub.subjects)
}

func TestRun_SideOutputs(t *testing.T) {
	outDir := t.TempDir()
	var out bytes.Buffer
	sink := &fakeSink{saveErr: errors.New("db down")}
	pub := &fakePublisher{}
	slack := &fakeNotifier{err: errors.New("channel_not_found")}

	archive := writeArchive(t,
		tripPlanning(),
		linearConversation("Later", turn{role: "user", text: "next day", created: at(1700100000)}),
	)
	sum, err := NewRunner(Config{InputPath: archive, OutputDir: outDir, Location: jst}, &out, discardLogger(),
		WithSink(sink), WithPublisher(pub), WithNotifier(slack)).Run(context.Background())
	require.NoError(t, err, "side-output failures do not fail the run")

	require.Len(t, sink.saved, 2)
	assert.Equal(t, "2023-11-15", sink.saved[0].Date)
	require.Len(t, sink.runs, 1)
	assert.Equal(t, sum.RunID, sink.runs[0].ID)
	assert.Equal(t, 2, sink.runs[0].FilesWritten)

	assert.Equal(t, []string{
		hermes.SubjectDigestWritten,
		hermes.SubjectDigestWritten,
		hermes.SubjectRunCompleted,
	}, pub.subjects)
	ev, ok := pub.events[0].(hermes.DigestWritten)
	require.True(t, ok)
	assert.Equal(t, sum.RunID.String(), ev.RunID)
	assert.Equal(t, filepath.Join(outDir, "2023-11-15.md"), ev.Path)

	require.Len(t, slack.texts, 1)
	assert.Contains(t, slack.texts[0], "*2023-11-16*: 1 conversation")
}

func TestRun_CancelledContextStopsWriting(t *testing.T) {
	outDir := t.TempDir()
	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(Config{InputPath: writeArchive(t, tripPlanning()), OutputDir: outDir, Location: jst}, &out, discardLogger()).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(outDir, "2023-11-15.md"))
}

func TestFormatRunSummary(t *testing.T) {
	id := uuid.MustParse("9f6ed519-0000-0000-0000-000000000000")
	text := FormatRunSummary(Summary{
		RunID:                 id,
		ConversationsSeen:     5,
		ConversationsRendered: 3,
		ConversationsSkipped:  1,
		ConversationsFiltered: 1,
		Files: []FileSummary{
			{Date: "2023-11-16", Conversations: 1, Bytes: 40},
			{Date: "2023-11-15", Conversations: 2, Bytes: 120},
		},
	})

	for _, want := range []string{
		"`9f6ed519-0000-0000-0000-000000000000`",
		"5 seen, 3 rendered, 1 skipped, 1 outside date range",
		"Files: 2",
		"*2023-11-15*: 2 conversations, 120 bytes",
		"*2023-11-16*: 1 conversation, 40 bytes",
	} {
		assert.Contains(t, text, want)
	}
	assert.Less(t, strings.Index(text, "2023-11-15"), strings.Index(text, "2023-11-16"))
}

func TestFormatRunSummary_Empty(t *testing.T) {
	text := FormatRunSummary(Summary{RunID: uuid.New(), DryRun: true})
	assert.Contains(t, text, "(dry run)")
	assert.Contains(t, text, "No digests produced")
}
