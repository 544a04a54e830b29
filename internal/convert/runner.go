package convert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/chatdigest/internal/digest"
	"github.com/MikeSquared-Agency/chatdigest/internal/export"
	"github.com/MikeSquared-Agency/chatdigest/internal/hermes"
	"github.com/MikeSquared-Agency/chatdigest/internal/store"
)

// Config holds the inputs of one conversion run.
type Config struct {
	InputPath string
	OutputDir string
	Since     string // inclusive YYYY-MM-DD, empty for no lower bound
	Until     string // inclusive YYYY-MM-DD, empty for no upper bound
	DryRun    bool
	Location  *time.Location
}

// Sink persists digests and run records alongside the Markdown files.
type Sink interface {
	SaveDigest(ctx context.Context, runID uuid.UUID, d digest.Digest) error
	RecordRun(ctx context.Context, run store.Run) error
}

type Publisher interface {
	Publish(subject string, data any) error
}

type Notifier interface {
	PostMessage(ctx context.Context, text string) (string, error)
}

type Option func(*Runner)

func WithSink(s Sink) Option { return func(r *Runner) { r.sink = s } }
func WithPublisher(p Publisher) Option { return func(r *Runner) { r.publisher = p } }
func WithNotifier(n Notifier) Option { return func(r *Runner) { r.notifier = n } }

// Runner converts one export archive into daily Markdown digests.
type Runner struct {
	cfg       Config
	out       io.Writer
	logger    *slog.Logger
	sink      Sink
	publisher Publisher
	notifier  Notifier
}

// NewRunner creates a runner that reports each written file on out.
func NewRunner(cfg Config, out io.Writer, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, out: out, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the conversion. Input and output failures are returned and end the
// run; side-output failures (sink, events, Slack) are logged and ignored.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if err := r.validateRange(); err != nil {
		return nil, err
	}

	sum := &Summary{
		RunID:     uuid.New(),
		DryRun:    r.cfg.DryRun,
		StartedAt: time.Now().UTC(),
	}
	logger := r.logger.With("run_id", sum.RunID.String())

	convs, err := export.LoadFile(r.cfg.InputPath, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("archive loaded", "path", r.cfg.InputPath, "conversations", len(convs))

	builder := digest.NewBuilder(r.cfg.Location)
	loc := builder.Location()

	for i, conv := range convs {
		sum.ConversationsSeen++
		title := conv.DisplayTitle()

		path, err := export.VisiblePath(conv)
		if err != nil {
			return nil, fmt.Errorf("malformed conversation %d (%q): %w", i, title, err)
		}

		date, ok := digest.DateKey(path, loc)
		if !ok {
			logger.Debug("skipping conversation without timestamps", "index", i, "title", title, "path_len", len(path))
			sum.ConversationsSkipped++
			continue
		}
		if !r.inDateRange(date) {
			sum.ConversationsFiltered++
			continue
		}

		builder.Append(date, digest.RenderConversation(title, path, loc))
		sum.ConversationsRendered++
	}

	digests := builder.Digests()
	if r.cfg.DryRun {
		for _, d := range digests {
			p := digest.FilePath(r.cfg.OutputDir, d.Date)
			fmt.Fprintf(r.out, "would write: %s\n", p)
			sum.Files = append(sum.Files, FileSummary{Date: d.Date, Path: p, Conversations: d.Conversations, Bytes: len(d.Render())})
		}
	} else if err := r.writeAll(ctx, logger, sum, digests); err != nil {
		return nil, err
	}

	sum.FinishedAt = time.Now().UTC()
	r.finish(ctx, logger, sum)
	return sum, nil
}

func (r *Runner) writeAll(ctx context.Context, logger *slog.Logger, sum *Summary, digests []digest.Digest) error {
	if err := digest.EnsureDir(r.cfg.OutputDir); err != nil {
		return err
	}

	for _, d := range digests {
		if err := ctx.Err(); err != nil {
			logger.Info("run interrupted", "files_written", len(sum.Files))
			return err
		}

		p, err := digest.WriteFile(r.cfg.OutputDir, d)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "written: %s\n", p)

		fs := FileSummary{Date: d.Date, Path: p, Conversations: d.Conversations, Bytes: len(d.Render())}
		sum.Files = append(sum.Files, fs)
		logger.Debug("digest written", "date", d.Date, "path", p, "conversations", d.Conversations)

		if r.sink != nil {
			if err := r.sink.SaveDigest(ctx, sum.RunID, d); err != nil {
				logger.Warn("failed to store digest", "date", d.Date, "error", err)
			}
		}
		r.publish(logger, hermes.SubjectDigestWritten, hermes.DigestWritten{
			RunID:         sum.RunID.String(),
			Date:          fs.Date,
			Path:          fs.Path,
			Conversations: fs.Conversations,
			Bytes:         fs.Bytes,
		})
	}
	return nil
}

// finish records the run and announces it.
func (r *Runner) finish(ctx context.Context, logger *slog.Logger, sum *Summary) {
	if r.sink != nil {
		if err := r.sink.RecordRun(ctx, store.Run{
			ID:                    sum.RunID,
			InputPath:             r.cfg.InputPath,
			OutputDir:             r.cfg.OutputDir,
			ConversationsSeen:     sum.ConversationsSeen,
			ConversationsRendered: sum.ConversationsRendered,
			ConversationsSkipped:  sum.ConversationsSkipped + sum.ConversationsFiltered,
			FilesWritten:          sum.FilesWritten(),
			DryRun:                sum.DryRun,
			StartedAt:             sum.StartedAt,
			FinishedAt:            sum.FinishedAt,
		}); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}

	r.publish(logger, hermes.SubjectRunCompleted, hermes.RunCompleted{
		RunID:                 sum.RunID.String(),
		Input:                 r.cfg.InputPath,
		OutputDir:             r.cfg.OutputDir,
		ConversationsSeen:     sum.ConversationsSeen,
		ConversationsRendered: sum.ConversationsRendered,
		ConversationsSkipped:  sum.ConversationsSkipped + sum.ConversationsFiltered,
		FilesWritten:          sum.FilesWritten(),
		DryRun:                sum.DryRun,
		Timestamp:             sum.FinishedAt,
	})

	text := FormatRunSummary(*sum)
	if r.notifier == nil {
		logger.Debug("run summary (no Slack configured)", "summary", text)
	} else if _, err := r.notifier.PostMessage(ctx, text); err != nil {
		logger.Warn("failed to post run summary to Slack", "error", err)
	}

	logger.Info("conversion complete",
		"conversations_seen", sum.ConversationsSeen,
		"conversations_rendered", sum.ConversationsRendered,
		"conversations_skipped", sum.ConversationsSkipped,
		"conversations_filtered", sum.ConversationsFiltered,
		"files", sum.FilesWritten(),
		"dry_run", sum.DryRun,
	)
}

func (r *Runner) publish(logger *slog.Logger, subject string, event any) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(subject, event); err != nil {
		logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func (r *Runner) validateRange() error {
	for _, b := range []struct{ flag, value string }{{"since", r.cfg.Since}, {"until", r.cfg.Until}} {
		if b.value == "" {
			continue
		}
		if _, err := digest.ParseDate(b.value); err != nil {
			return fmt.Errorf("invalid --%s date %q: expected YYYY-MM-DD", b.flag, b.value)
		}
	}
	if r.cfg.Since != "" && r.cfg.Until != "" && r.cfg.Since > r.cfg.Until {
		return fmt.Errorf("--since %s is after --until %s", r.cfg.Since, r.cfg.Until)
	}
	return nil
}

// inDateRange compares YYYY-MM-DD keys lexically, which orders them by date.
func (r *Runner) inDateRange(date string) bool {
	if r.cfg.Since != "" && date < r.cfg.Since {
		return false
	}
	if r.cfg.Until != "" && date > r.cfg.Until {
		return false
	}
	return true
}
