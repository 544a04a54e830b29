package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectDigestWritten = "chatdigest.digest.written"
	SubjectRunCompleted  = "chatdigest.run.completed"
)

// DigestWritten is emitted once per Markdown file a run writes.
type DigestWritten struct {
	RunID         string `json:"run_id"`
	Date          string `json:"date"`
	Path          string `json:"path"`
	Conversations int    `json:"conversations"`
	Bytes         int    `json:"bytes"`
}

// RunCompleted is emitted at the end of every run, including dry runs.
type RunCompleted struct {
	RunID                 string    `json:"run_id"`
	Input                 string    `json:"input"`
	OutputDir             string    `json:"output_dir"`
	ConversationsSeen     int       `json:"conversations_seen"`
	ConversationsRendered int       `json:"conversations_rendered"`
	ConversationsSkipped  int       `json:"conversations_skipped"`
	FilesWritten          int       `json:"files_written"`
	DryRun                bool      `json:"dry_run"`
	Timestamp             time.Time `json:"timestamp"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("chatdigest"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Close flushes pending publishes before closing the connection.
func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	if err := c.conn.Flush(); err != nil {
		c.logger.Warn("nats flush failed", "error", err)
	}
	c.conn.Close()
}
