package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/tidwall/gjson"
)

var (
	ErrInputNotFound = errors.New("input file not found")
	ErrMalformedJSON = errors.New("invalid JSON format")
	ErrReadInput     = errors.New("failed to read input file")
)

// LoadFile reads an export archive from disk.
func LoadFile(path string, logger *slog.Logger) ([]Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("%w %s: %w", ErrReadInput, path, err)
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w in %s", ErrMalformedJSON, path)
	}
	return Decode(data, logger), nil
}

// Decode extracts conversations from a validated archive. The archive is either an
// object with a "conversations" array or a bare array; any other shape holds none.
// Records that do not decode as a conversation are skipped.
func Decode(data []byte, logger *slog.Logger) []Conversation {
	root := gjson.ParseBytes(data)

	var list gjson.Result
	switch {
	case root.IsObject():
		list = root.Get("conversations")
	case root.IsArray():
		list = root
	}
	if !list.IsArray() {
		logger.Debug("archive holds no conversation list", "type", root.Type.String())
		return nil
	}

	var convs []Conversation
	idx := 0
	list.ForEach(func(_, value gjson.Result) bool {
		defer func() { idx++ }()

		if !value.IsObject() {
			logger.Warn("skipping non-object conversation record", "index", idx)
			return true
		}
		var c Conversation
		if err := json.Unmarshal([]byte(value.Raw), &c); err != nil {
			logger.Warn("skipping malformed conversation record", "index", idx, "error", err)
			return true
		}
		convs = append(convs, c)
		return true
	})

	return convs
}
