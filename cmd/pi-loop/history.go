// ABOUTME: Conversation history files for --resume and --save
// ABOUTME: Stored in the Anthropic Messages wire format so saved files are replayable as-is

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
	"github.com/mauromedda/pi-loop-go/pkg/ai/provider/anthropic"
)

func loadHistory(path string) ([]ai.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	msgs, err := anthropic.DecodeMessages(data)
	if err != nil {
		return nil, fmt.Errorf("decoding history %s: %w", path, err)
	}
	if err := ai.ValidateSequence(msgs); err != nil {
		return nil, fmt.Errorf("history %s: %w", path, err)
	}
	return msgs, nil
}

// saveHistory writes msgs atomically: a temp file in the same directory is
// renamed over path.
func saveHistory(path string, msgs []ai.Message) error {
	data, err := anthropic.EncodeMessages(msgs)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pi-loop-history-*")
	if err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("saving history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
