// ABOUTME: Read-file tool: returns file contents with optional line offset/limit
// ABOUTME: Detects binary files; output size is bounded by the executor's truncation

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mauromedda/pi-loop-go/internal/tools"
)

const binaryCheckBytes = 512

// NewReadTool creates a tool that returns file contents.
func NewReadTool() *tools.Tool {
	return &tools.Tool{
		Name:        "read",
		Description: "Read the contents of a file. Supports optional offset and limit in lines.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"required": ["path"],
			"properties": {
				"path":   {"type": "string", "description": "Path to the file"},
				"offset": {"type": "integer", "description": "Line number to start reading from (0-based)"},
				"limit":  {"type": "integer", "description": "Maximum number of lines to return"}
			}
		}`),
		Execute: executeRead,
	}
}

func executeRead(ctx context.Context, args tools.Args, _ tools.Context) (tools.Result, error) {
	path := args.String("path", "")
	if path == "" {
		return errResult(fmt.Errorf("missing required parameter %q", "path")), nil
	}
	if err := ctx.Err(); err != nil {
		return tools.Result{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errResult(fmt.Errorf("reading file %s: %w", path, err)), nil
	}
	if isBinary(data) {
		return tools.Result{Content: fmt.Sprintf("binary file detected: %s", path), IsError: true}, nil
	}

	return tools.Result{Content: sliceLines(string(data), args.Int("offset", 0), args.Int("limit", 0))}, nil
}

// isBinary checks for null bytes in the first binaryCheckBytes of data.
func isBinary(data []byte) bool {
	for _, b := range data[:min(len(data), binaryCheckBytes)] {
		if b == 0 {
			return true
		}
	}
	return false
}

// sliceLines extracts a line range, preserving line terminators.
func sliceLines(content string, offset, limit int64) string {
	if content == "" {
		return ""
	}
	lines := strings.SplitAfter(content, "\n")
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(lines)) {
		offset = int64(len(lines))
	}
	lines = lines[offset:]
	if limit > 0 && limit < int64(len(lines)) {
		lines = lines[:limit]
	}
	return strings.Join(lines, "")
}
