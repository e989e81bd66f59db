// ABOUTME: Directory listing tool: lists entries with name, size, and mod time
// ABOUTME: Wraps os.ReadDir with formatted output

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mauromedda/pi-loop-go/internal/tools"
)

// NewLsTool creates a tool that lists directory contents.
func NewLsTool() *tools.Tool {
	return &tools.Tool{
		Name:        "ls",
		Description: "List the contents of a directory with name, size, and modification time.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"required": ["path"],
			"properties": {
				"path": {"type": "string", "description": "Path to the directory"}
			}
		}`),
		Execute: executeLs,
	}
}

func executeLs(_ context.Context, args tools.Args, _ tools.Context) (tools.Result, error) {
	path := args.String("path", ".")
	entries, err := os.ReadDir(path)
	if err != nil {
		return errResult(fmt.Errorf("reading directory %s: %w", path, err)), nil
	}
	return tools.Result{Content: formatEntries(entries)}, nil
}

// formatEntries formats directory entries as a human-readable listing.
func formatEntries(entries []os.DirEntry) string {
	if len(entries) == 0 {
		return "(empty directory)"
	}

	var b strings.Builder
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			fmt.Fprintf(&b, "%s  (info unavailable)\n", e.Name())
			continue
		}
		prefix := " "
		if e.IsDir() {
			prefix = "d"
		}
		fmt.Fprintf(&b, "%s %10d  %s  %s\n", prefix, info.Size(), info.ModTime().Format("2006-01-02 15:04:05"), e.Name())
	}
	return b.String()
}
