// ABOUTME: Incremental Server-Sent Events framing over arbitrary byte chunks
// ABOUTME: Splits on blank lines (LF or CRLF), parses event, data, id fields; skips comments

package sse

import (
	"bytes"
	"strings"
)

// Event represents a single Server-Sent Event.
type Event struct {
	Type string
	Data string
	ID   string
}

// Split extracts every complete frame from buf. A frame ends at a blank line,
// whether terminated by "\n\n" or "\r\n\r\n". The returned frames exclude the
// terminating blank line and alias buf; rest holds the unterminated tail.
func Split(buf []byte) (frames [][]byte, rest []byte) {
	start, lineStart := 0, 0
	for {
		nl := bytes.IndexByte(buf[lineStart:], '\n')
		if nl < 0 {
			break
		}
		line := buf[lineStart : lineStart+nl]
		next := lineStart + nl + 1
		if len(line) == 0 || (len(line) == 1 && line[0] == '\r') {
			if lineStart > start {
				frames = append(frames, buf[start:lineStart])
			}
			start = next
		}
		lineStart = next
	}
	return frames, buf[start:]
}

// ParseFrame decodes the fields of one frame. Returns false when the frame
// carries no event, data or id field (e.g. comment-only keepalives).
func ParseFrame(frame []byte) (Event, bool) {
	var ev Event
	var data []string
	found := false

	for line := range strings.SplitSeq(string(frame), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || line[0] == ':' {
			continue
		}
		field, value := parseLine(line)
		switch field {
		case "event":
			ev.Type = value
		case "data":
			data = append(data, value)
		case "id":
			ev.ID = value
		default:
			continue
		}
		found = true
	}

	ev.Data = strings.Join(data, "\n")
	return ev, found
}

// parseLine splits an SSE line into field name and value.
func parseLine(line string) (string, string) {
	field, value, ok := strings.Cut(line, ":")
	if !ok {
		return line, ""
	}
	// Strip optional leading space after colon.
	return field, strings.TrimPrefix(value, " ")
}
