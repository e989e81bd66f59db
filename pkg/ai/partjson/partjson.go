// ABOUTME: Best-effort decoding of tool input JSON that is still streaming in
// ABOUTME: Closes truncated strings, objects and arrays; Tracker groups fragments by tool ID

package partjson

import (
	"encoding/json"
	"strings"
)

// Parse decodes a possibly truncated JSON object. Open strings, arrays and
// objects are closed and dangling keys or partial literals dropped before
// decoding. Returns an empty map when nothing usable can be recovered.
func Parse(s string) map[string]any {
	out := map[string]any{}
	if strings.TrimSpace(s) == "" {
		return out
	}
	if json.Unmarshal([]byte(s), &out) == nil && out != nil {
		return out
	}
	out = map[string]any{}
	if json.Unmarshal([]byte(Complete(s)), &out) != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// Complete returns s with every open structure closed. A trailing object
// member whose value has not started, or is a partial true/false/null, is
// dropped together with its key.
func Complete(s string) string {
	st := scanState{keyStart: -1, valueStart: -1}
	for i := 0; i < len(s); i++ {
		st.step(i, s[i])
	}

	if st.keyStart >= 0 && !st.memberUsable(s) {
		s = strings.TrimRight(s[:st.keyStart], ", \t\r\n")
		st.inString = false
	}

	var b strings.Builder
	b.WriteString(s)
	if st.inString {
		if st.escaped {
			b.WriteByte('\\')
		}
		b.WriteByte('"')
	}
	body := strings.TrimRight(b.String(), ", \t\r\n")
	b.Reset()
	b.WriteString(body)
	for i := len(st.open) - 1; i >= 0; i-- {
		b.WriteByte(st.open[i])
	}
	return b.String()
}

// scanState tracks nesting, string context and the last object member
// across a byte scan.
type scanState struct {
	open       []byte // pending closers, innermost last
	inString   bool
	escaped    bool
	prev       byte // last significant byte outside strings
	keyStart   int  // offset of the key of the trailing object member, or -1
	colon      bool
	valueStart int
	valueIsStr bool
}

func (st *scanState) step(i int, c byte) {
	if st.inString {
		switch {
		case st.escaped:
			st.escaped = false
		case c == '\\':
			st.escaped = true
		case c == '"':
			st.inString = false
			st.prev = '"'
		}
		return
	}

	switch c {
	case ' ', '\t', '\r', '\n':
		return
	case '"':
		st.inString = true
		if st.expectKey() {
			st.keyStart, st.colon, st.valueStart = i, false, -1
		} else if st.keyStart >= 0 && st.valueStart < 0 {
			st.valueStart, st.valueIsStr = i, true
		}
	case ':':
		st.colon = true
	case ',':
		st.keyStart = -1
	case '{':
		st.open = append(st.open, '}')
		st.keyStart = -1
	case '[':
		st.open = append(st.open, ']')
		st.keyStart = -1
	case '}', ']':
		if n := len(st.open); n > 0 {
			st.open = st.open[:n-1]
		}
		st.keyStart = -1
	default:
		if st.keyStart >= 0 && st.colon && st.valueStart < 0 {
			st.valueStart, st.valueIsStr = i, false
		}
	}
	st.prev = c
}

func (st *scanState) expectKey() bool {
	n := len(st.open)
	return n > 0 && st.open[n-1] == '}' && (st.prev == '{' || st.prev == ',')
}

// memberUsable reports whether the trailing member can be kept once open
// strings and structures are closed.
func (st *scanState) memberUsable(s string) bool {
	if !st.colon || st.valueStart < 0 {
		return false
	}
	if st.valueIsStr {
		return true
	}
	token := strings.TrimSpace(s[st.valueStart:])
	for _, lit := range partialLiterals {
		if token == lit {
			return false
		}
	}
	return token != "-"
}

var partialLiterals = []string{"t", "tr", "tru", "f", "fa", "fal", "fals", "n", "nu", "nul"}

// Tracker accumulates streamed input fragments per tool use ID so callers can
// preview arguments before the block completes.
type Tracker struct {
	buf map[string]*strings.Builder
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{buf: make(map[string]*strings.Builder)}
}

// Append adds a fragment for the given tool ID and returns the best-effort
// decoding of everything received so far.
func (t *Tracker) Append(id, fragment string) map[string]any {
	b, ok := t.buf[id]
	if !ok {
		b = &strings.Builder{}
		t.buf[id] = b
	}
	b.WriteString(fragment)
	return Parse(b.String())
}

// Raw returns the fragments received so far for id.
func (t *Tracker) Raw(id string) string {
	if b, ok := t.buf[id]; ok {
		return b.String()
	}
	return ""
}

// Forget drops the buffered fragments for id.
func (t *Tracker) Forget(id string) {
	delete(t.buf, id)
}
