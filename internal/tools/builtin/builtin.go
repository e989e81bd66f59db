// ABOUTME: Minimal read-only file tools used by the pi-loop CLI
// ABOUTME: Concrete tools live outside the engine; this package only feeds the demo binary

package builtin

import (
	"github.com/mauromedda/pi-loop-go/internal/tools"
)

// Register adds every builtin tool to reg.
func Register(reg *tools.Registry) {
	reg.Register(NewReadTool())
	reg.Register(NewLsTool())
}

// errResult builds a Result that signals a command-level failure.
func errResult(err error) tools.Result {
	return tools.Result{Content: err.Error(), IsError: true}
}
