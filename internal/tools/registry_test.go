// ABOUTME: Tests for the tool registry: registration, lookup, definitions and suggestions
// ABOUTME: Includes a concurrent register/read check for the race detector

package tools

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
)

func noopTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: name + " tool",
		Execute: func(context.Context, Args, Context) (Result, error) {
			return Result{Content: name}, nil
		},
	}
}

func TestRegistryRegisterGetRemove(t *testing.T) {
	t.Parallel()

	r := NewRegistry(noopTool("read"), noopTool("ls"))
	if r.Get("read") == nil || r.Get("ls") == nil {
		t.Fatal("registered tools missing")
	}
	if r.Get("nonexistent") != nil {
		t.Error("Get(unknown) should be nil")
	}

	replacement := noopTool("read")
	r.Register(replacement)
	if r.Get("read") != replacement || r.Len() != 2 {
		t.Error("Register should replace an existing tool")
	}

	r.Remove("ls")
	if r.Get("ls") != nil || r.Len() != 1 {
		t.Error("Remove did not delete the tool")
	}
}

func TestRegistryNamesAndDefinitionsSorted(t *testing.T) {
	t.Parallel()

	r := NewRegistry(noopTool("write"), noopTool("bash"), noopTool("grep"))
	if got := r.Names(); !slices.Equal(got, []string{"bash", "grep", "write"}) {
		t.Errorf("Names() = %v", got)
	}
	defs := r.Definitions()
	if len(defs) != 3 || defs[0].Name != "bash" || defs[2].Name != "write" {
		t.Errorf("Definitions() = %+v", defs)
	}
	if defs[1].Description != "grep tool" {
		t.Errorf("description = %q", defs[1].Description)
	}
}

func TestRegistryNilIsEmpty(t *testing.T) {
	t.Parallel()

	var r *Registry
	if r.Get("x") != nil || r.Len() != 0 || r.Names() != nil || r.Definitions() != nil {
		t.Error("nil registry should behave as empty")
	}
}

func TestRegistrySuggest(t *testing.T) {
	t.Parallel()

	r := NewRegistry(noopTool("read"), noopTool("ls"), noopTool("grep"))
	if got := r.Suggest("red"); got != "read" {
		t.Errorf("Suggest(red) = %q, want read", got)
	}
	if got := r.Suggest("xyz"); got != "" {
		t.Errorf("Suggest(xyz) = %q, want empty", got)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(noopTool(fmt.Sprintf("t%d", i)))
		}()
		go func() {
			defer wg.Done()
			_ = r.Definitions()
		}()
	}
	wg.Wait()
	if r.Len() != 20 {
		t.Errorf("Len() = %d, want 20", r.Len())
	}
}
