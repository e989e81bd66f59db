// ABOUTME: CLI flag parsing using stdlib flag package
// ABOUTME: Supports --model, --provider, --stream, --resume, --save, --async, --verbose, --version

package main

import (
	"flag"
	"strings"

	"github.com/mauromedda/pi-loop-go/internal/config"
)

type cliArgs struct {
	model         string
	provider      string
	baseURL       string
	stream        bool
	streamSet     bool
	maxIterations int
	resume        string
	save          string
	async         bool
	verbose       bool
	version       bool
	prompt        string
}

func parseFlags(fs *flag.FlagSet, argv []string) (cliArgs, error) {
	var args cliArgs

	fs.StringVar(&args.model, "model", "", "Model to use (e.g., claude-sonnet-4-6 or ollama:llama3)")
	fs.StringVar(&args.provider, "provider", "", "Provider API: anthropic, openai, ollama, vllm")
	fs.StringVar(&args.baseURL, "base-url", "", "Custom API base URL")
	fs.BoolVar(&args.stream, "stream", false, "Stream model output as it arrives")
	fs.IntVar(&args.maxIterations, "max-iterations", 0, "Maximum model calls per prompt")
	fs.StringVar(&args.resume, "resume", "", "Load conversation history from `file`")
	fs.StringVar(&args.save, "save", "", "Write conversation history to `file` after the run")
	fs.BoolVar(&args.async, "async", false, "Submit the prompt as a background task and await it")
	fs.BoolVar(&args.verbose, "verbose", false, "Debug logging and effective config on stderr")
	fs.BoolVar(&args.version, "version", false, "Show version and exit")

	if err := fs.Parse(argv); err != nil {
		return args, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "stream" {
			args.streamSet = true
		}
	})
	args.prompt = strings.TrimSpace(strings.Join(fs.Args(), " "))
	return args, nil
}

// overrides returns the flags that were set explicitly.
func (a cliArgs) overrides() config.Overrides {
	o := config.Overrides{
		Provider:      a.provider,
		Model:         a.model,
		BaseURL:       a.baseURL,
		MaxIterations: a.maxIterations,
	}
	if a.streamSet {
		v := a.stream
		o.Stream = &v
	}
	if a.verbose {
		o.LogLevel = "debug"
	}
	return o
}
