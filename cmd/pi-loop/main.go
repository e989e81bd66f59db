// ABOUTME: CLI entry point for pi-loop: one prompt through a verified agent loop
// ABOUTME: Loads config, builds the provider and tools, runs the prompt through a Driver

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mauromedda/pi-loop-go/internal/agent"
	"github.com/mauromedda/pi-loop-go/internal/config"
	"github.com/mauromedda/pi-loop-go/internal/driver"
	pilog "github.com/mauromedda/pi-loop-go/internal/log"
	"github.com/mauromedda/pi-loop-go/internal/telemetry"
	"github.com/mauromedda/pi-loop-go/internal/tools"
	"github.com/mauromedda/pi-loop-go/internal/tools/builtin"
	"github.com/mauromedda/pi-loop-go/pkg/ai"

	// Providers register themselves with the ai registry.
	_ "github.com/mauromedda/pi-loop-go/pkg/ai/provider/anthropic"
	_ "github.com/mauromedda/pi-loop-go/pkg/ai/provider/openai"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	args, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if args.version {
		fmt.Printf("pi-loop %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, args, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run performs the initialization sequence and executes one prompt.
func run(ctx context.Context, args cliArgs, stdin io.Reader, stdout, stderr io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	settings, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	args.overrides().Apply(settings)

	if settings.LogLevel != "" {
		lvl, err := pilog.ParseLevel(settings.LogLevel)
		if err != nil {
			return err
		}
		pilog.SetLevel(lvl)
	}
	if args.verbose {
		fmt.Fprint(stderr, config.Explain(settings))
	}

	prompt := args.prompt
	if prompt == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return errors.New("no prompt given")
	}

	model, err := config.ResolveModel(settings)
	if err != nil {
		return fmt.Errorf("resolving model: %w", err)
	}

	auth, err := config.LoadAuth()
	if err != nil {
		return fmt.Errorf("loading auth: %w", err)
	}
	provider := ai.GetProvider(model.Api, config.ProviderOptions(settings, model, auth.APIKey(settings, model.Api)))
	if provider == nil {
		return fmt.Errorf("no provider registered for API %q", model.Api)
	}

	var history []ai.Message
	if args.resume != "" {
		if history, err = loadHistory(args.resume); err != nil {
			return err
		}
		pilog.Debug("resumed %d messages from %s", len(history), args.resume)
	}

	drv := driver.New(driverConfig(settings, model, provider), driver.WithHistory(history))
	defer drv.Close()

	p := newPrinter(stdout, stderr, settings.Streaming(), args.verbose)
	unsubscribe := drv.Subscribe(p.handle)
	defer unsubscribe()

	usage := telemetry.NewTracker(model.ID)
	defer drv.Subscribe(usage.Observe)()

	var res agent.Result
	if args.async {
		var id driver.TaskID
		if id, err = drv.RunAsync(prompt); err == nil {
			pilog.Debug("submitted task %s", id)
			res, err = drv.Await(ctx, id, driver.Forever)
		}
	} else {
		res, err = drv.Run(ctx, prompt)
	}
	if err != nil {
		p.endLine()
		return err
	}
	p.finish(res)
	if args.verbose {
		s := usage.Summary()
		fmt.Fprintf(stderr, "[%d model calls, estimated cost $%.4f]\n", s.Calls, s.CostUSD)
	}

	if args.save != "" {
		if err := saveHistory(args.save, drv.History()); err != nil {
			return err
		}
	}
	return nil
}

// driverConfig maps settings onto the driver and loop configuration.
func driverConfig(s *config.Settings, model *ai.Model, provider ai.ApiProvider) driver.Config {
	reg := tools.NewRegistry()
	builtin.Register(reg)

	var streamOpts *ai.StreamOptions
	if s.MaxTokens != 0 || s.Temperature != 0 {
		streamOpts = &ai.StreamOptions{MaxTokens: s.MaxTokens, Temperature: s.Temperature}
	}

	return driver.Config{
		Agent: agent.Config{
			Model:          model,
			Caller:         provider,
			Streamer:       provider,
			System:         s.SystemPrompt,
			Tools:          reg,
			StreamOptions:  streamOpts,
			MaxIterations:  s.MaxIterations,
			ToolTimeout:    s.ToolTimeout.Std(),
			MaxConcurrency: s.MaxConcurrency,
			MaxOutputBytes: s.MaxOutputBytes,
		},
		Stream:        s.Streaming(),
		TaskTTL:       s.TaskTTL.Std(),
		SweepInterval: s.SweepInterval.Std(),
	}
}
