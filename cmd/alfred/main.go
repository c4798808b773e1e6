// Command alfred is a minimal CLI driving a pkg/alfred.Engine from a
// terminal, grounded on hector's cmd/hector CLI: a kong.CLI struct with
// chat and version subcommands, --config and --env-file flags, and a
// --log-level flag wired to the process logger before anything else runs.
//
// This binary wires the engine to pkg/testsupport's stub domain since
// the core module is domain-pluggable by design (spec's domain.Domain
// interface) and ships no concrete domain of its own — a real
// deployment registers its own domain.Domain and otherwise reuses this
// file's wiring unchanged.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/jv92admin/alfredagain-sub002/pkg/alfred"
	"github.com/jv92admin/alfredagain-sub002/pkg/config"
	"github.com/jv92admin/alfredagain-sub002/pkg/llmboundary"
	"github.com/jv92admin/alfredagain-sub002/pkg/logger"
	"github.com/jv92admin/alfredagain-sub002/pkg/observability"
	"github.com/jv92admin/alfredagain-sub002/pkg/testsupport"
	"github.com/jv92admin/alfredagain-sub002/pkg/types"
)

// CLI is the top-level command set.
type CLI struct {
	Chat    ChatCmd    `cmd:"" help:"Start an interactive conversation with the engine."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config   string `short:"c" help:"Path to config file." type:"path" default:"alfred.yaml"`
	EnvFile  string `help:"Path to a .env file to load before reading config." default:".env"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println("alfred dev")
	return nil
}

// ChatCmd runs a line-oriented REPL against a freshly built Engine.
type ChatCmd struct {
	UserID string `help:"User id the conversation runs as." default:"demo-user"`
}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config, cli.EnvFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp := observability.InitTracer(cfg.TracerConfig())
	defer func() {
		if shutdowner, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
			_ = shutdowner.Shutdown(context.Background())
		}
	}()

	adapter, err := cfg.OpenAdapter()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	domain := testsupport.NewStubDomain(adapter)

	provider := llmboundary.NewAnthropicProvider(cfg.APIKey())
	boundary := llmboundary.NewBoundary(provider)
	boundary.Tiers = cfg.ModelTiers()
	boundary.MaxRetries = cfg.LLM.MaxRetries

	engine, err := alfred.New(domain, boundary, cfg.LLM.CounterModel)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}

	conversationID := uuid.NewString()
	var conv types.ConversationContext

	fmt.Println("alfred chat — type a message, or \"exit\" to quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "exit" || line == "quit" {
			return nil
		}
		if line == "" {
			continue
		}

		out, err := engine.Run(context.Background(), alfred.RunInput{
			UserMessage:    line,
			UserID:         c.UserID,
			ConversationID: conversationID,
			Conversation:   conv,
			Mode:           types.ModeContext{SelectedMode: types.ModePlan},
		})
		if err != nil {
			slog.Error("turn failed", "err", err)
			continue
		}
		conv = out.Conversation
		fmt.Println(out.Response)
	}
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("alfred"),
		kong.Description("Alfred conversational orchestration engine"),
		kong.UsageOnError(),
	)

	logger.Configure(logger.ParseLevel(cli.LogLevel), os.Stderr)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
