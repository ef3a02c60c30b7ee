// Package cli is the govai command line: a thin layer of pflag commands over
// the API client.
package cli

import (
	"context"
	"errors"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/rohzyy/govai/internal/client"
	"github.com/rohzyy/govai/internal/config"
	"github.com/rohzyy/govai/internal/gateway"
	"github.com/rohzyy/govai/internal/session"
)

// Commands returns every subcommand in help order.
func Commands(c *client.Client, in io.Reader) []*Command {
	return []*Command{
		RegisterCmd(c, in),
		LoginCmd(c, in),
		OfficerLoginCmd(c, in),
		LogoutCmd(c),
		MeCmd(c),
		SubmitCmd(c),
		AnalyzeCmd(c),
		ListCmd(c),
		ShowCmd(c),
		StatusCmd(c),
		TimelineCmd(c),
		WatchCmd(c),
		ResolveCmd(c),
		WithdrawCmd(c),
		AttachCmd(c),
		FieldEventCmd(c),
		AssignCmd(c),
		ReassignCmd(c),
		RejectCmd(c),
		AuditCmd(c),
		OfficersCmd(c),
		OfficerCreateCmd(c, in),
		OfficerUpdateCmd(c),
		AuditLogsCmd(c),
		SearchCmd(c),
		StatsCmd(c),
		AnalyticsCmd(c),
		HashPasswordCmd(in),
	}
}

// Connect builds the one session store of the process and the client on top
// of it. The persisted session is loaded before returning.
func Connect(ctx context.Context, cfg config.Client) *client.Client {
	store := session.New(session.NewFilePersistence(cfg.SessionFile), gateway.NewTokenRefresher(cfg.BaseURL, nil))
	store.Hydrate(ctx)

	gw := gateway.New(cfg.BaseURL, store,
		gateway.WithTimeout(cfg.Timeout),
		gateway.WithRateLimit(float64(cfg.RatePerSecond), cfg.RatePerSecond),
	)
	return client.New(gw)
}

// Run dispatches args (including the program name) and returns the exit code.
// Global flags before the command override cfg.
func Run(ctx context.Context, in io.Reader, out, errOut io.Writer, args []string, cfg config.Client) int {
	o := NewIO(out, errOut)

	global := flag.NewFlagSet("govai", flag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(io.Discard)
	global.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "API base URL")
	global.StringVar(&cfg.SessionFile, "session-file", cfg.SessionFile, "where the signed-in session is kept")
	global.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")

	var rest []string
	if len(args) > 1 {
		if err := global.Parse(args[1:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				printUsage(o, global, Commands(nil, in))
				return 0
			}
			o.ErrPrintln("error:", err)
			return 1
		}
		rest = global.Args()
	}
	if len(rest) == 0 || rest[0] == "help" {
		printUsage(o, global, Commands(nil, in))
		return 0
	}

	commands := Commands(Connect(ctx, cfg), in)
	for _, cmd := range commands {
		if cmd.Name() == rest[0] {
			return cmd.Run(ctx, o, rest[1:])
		}
	}
	o.ErrPrintln("error: unknown command:", rest[0])
	printUsage(NewIO(errOut, errOut), global, commands)
	return 1
}

func printUsage(o *IO, global *flag.FlagSet, commands []*Command) {
	o.Println("Usage: govai [global flags] <command> [flags]")
	o.Println()
	o.Println("Commands:")
	for _, cmd := range commands {
		o.Println(cmd.HelpLine())
	}
	o.Println()
	o.Println("Global flags:")
	o.Printf("%s", global.FlagUsages())
	o.Println()
	o.Println("Environment: GOVAI_BASE_URL, GOVAI_SESSION_FILE, GOVAI_CLIENT_TIMEOUT_MS, GOVAI_CLIENT_RATE_PER_SECOND")
}
