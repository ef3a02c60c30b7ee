package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/rohzyy/govai/internal/gateway"
)

// Command is one govai subcommand.
type Command struct {
	Flags *flag.FlagSet
	// Usage starts with the command name, e.g. "status <id>".
	Usage string
	Short string
	Long  string
	Exec  func(ctx context.Context, o *IO, args []string) error
}

func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-34s %s", c.Usage, c.Short)
}

func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: govai", c.Usage)
	o.Println()
	desc := c.Long
	if desc == "" {
		desc = c.Short
	}
	o.Println(desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")
		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// Run parses flags and executes the command, returning the exit code.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(io.Discard)
	if err := c.Flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)
			return 0
		}
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)
		return 1
	}
	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}
	return 0
}

// IO separates command output from diagnostics.
type IO struct {
	out    io.Writer
	errOut io.Writer
}

func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// JSON prints v indented on stdout.
func (o *IO) JSON(v any) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ResultError carries a failed gateway result out of a command.
type ResultError struct {
	Kind        gateway.ErrorKind
	SafeMessage string
	Status      int
}

func (e *ResultError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.SafeMessage, e.Kind, e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.SafeMessage, e.Kind)
}

// emit prints a successful result's data, or turns a failure into an error.
// A degraded success still prints, with a warning on stderr.
func emit[T any](o *IO, result gateway.Result[T]) error {
	if !result.Success {
		return &ResultError{Kind: result.Error, SafeMessage: result.SafeMessage, Status: result.Status}
	}
	if !result.Healthy {
		o.ErrPrintln("warning: the server answered in degraded mode")
	}
	return o.JSON(result.Data)
}

var (
	errIDRequired     = errors.New("grievance id is required")
	errReasonRequired = errors.New("--reason is required")
)

func requireID(args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", errIDRequired
	}
	return strings.TrimSpace(args[0]), nil
}
