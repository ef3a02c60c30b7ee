package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/rohzyy/govai/internal/client"
	"github.com/rohzyy/govai/internal/lifecycle"
)

func SubmitCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	var in client.SubmitInput
	fs.StringVar(&in.Title, "title", "", "short title")
	fs.StringVar(&in.Description, "description", "", "what happened")
	fs.StringVar(&in.Location, "location", "", "where it happened")
	fs.StringVar(&in.Category, "category", "", "category hint; the server may override it")
	fs.BoolVar(&in.IsWomenSafety, "women-safety", false, "flag as a women safety grievance")

	return &Command{
		Flags: fs,
		Usage: "submit --title <t> --description <d> --location <l> [flags]",
		Short: "File a new grievance",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return emit(o, c.Submit(ctx, in))
		},
	}
}

func AnalyzeCmd(c *client.Client) *Command {
	return &Command{
		Flags: flag.NewFlagSet("analyze", flag.ContinueOnError),
		Usage: "analyze <description...>",
		Short: "Preview category, department and priority for a description",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			description := strings.TrimSpace(strings.Join(args, " "))
			if description == "" {
				return fmt.Errorf("description is required")
			}
			return emit(o, c.Analyze(ctx, description))
		},
	}
}

func ListCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	scope := fs.String("scope", "all", "all, active, archived, assigned (officer) or admin")
	filter := fs.String("filter", "", "admin filter: unassigned or sla_breached")
	limit := fs.Int("limit", 0, "admin page size, at most 500")
	offset := fs.Int("offset", 0, "admin page start")

	return &Command{
		Flags: fs,
		Usage: "list [flags]",
		Short: "List grievances visible to the signed-in user",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			switch *scope {
			case "all":
				return emit(o, c.Complaints(ctx))
			case "active":
				return emit(o, c.ActiveComplaints(ctx))
			case "archived":
				return emit(o, c.ArchivedComplaints(ctx))
			case "assigned":
				return emit(o, c.AssignedComplaints(ctx))
			case "admin":
				return emit(o, c.AdminComplaints(ctx, *filter, *limit, *offset))
			default:
				return fmt.Errorf("unknown scope %q", *scope)
			}
		},
	}
}

func ShowCmd(c *client.Client) *Command {
	return &Command{
		Flags: flag.NewFlagSet("show", flag.ContinueOnError),
		Usage: "show <id>",
		Short: "Show one grievance",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := requireID(args)
			if err != nil {
				return err
			}
			return emit(o, c.Complaint(ctx, id))
		},
	}
}

func StatusCmd(c *client.Client) *Command {
	return &Command{
		Flags: flag.NewFlagSet("status", flag.ContinueOnError),
		Usage: "status <id>",
		Short: "Show the derived status, SLA and next actions",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := requireID(args)
			if err != nil {
				return err
			}
			return emit(o, c.Status(ctx, id))
		},
	}
}

func TimelineCmd(c *client.Client) *Command {
	return &Command{
		Flags: flag.NewFlagSet("timeline", flag.ContinueOnError),
		Usage: "timeline <id>",
		Short: "Show the timeline events of a grievance",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := requireID(args)
			if err != nil {
				return err
			}
			return emit(o, c.Timeline(ctx, id))
		},
	}
}

func WatchCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := fs.Duration("interval", client.DefaultWatchInterval, "poll interval")

	return &Command{
		Flags: fs,
		Usage: "watch <id> [flags]",
		Short: "Follow a timeline until the grievance closes",
		Long:  "Poll the timeline and print each new event. Stops on a terminal status or Ctrl-C.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := requireID(args)
			if err != nil {
				return err
			}
			if *interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			printed := 0
			for events := range c.WatchTimeline(ctx, id, *interval).Updates {
				for _, e := range events[printed:] {
					o.Printf("%s  %-11s  %s  %s\n", e.Timestamp.Local().Format(time.DateTime), e.Status, e.ActorRole, e.Remarks)
				}
				printed = len(events)
			}
			return nil
		},
	}
}

func ResolveCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	rating := fs.Int("rating", 0, "satisfaction rating 1-5; 0 leaves no feedback")
	comment := fs.String("comment", "", "feedback comment")

	return &Command{
		Flags: fs,
		Usage: "resolve <id> [flags]",
		Short: "Confirm a resolved grievance as verified",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := requireID(args)
			if err != nil {
				return err
			}
			if *rating < 0 || *rating > 5 {
				return fmt.Errorf("--rating must be between 1 and 5")
			}
			return emit(o, c.ConfirmResolved(ctx, id, *rating, *comment))
		},
	}
}

func WithdrawCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("withdraw", flag.ContinueOnError)
	reason := fs.String("reason", "", "why the grievance is withdrawn")

	return &Command{
		Flags: fs,
		Usage: "withdraw <id> --reason <text>",
		Short: "Withdraw your own grievance",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := requireID(args)
			if err != nil {
				return err
			}
			return emit(o, c.Withdraw(ctx, id, *reason))
		},
	}
}

func AttachCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("attach", flag.ContinueOnError)
	contentType := fs.String("content-type", "", "override the detected content type")

	return &Command{
		Flags: fs,
		Usage: "attach <id> <file> [flags]",
		Short: "Upload an image or PDF as evidence",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := requireID(args)
			if err != nil {
				return err
			}
			if len(args) < 2 {
				return fmt.Errorf("file path is required")
			}
			content, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read attachment: %w", err)
			}
			ct := *contentType
			if ct == "" {
				ct = http.DetectContentType(content)
			}
			return emit(o, c.UploadAttachment(ctx, id, client.UploadInput{
				FileName:    filepath.Base(args[1]),
				ContentType: ct,
				Content:     content,
			}))
		},
	}
}

func FieldEventCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("field-event", flag.ContinueOnError)
	status := fs.String("status", "", "VISITED, IN_PROGRESS or RESOLVED")
	remarks := fs.String("remarks", "", "what was done on site")

	return &Command{
		Flags: fs,
		Usage: "field-event <id> --status <status> [flags]",
		Short: "Record an officer field update",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := requireID(args)
			if err != nil {
				return err
			}
			next, ok := lifecycle.NormalizeStatus(*status)
			if !ok {
				return fmt.Errorf("unknown status %q", *status)
			}
			return emit(o, c.PostFieldEvent(ctx, id, next, *remarks))
		},
	}
}
