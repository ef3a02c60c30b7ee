package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/rohzyy/govai/internal/audit"
	"github.com/rohzyy/govai/internal/client"
	"github.com/rohzyy/govai/internal/lifecycle"
)

func AssignCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("assign", flag.ContinueOnError)
	officer := fs.String("officer", "", "officer id")
	priority := fs.String("priority", "Medium", "Low, Medium, High or Critical")

	return &Command{
		Flags: fs,
		Usage: "assign <id> --officer <officer-id> [flags]",
		Short: "Assign an unassigned grievance to an officer",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := requireID(args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(*officer) == "" {
				return fmt.Errorf("--officer is required")
			}
			return emit(o, c.Assign(ctx, id, *officer, lifecycle.NormalizePriority(*priority)))
		},
	}
}

func ReassignCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("reassign", flag.ContinueOnError)
	from := fs.String("from", "", "officer currently holding the grievance")
	to := fs.String("to", "", "officer taking it over")
	reason := fs.String("reason", "", fmt.Sprintf("why, at least %d characters", audit.MinReasonLength))

	return &Command{
		Flags: fs,
		Usage: "reassign <id> --from <officer> --to <officer> --reason <text>",
		Short: "Move a grievance to another officer",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := requireID(args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(*reason) == "" {
				return errReasonRequired
			}
			return emit(o, c.Reassign(ctx, id, *from, *to, *reason))
		},
	}
}

func RejectCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("reject", flag.ContinueOnError)
	reason := fs.String("reason", "", "why the grievance is rejected")

	return &Command{
		Flags: fs,
		Usage: "reject <id> --reason <text>",
		Short: "Reject a grievance",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := requireID(args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(*reason) == "" {
				return errReasonRequired
			}
			return emit(o, c.Reject(ctx, id, *reason))
		},
	}
}

func AuditCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	var filter audit.Filter
	fs.StringVar(&filter.GrievanceID, "grievance", "", "only records for this grievance")
	fs.StringVar(&filter.ActorID, "actor", "", "only records by this admin")
	kind := fs.String("kind", "", "ASSIGN or REASSIGN")

	return &Command{
		Flags: fs,
		Usage: "audit [<id>] [flags]",
		Short: "Query the assignment ledger",
		Long:  "With an id, print that grievance's full assignment history. Without one, query the ledger by filter.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return emit(o, c.AssignmentHistory(ctx, args[0]))
			}
			switch k := audit.Kind(strings.ToUpper(strings.TrimSpace(*kind))); k {
			case "", audit.KindAssign, audit.KindReassign:
				filter.Kind = k
			default:
				return fmt.Errorf("unknown kind %q", *kind)
			}
			return emit(o, c.AuditAssignments(ctx, filter))
		},
	}
}

func OfficersCmd(c *client.Client) *Command {
	return &Command{
		Flags: flag.NewFlagSet("officers", flag.ContinueOnError),
		Usage: "officers",
		Short: "List officers",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return emit(o, c.Officers(ctx))
		},
	}
}

func OfficerCreateCmd(c *client.Client, in io.Reader) *Command {
	fs := flag.NewFlagSet("officer-create", flag.ContinueOnError)
	var input client.OfficerInput
	fs.StringVar(&input.Name, "name", "", "officer's full name")
	fs.StringVar(&input.Email, "email", "", "sign-in email")
	fs.StringVar(&input.Phone, "phone", "", "contact number")
	fs.StringVar(&input.EmployeeID, "employee-id", "", "employee id used at officer sign-in")
	fs.StringVar(&input.Designation, "designation", "", "job title")
	fs.StringVar(&input.DepartmentID, "department", "", "department id")
	fs.StringVar(&input.Ward, "ward", "", "ward served")
	fs.StringVar(&input.Zone, "zone", "", "zone served")
	fs.StringVar(&input.Status, "status", "", "Active, On Leave or Suspended (default Active)")
	var pw passwordFlags
	pw.register(fs)

	return &Command{
		Flags: fs,
		Usage: "officer-create --name <name> --email <email> --employee-id <id> [flags]",
		Short: "Create an officer account",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Email) == "" || strings.TrimSpace(input.EmployeeID) == "" {
				return errors.New("--name, --email and --employee-id are required")
			}
			password, err := pw.resolve(in)
			if err != nil {
				return err
			}
			input.Password = password
			return emit(o, c.CreateOfficer(ctx, input))
		},
	}
}

func OfficerUpdateCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("officer-update", flag.ContinueOnError)
	fields := map[string]*string{
		"name":        fs.String("name", "", "officer's full name"),
		"email":       fs.String("email", "", "sign-in email"),
		"phone":       fs.String("phone", "", "contact number"),
		"designation": fs.String("designation", "", "job title"),
		"ward":        fs.String("ward", "", "ward served"),
		"zone":        fs.String("zone", "", "zone served"),
		"status":      fs.String("status", "", "Active, On Leave or Suspended"),
	}

	return &Command{
		Flags: fs,
		Usage: "officer-update <officer-id> [flags]",
		Short: "Change an officer's details or status",
		Long:  "Only the flags given are sent. Moving an officer off Active stops new assignments to them.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			id, err := requireID(args)
			if err != nil {
				return err
			}
			// Unset flags stay nil so the server leaves those fields alone.
			set := func(name string) *string {
				if !fs.Changed(name) {
					return nil
				}
				return fields[name]
			}
			patch := client.OfficerPatch{
				Name:        set("name"),
				Email:       set("email"),
				Phone:       set("phone"),
				Designation: set("designation"),
				Ward:        set("ward"),
				Zone:        set("zone"),
				Status:      set("status"),
			}
			if patch == (client.OfficerPatch{}) {
				return errors.New("nothing to update")
			}
			return emit(o, c.UpdateOfficer(ctx, id, patch))
		},
	}
}

func AuditLogsCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("audit-logs", flag.ContinueOnError)
	action := fs.String("action", "", "action prefix, e.g. officer. or complaint.reject")
	actor := fs.String("actor", "", "only actions by this admin")
	limit := fs.Int("limit", 0, "maximum entries (server default 100)")

	return &Command{
		Flags: fs,
		Usage: "audit-logs [flags]",
		Short: "List recent admin actions",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if *limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			return emit(o, c.AuditLogs(ctx, strings.TrimSpace(*action), strings.TrimSpace(*actor), *limit))
		},
	}
}

func SearchCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum hits")

	return &Command{
		Flags: fs,
		Usage: "search <query...> [flags]",
		Short: "Full-text search across grievances",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			q := strings.TrimSpace(strings.Join(args, " "))
			if q == "" {
				return fmt.Errorf("query is required")
			}
			return emit(o, c.Search(ctx, q, *limit))
		},
	}
}

func StatsCmd(c *client.Client) *Command {
	return &Command{
		Flags: flag.NewFlagSet("stats", flag.ContinueOnError),
		Usage: "stats",
		Short: "Dashboard counters",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return emit(o, c.Stats(ctx))
		},
	}
}

func AnalyticsCmd(c *client.Client) *Command {
	fs := flag.NewFlagSet("analytics", flag.ContinueOnError)
	view := fs.String("view", "departments", "departments, trends or officers")
	months := fs.Int("months", 6, "months of history for trends")

	return &Command{
		Flags: fs,
		Usage: "analytics [flags]",
		Short: "Department, trend and officer performance reports",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			switch *view {
			case "departments":
				return emit(o, c.DepartmentAnalytics(ctx))
			case "trends":
				return emit(o, c.Trends(ctx, *months))
			case "officers":
				return emit(o, c.OfficerPerformance(ctx))
			default:
				return fmt.Errorf("unknown view %q", *view)
			}
		},
	}
}
