package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/rohzyy/govai/internal/authpw"
	"github.com/rohzyy/govai/internal/client"
	"github.com/rohzyy/govai/internal/gateway"
)

var errPasswordRequired = errors.New("a password is required (--password or --password-stdin)")

// passwordFlags registers the two ways a password can be supplied.
type passwordFlags struct {
	value     string
	fromStdin bool
}

func (p *passwordFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&p.value, "password", "", "password (visible in shell history)")
	fs.BoolVar(&p.fromStdin, "password-stdin", false, "read the password from the first line of stdin")
}

func (p *passwordFlags) resolve(in io.Reader) (string, error) {
	if p.fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		p.value = strings.TrimRight(line, "\r\n")
	}
	if p.value == "" {
		return "", errPasswordRequired
	}
	return p.value, nil
}

// whoami is what login commands print instead of the raw token payload.
type whoami struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func emitLogin(o *IO, result gateway.Result[gateway.AuthPayload]) error {
	if !result.Success {
		return emit(o, result)
	}
	u := result.Data.User
	return o.JSON(whoami{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role)})
}

func LoginCmd(c *client.Client, in io.Reader) *Command {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	var pw passwordFlags
	pw.register(fs)

	return &Command{
		Flags: fs,
		Usage: "login --email <email> [flags]",
		Short: "Sign in as a citizen or admin",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			password, err := pw.resolve(in)
			if err != nil {
				return err
			}
			return emitLogin(o, gateway.Login(ctx, c.Gateway(), gateway.LoginRequest{Email: *email, Password: password}))
		},
	}
}

func OfficerLoginCmd(c *client.Client, in io.Reader) *Command {
	fs := flag.NewFlagSet("officer-login", flag.ContinueOnError)
	employeeID := fs.String("employee-id", "", "officer employee id")
	var pw passwordFlags
	pw.register(fs)

	return &Command{
		Flags: fs,
		Usage: "officer-login --employee-id <id> [flags]",
		Short: "Sign in as a field officer",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			password, err := pw.resolve(in)
			if err != nil {
				return err
			}
			return emitLogin(o, gateway.OfficerLogin(ctx, c.Gateway(), gateway.OfficerLoginRequest{EmployeeID: *employeeID, Password: password}))
		},
	}
}

func RegisterCmd(c *client.Client, in io.Reader) *Command {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "account email")
	phone := fs.String("phone", "", "mobile number")
	var pw passwordFlags
	pw.register(fs)

	return &Command{
		Flags: fs,
		Usage: "register --name <name> --email <email> [flags]",
		Short: "Create a citizen account and sign in",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			password, err := pw.resolve(in)
			if err != nil {
				return err
			}
			return emitLogin(o, gateway.Register(ctx, c.Gateway(), gateway.RegisterRequest{
				Name:     *name,
				Email:    *email,
				Phone:    *phone,
				Password: password,
			}))
		},
	}
}

func LogoutCmd(c *client.Client) *Command {
	return &Command{
		Flags: flag.NewFlagSet("logout", flag.ContinueOnError),
		Usage: "logout",
		Short: "Revoke the session and forget the stored tokens",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			result := gateway.Logout(ctx, c.Gateway())
			if !result.Success {
				o.ErrPrintln("warning: server logout failed:", result.SafeMessage)
			}
			o.Println("signed out")
			return nil
		},
	}
}

func MeCmd(c *client.Client) *Command {
	return &Command{
		Flags: flag.NewFlagSet("me", flag.ContinueOnError),
		Usage: "me",
		Short: "Show the signed-in user",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return emit(o, c.Me(ctx))
		},
	}
}

func HashPasswordCmd(in io.Reader) *Command {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	var pw passwordFlags
	pw.register(fs)

	return &Command{
		Flags: fs,
		Usage: "hash-password [flags]",
		Short: "Print a bcrypt hash for seeding officer accounts",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			password, err := pw.resolve(in)
			if err != nil {
				return err
			}
			hash, err := authpw.HashPassword(password)
			if err != nil {
				return err
			}
			o.Println(hash)
			return nil
		},
	}
}
