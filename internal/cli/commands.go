package cli

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-portal-auth"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			in := bufio.NewReader(cmd.InOrStdin())
			if email == "" {
				if email, err = prompt(cmd, in, "Correo: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(cmd, in, "Contraseña: "); err != nil {
					return err
				}
			}

			user, err := a.client.Controller.Login(cmd.Context(), email, password)
			if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (id %s)\n", user.DisplayName(), user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (prompted if omitted)")
	cmd.Flags().StringVar(&password, "password", os.Getenv("PORTAL_PASSWORD"), "account password (prompted if omitted, or PORTAL_PASSWORD)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Controller.Logout(cmd.Context()); err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var payload auth.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if payload.Password == "" {
				var err error
				if payload.Password, err = prompt(cmd, bufio.NewReader(cmd.InOrStdin()), "Contraseña: "); err != nil {
					return err
				}
			}

			res, err := a.client.Controller.Register(cmd.Context(), payload)
			if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}

			msg := res.Message
			if msg == "" {
				msg = "Registered"
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&payload.FirstName, "nombre", "", "first name")
	flags.StringVar(&payload.LastName, "apellidos", "", "last name")
	flags.StringVar(&payload.Nick, "nick", "", "public nickname")
	flags.StringVar(&payload.Email, "email", "", "account email")
	flags.StringVar(&payload.Password, "password", "", "account password (prompted if omitted)")
	return cmd
}

type whoami struct {
	Status  auth.SessionStatus `json:"status"`
	IsAdmin bool               `json:"is_admin"`
	User    *auth.User         `json:"user,omitempty"`
	Nav     auth.Navigation    `json:"navigation"`
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := a.client.Controller
			ctrl.Wait()

			session := ctrl.Session()
			out := whoami{
				Status:  session.Status(),
				IsAdmin: ctrl.IsAdmin(),
				User:    session.User,
				Nav:     a.client.Guard.Navigation(session),
			}
			fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(out))
			return nil
		},
	}
}

func newDiagnoseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Compare the session in memory with the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			report := a.client.Controller.Diagnose(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(report))
			if !report.Healthy() {
				fmt.Fprintln(cmd.ErrOrStderr(), "session is not healthy")
			}
			return nil
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Send an authenticated GET to the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			ctx := a.client.Controller.ContextWithSession(cmd.Context())
			if decision := a.client.Guard.CheckContext(ctx, path); !decision.Allowed {
				return fail(cmd.ErrOrStderr(), fmt.Errorf("access to %s denied, go to %s", path, decision.RedirectTo))
			}
			if claims, ok := auth.GetClaims(ctx); ok {
				if id, ok := auth.ExtractSubjectID(claims); ok {
					a.logger.Debug("sending request", "path", path, "user_id", id)
				}
			}

			body, err := a.client.API.Raw(ctx, http.MethodGet, path, nil, "Request failed")
			if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}

			if raw {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}

			var data any
			if err := auth.Unwrap(body, &data); err != nil {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print the response body without unwrapping the envelope")
	return cmd
}

func prompt(cmd *cobra.Command, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), label)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
