package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warp/leave-portal/leave"
	"golang.org/x/term"
)

func newSubmitCmd(app *App) *cobra.Command {
	var sicil, start, end, password string

	cmd := &cobra.Command{
		Use:   "submit --sicil N --start YYYY-MM-DD --end YYYY-MM-DD",
		Short: "Submit a leave request as an employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, endDate, err := parseDates(start, end)
			if err != nil {
				return err
			}

			passwordFromStdin, err := cmd.Flags().GetBool("password-stdin")
			if err != nil {
				return err
			}
			secret, err := resolvePassword(app, password, cmd.Flags().Changed("password"), passwordFromStdin)
			if err != nil {
				return err
			}

			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := app.context()
			defer cancel()

			user, err := svc.Login(ctx, sicil, secret)
			if err != nil {
				return err
			}
			res, err := svc.Submit(ctx, user.ID, startDate, endDate)
			if err != nil {
				var ae *leave.ArbitrationError
				if errors.As(err, &ae) {
					return fmt.Errorf("%s: %w", leave.ArbitrationMessage, err)
				}
				return err
			}
			return app.write(describeResult(res), resultPayload("submit", res))
		},
	}
	cmd.Flags().StringVar(&sicil, "sicil", "", "Registry number of the employee")
	cmd.Flags().StringVar(&start, "start", "", "First day of leave (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last day of leave (YYYY-MM-DD)")
	cmd.Flags().StringVar(&password, "password", "", "Roster password (non-interactive; avoid shell history leaks)")
	cmd.Flags().Bool("password-stdin", false, "Read the roster password from stdin")
	_ = cmd.MarkFlagRequired("sicil")
	return cmd
}

func newPlaceCmd(app *App) *cobra.Command {
	var userID, start, end string
	var seniority int

	cmd := &cobra.Command{
		Use:   "place --user ID --start YYYY-MM-DD --end YYYY-MM-DD",
		Short: "Place a request on behalf of a user (no balance or past-date checks)",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, endDate, err := parseDates(start, end)
			if err != nil {
				return err
			}

			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := app.context()
			defer cancel()

			owner, err := svc.User(ctx, userID)
			if err != nil {
				return err
			}
			req := leave.LeaveRequest{
				UserID:             owner.ID,
				UserName:           owner.Name,
				StartDate:          startDate,
				EndDate:            endDate,
				SeniorityAtRequest: owner.YearsOfService,
			}
			if cmd.Flags().Changed("seniority") {
				req.SeniorityAtRequest = seniority
			}

			res, err := svc.Place(ctx, req)
			if err != nil {
				return err
			}
			return app.write(describeResult(res), resultPayload("place", res))
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&start, "start", "", "First day of leave (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last day of leave (YYYY-MM-DD)")
	cmd.Flags().IntVar(&seniority, "seniority", 0, "Seniority snapshot (defaults to the user's years of service)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newApproveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "approve ID",
		Short: "Approve a pending request and book its days",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := app.context()
			defer cancel()

			req, err := svc.Approve(ctx, args[0])
			if err != nil {
				return err
			}
			human := fmt.Sprintf("Approved %s: %s %s..%s (%d days)", req.ID, req.UserName, req.StartDate, req.EndDate, req.Days())
			return app.write(human, map[string]any{"ok": true, "operation": "approve", "request": req})
		},
	}
}

func newRejectCmd(app *App) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject ID",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := app.context()
			defer cancel()

			req, err := svc.Reject(ctx, args[0], reason)
			if err != nil {
				return err
			}
			human := fmt.Sprintf("Rejected %s: %s %s..%s", req.ID, req.UserName, req.StartDate, req.EndDate)
			return app.write(human, map[string]any{"ok": true, "operation": "reject", "request": req})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection reason shown to the employee")
	return cmd
}

func newSeedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write the default roster if the datastore has no users",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := app.context()
			defer cancel()

			n, err := svc.Seed(ctx, leave.DefaultRoster(app.Cfg.Policy.Entitlement()))
			if err != nil {
				return err
			}
			human := fmt.Sprintf("Seeded %d users", n)
			if n == 0 {
				human = "Roster already present, nothing seeded"
			}
			return app.write(human, map[string]any{"ok": true, "operation": "seed", "seeded": n})
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDates(start, end string) (leave.Date, leave.Date, error) {
	s, err := leave.ParseDate(start)
	if err != nil {
		return leave.Date{}, leave.Date{}, fmt.Errorf("--start: %w", err)
	}
	e, err := leave.ParseDate(end)
	if err != nil {
		return leave.Date{}, leave.Date{}, fmt.Errorf("--end: %w", err)
	}
	return s, e, nil
}

func describeResult(res leave.SubmitResult) string {
	r := res.Request
	human := fmt.Sprintf("Created %s for %s: %s..%s (%d days, %s)", r.ID, r.UserName, r.StartDate, r.EndDate, r.Days(), r.Status)
	if res.Verdict.Evicted != nil {
		human += fmt.Sprintf("\nEvicted %s (%s, seniority %d)",
			res.Verdict.Evicted.ID, res.Verdict.Evicted.UserName, res.Verdict.Evicted.SeniorityAtRequest)
	}
	return human
}

func resultPayload(op string, res leave.SubmitResult) map[string]any {
	payload := map[string]any{
		"ok":        true,
		"operation": op,
		"request":   res.Request,
		"outcome":   res.Verdict.Outcome,
		"overlaps":  len(res.Verdict.Overlaps),
	}
	if res.Verdict.Evicted != nil {
		payload["evictedId"] = res.Verdict.Evicted.ID
	}
	return payload
}

func resolvePassword(app *App, provided string, providedSet bool, fromStdin bool) (string, error) {
	if providedSet && fromStdin {
		return "", fmt.Errorf("use only one of --password or --password-stdin")
	}

	if fromStdin {
		password, err := io.ReadAll(app.Stdin)
		if err != nil {
			return "", fmt.Errorf("read password from stdin: %w", err)
		}
		value := strings.TrimRight(string(password), "\r\n")
		if value == "" {
			return "", fmt.Errorf("password is required")
		}
		return value, nil
	}

	if providedSet {
		if provided == "" {
			return "", fmt.Errorf("password is required")
		}
		return provided, nil
	}

	stdinFile, ok := app.Stdin.(*os.File)
	if !ok || !term.IsTerminal(int(stdinFile.Fd())) {
		return "", fmt.Errorf("password is required; pass --password or --password-stdin when non-interactive")
	}
	fmt.Fprint(app.Stderr, "Password: ")
	bytes, err := term.ReadPassword(int(stdinFile.Fd()))
	fmt.Fprintln(app.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := string(bytes)
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	return password, nil
}
