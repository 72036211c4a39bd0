package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warp/leave-portal/leave"
)

func newDaysCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "days START END",
		Short:       "Print the inclusive day-span of two YYYY-MM-DD dates",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := leave.ParseDate(args[0])
			if err != nil {
				return err
			}
			end, err := leave.ParseDate(args[1])
			if err != nil {
				return err
			}
			if start.IsZero() || end.IsZero() {
				return leave.ErrMissingDates
			}
			days := leave.Days(start, end)
			payload := map[string]any{
				"ok":        true,
				"operation": "days",
				"startDate": start.String(),
				"endDate":   end.String(),
				"days":      days,
			}
			return app.write(fmt.Sprintf("%d", days), payload)
		},
	}
}

func newUsersCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List the roster with balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := app.context()
			defer cancel()

			users, err := svc.Users(ctx)
			if err != nil {
				return err
			}

			type row struct {
				ID             string     `json:"id"`
				SicilNo        string     `json:"sicilNo"`
				Name           string     `json:"name"`
				Role           leave.Role `json:"role"`
				YearsOfService int        `json:"yearsOfService"`
				Used           int        `json:"usedLeaveDays"`
				Remaining      int        `json:"remainingLeaveDays"`
			}
			rows := make([]row, len(users))
			var b strings.Builder
			for i, u := range users {
				rows[i] = row{u.ID, u.SicilNo, u.Name, u.Role, u.YearsOfService, u.UsedLeaveDays, leave.Remaining(u)}
				fmt.Fprintf(&b, "%-10s %-8s %-26s %-8s seniority=%-7d used=%-3d remaining=%d\n",
					u.ID, u.SicilNo, u.Name, u.Role, u.YearsOfService, u.UsedLeaveDays, leave.Remaining(u))
			}
			if len(users) == 0 {
				b.WriteString("No users; run `leavectl seed`\n")
			}
			return app.write(strings.TrimRight(b.String(), "\n"), map[string]any{"ok": true, "operation": "users", "users": rows})
		},
	}
}

func newRequestsCmd(app *App) *cobra.Command {
	var status string
	var userID string

	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List leave requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := leave.RequestFilter{UserID: userID, Status: leave.Status(strings.ToUpper(status))}
			if filter.Status != "" && !filter.Status.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}

			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := app.context()
			defer cancel()

			reqs, err := svc.ListRequests(ctx, filter)
			if err != nil {
				return err
			}

			var b strings.Builder
			for _, r := range reqs {
				fmt.Fprintf(&b, "%s  %-26s %s..%s (%2d days)  %-8s", r.ID, r.UserName, r.StartDate, r.EndDate, r.Days(), r.Status)
				if r.RejectionReason != "" {
					fmt.Fprintf(&b, "  %s", r.RejectionReason)
				}
				b.WriteString("\n")
			}
			if len(reqs) == 0 {
				b.WriteString("No requests\n")
			}
			return app.write(strings.TrimRight(b.String(), "\n"), map[string]any{"ok": true, "operation": "requests", "requests": reqs})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, APPROVED, REJECTED)")
	cmd.Flags().StringVar(&userID, "user", "", "Filter by user id")
	return cmd
}

func newStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show request counters and the approval rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			ctx, cancel := app.context()
			defer cancel()

			s, err := svc.Stats(ctx)
			if err != nil {
				return err
			}
			human := fmt.Sprintf("total=%d pending=%d approved=%d rejected=%d approval_rate=%s",
				s.Total, s.Pending, s.Approved, s.Rejected, s.ApprovalRate.StringFixed(4))
			payload := map[string]any{
				"ok":           true,
				"operation":    "stats",
				"total":        s.Total,
				"pending":      s.Pending,
				"approved":     s.Approved,
				"rejected":     s.Rejected,
				"approvalRate": s.ApprovalRate.StringFixed(4),
			}
			return app.write(human, payload)
		},
	}
}
