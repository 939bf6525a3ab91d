package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
	"github.com/spf13/cobra"
)

func newReportCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate and manage monthly reports",
	}
	cmd.AddCommand(newReportGenerateCmd(ro))
	cmd.AddCommand(newReportListCmd(ro))
	cmd.AddCommand(newDeleteCmd(ro, "report", entityWriter.DeleteReport))
	return cmd
}

func newReportGenerateCmd(ro *rootOptions) *cobra.Command {
	var req models.ReportRequest
	var upcoming []string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Snapshot a staff member's tasks for one client and month into a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.ClientName == "" || req.StaffName == "" {
				return errors.New("--client and --staff are required")
			}
			now := time.Now()
			if req.Year == 0 {
				req.Year = now.Year()
			}
			if req.Month == 0 {
				req.Month = int(now.Month())
			}
			for _, u := range upcoming {
				name, details, _ := strings.Cut(u, ":")
				req.UpcomingTasks = append(req.UpcomingTasks, models.UpcomingTaskEntry{
					TaskName: strings.TrimSpace(name),
					Details:  strings.TrimSpace(details),
				})
			}
			return withWriter(cmd, ro, func(st *state.Store, w entityWriter) error {
				r, err := w.GenerateMonthlyReport(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintln(out, formatReport(r))
				for _, t := range r.Tasks {
					_, _ = fmt.Fprintf(out, "    %s %d%% %s\n", t.ProjectName, t.CompletionRate, t.Overview)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.ClientName, "client", "", "Client name")
	cmd.Flags().StringVar(&req.StaffName, "staff", "", "Staff member name")
	cmd.Flags().IntVar(&req.Year, "year", 0, "Year (default current)")
	cmd.Flags().IntVar(&req.Month, "month", 0, "Month 1-12 (default current)")
	cmd.Flags().StringVar(&req.Comments, "comments", "", "Comments")
	cmd.Flags().StringVar(&req.Issues, "issues", "", "Issues")
	cmd.Flags().StringVar(&req.NextMonthPlan, "plan", "", "Next month plan")
	cmd.Flags().StringArrayVar(&upcoming, "upcoming", nil, `Upcoming task as "name: details" (repeatable)`)
	return cmd
}

func newReportListCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reports, newest month first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, ro, func(st *state.Store) error {
				reports := st.Reports()
				if len(reports) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No reports.")
					return nil
				}
				for _, r := range reports {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatReport(r))
				}
				return nil
			})
		},
	}
}
