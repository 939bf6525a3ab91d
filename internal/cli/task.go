package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
	"github.com/spf13/cobra"
)

func newTaskCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(newTaskAddCmd(ro))
	cmd.AddCommand(newTaskListCmd(ro))
	cmd.AddCommand(newTaskUpdateCmd(ro))
	cmd.AddCommand(newTaskDueCmd(ro))
	cmd.AddCommand(newDeleteCmd(ro, "task", entityWriter.DeleteTask))
	return cmd
}

func newTaskAddCmd(ro *rootOptions) *cobra.Command {
	var name, project, client, staffID, deadline, status, overview, notes string
	var rate int
	var techs []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || deadline == "" {
				return errors.New("--name and --deadline are required")
			}
			return withWriter(cmd, ro, func(st *state.Store, w entityWriter) error {
				due, err := parseDay("deadline", deadline, st.Location())
				if err != nil {
					return err
				}
				t, err := w.AddTask(cmd.Context(), models.Task{
					TaskName:       name,
					ProjectName:    project,
					ClientName:     client,
					StaffID:        staffID,
					Deadline:       due,
					CompletionRate: rate,
					Status:         models.TaskStatus(status),
					Overview:       overview,
					Notes:          notes,
					Technologies:   techs,
				})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added task %q (%s)\n", t.TaskName, t.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Task name")
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	cmd.Flags().StringVar(&client, "client", "", "Client name")
	cmd.Flags().StringVar(&staffID, "staff", "", "Owning staff id")
	cmd.Flags().StringVar(&deadline, "deadline", "", "Deadline (YYYY-MM-DD)")
	cmd.Flags().IntVar(&rate, "rate", 0, "Completion rate (0-100)")
	cmd.Flags().StringVar(&status, "status", "", "Status: not_started, in_progress, completed, delayed")
	cmd.Flags().StringVar(&overview, "overview", "", "Overview")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes")
	cmd.Flags().StringSliceVar(&techs, "tech", nil, "Technology tags")
	return cmd
}

func newTaskListCmd(ro *rootOptions) *cobra.Command {
	var staffID, client, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks (by deadline)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := models.TaskStatus(status)
			if s != "" && !s.Valid() {
				return fmt.Errorf("--status: unknown task status %q", status)
			}
			return withState(cmd, ro, func(st *state.Store) error {
				tasks := st.ListTasks(state.TaskFilter{StaffID: staffID, ClientName: client, Status: s})
				if len(tasks) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
					return nil
				}
				now := time.Now()
				for _, t := range tasks {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatTask(t, now, st.Location()))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&staffID, "staff", "", "Filter by staff id")
	cmd.Flags().StringVar(&client, "client", "", "Filter by client name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	return cmd
}

func newTaskUpdateCmd(ro *rootOptions) *cobra.Command {
	var name, project, client, staffID, deadline, status, overview, achievements, results, notes string
	var rate int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWriter(cmd, ro, func(st *state.Store, w entityWriter) error {
				var p models.TaskPatch
				flags := cmd.Flags()
				strs := []struct {
					flag string
					dst  **string
					val  *string
				}{
					{"name", &p.TaskName, &name},
					{"project", &p.ProjectName, &project},
					{"client", &p.ClientName, &client},
					{"staff", &p.StaffID, &staffID},
					{"overview", &p.Overview, &overview},
					{"achievements", &p.Achievements, &achievements},
					{"results", &p.Results, &results},
					{"notes", &p.Notes, &notes},
				}
				for _, f := range strs {
					if flags.Changed(f.flag) {
						*f.dst = f.val
					}
				}
				if flags.Changed("rate") {
					p.CompletionRate = &rate
				}
				if flags.Changed("status") {
					s := models.TaskStatus(status)
					p.Status = &s
				}
				if deadline != "" {
					due, err := parseDay("deadline", deadline, st.Location())
					if err != nil {
						return err
					}
					p.Deadline = &due
				}
				t, err := w.UpdateTask(cmd.Context(), args[0], p)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatTask(t, time.Now(), st.Location()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Task name")
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	cmd.Flags().StringVar(&client, "client", "", "Client name")
	cmd.Flags().StringVar(&staffID, "staff", "", "Owning staff id")
	cmd.Flags().StringVar(&deadline, "deadline", "", "Deadline (YYYY-MM-DD)")
	cmd.Flags().IntVar(&rate, "rate", 0, "Completion rate (0-100)")
	cmd.Flags().StringVar(&status, "status", "", "Status: not_started, in_progress, completed, delayed")
	cmd.Flags().StringVar(&overview, "overview", "", "Overview")
	cmd.Flags().StringVar(&achievements, "achievements", "", "Achievements")
	cmd.Flags().StringVar(&results, "results", "", "Results")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes")
	return cmd
}

func newTaskDueCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "due",
		Short: fmt.Sprintf("Show tasks due in %d days and overdue tasks", models.DueSoonDays),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, ro, func(st *state.Store) error {
				out := cmd.OutOrStdout()
				now := time.Now()
				due, overdue := st.DueSoon(), st.Overdue()
				_, _ = fmt.Fprintf(out, "Due in %d days: %d\n", models.DueSoonDays, len(due))
				for _, t := range due {
					_, _ = fmt.Fprintln(out, formatTask(t, now, st.Location()))
				}
				_, _ = fmt.Fprintf(out, "Overdue: %d\n", len(overdue))
				for _, t := range overdue {
					_, _ = fmt.Fprintln(out, formatTask(t, now, st.Location()))
				}
				return nil
			})
		},
	}
}
