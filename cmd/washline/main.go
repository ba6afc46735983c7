package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"washline/internal/config"
	"washline/internal/db"
	"washline/internal/domain"
	"washline/internal/engine"
	"washline/internal/listview"
	"washline/internal/migrate"
	"washline/internal/server"
	"washline/internal/shift"
)

var rootCmd = &cobra.Command{
	Use:   "washline",
	Short: "Washline dispatch CLI",
	Long: `Washline runs the operations desk for airport washroom cleaning crews.
- Washrooms: serviced locations, each with a cleanliness SLA (response deadlines).
- Tasks: cleaning work flowing unassigned -> assigned -> in_progress -> completed,
  with cancellation as the other exit. Overdue is derived from the SLA deadline.
- Crew: cleaners with shift windows, break tracking, and walked distance.
- Board: the live dispatch view with filters, sorting, and SLA countdowns.
- Breaks: crew ranked by how urgently the break policy says they need one.
- Fairness: workload skew analysis over the latest optimizer batch or raw tasks.
- Log: the audit trail of every change, view with 'washline log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("WASHLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "dispatcher", "actor identifier")
	rootCmd.PersistentFlags().Bool("force", false, "force operation")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
}

func registerCommands() {
	rootCmd.AddCommand(washroomCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(crewCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(breaksCmd())
	rootCmd.AddCommand(fairnessCmd())
	rootCmd.AddCommand(assignmentsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func washroomCmd() *cobra.Command {
	w := &cobra.Command{Use: "washroom", Short: "Manage washrooms"}
	w.AddCommand(washroomCreateCmd())
	w.AddCommand(washroomListCmd())
	return w
}

func washroomCreateCmd() *cobra.Command {
	var id, name, terminal string
	var headway, emergency int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a washroom",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := domain.Washroom{ID: id, Name: name, Terminal: terminal}
			if cmd.Flags().Changed("max-headway") || cmd.Flags().Changed("emergency-target") {
				w.SLA = &domain.SLAConfig{
					MaxHeadwayMinutes:              headway,
					EmergencyResponseTargetMinutes: emergency,
				}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CreateWashroom(ctx, w, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "washroom id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&terminal, "terminal", "", "terminal")
	cmd.Flags().IntVar(&headway, "max-headway", 45, "SLA max headway minutes override")
	cmd.Flags().IntVar(&emergency, "emergency-target", 10, "SLA emergency response target minutes override")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func washroomListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List washrooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListWashrooms(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Terminal", "SLA"})
				for _, w := range items {
					sla := "default"
					if w.SLA != nil {
						sla = fmt.Sprintf("%dm / %dm emergency", w.SLA.MaxHeadwayMinutes, w.SLA.EmergencyResponseTargetMinutes)
					}
					tw.AppendRow(table.Row{w.ID, w.Name, w.Terminal, sla})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage cleaning tasks",
		Long: `Tasks move unassigned -> assigned -> in_progress -> completed. Cancelling
needs a reason and works from any non-terminal state. The SLA deadline is set
once at creation from the washroom's SLA and never recomputed.`,
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskAssignCmd())
	task.AddCommand(taskReassignCmd())
	task.AddCommand(taskUnassignCmd())
	task.AddCommand(taskStartCmd())
	task.AddCommand(taskCompleteCmd())
	task.AddCommand(taskCancelCmd())
	task.AddCommand(taskPriorityCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var taskType, priority string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Type = domain.TaskType(taskType)
			opts.Priority = domain.Priority(priority)
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (optional, random UUID if omitted)")
	cmd.Flags().StringVar(&opts.WashroomID, "washroom", "", "washroom id")
	cmd.Flags().StringVar(&taskType, "type", "routine_cleaning", "task type (routine_cleaning, emergency_cleaning, inspection, consumable_refill)")
	cmd.Flags().StringVar(&priority, "priority", "normal", "priority (normal, high, emergency)")
	_ = cmd.MarkFlagRequired("washroom")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskAssignCmd() *cobra.Command {
	var crewID string
	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign task to crew",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AssignTask(ctx, args[0], crewID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&crewID, "crew", "", "crew id")
	_ = cmd.MarkFlagRequired("crew")
	return cmd
}

func taskReassignCmd() *cobra.Command {
	var crewID string
	cmd := &cobra.Command{
		Use:   "reassign <id>",
		Short: "Hand task to another crew member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.ReassignTask(ctx, args[0], crewID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&crewID, "crew", "", "crew id")
	_ = cmd.MarkFlagRequired("crew")
	return cmd
}

func taskUnassignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unassign <id>",
		Short: "Pull crew off task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UnassignTask(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start work on task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.StartTask(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CompleteTask(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskCancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel task (reason required)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CancelTask(ctx, args[0], reason, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	return cmd
}

func taskPriorityCmd() *cobra.Command {
	var priority string
	cmd := &cobra.Command{
		Use:   "priority <id>",
		Short: "Change task priority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.ChangeTaskPriority(ctx, args[0], domain.Priority(priority), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&priority, "priority", "", "priority (normal, high, emergency)")
	_ = cmd.MarkFlagRequired("priority")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTask(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func crewCmd() *cobra.Command {
	crew := &cobra.Command{
		Use:   "crew",
		Short: "Manage crew",
		Long: `Crew members carry a shift window and a status. Effective status is
derived from the clock: outside the window everyone reads off_shift except
unavailable, which is a dispatcher override that sticks.`,
	}
	crew.AddCommand(crewCreateCmd())
	crew.AddCommand(crewListCmd())
	crew.AddCommand(crewGetCmd())
	crew.AddCommand(crewStatusCmd())
	crew.AddCommand(crewShiftCmd())
	crew.AddCommand(crewBreakCmd())
	crew.AddCommand(crewDistanceCmd())
	return crew
}

func crewCreateCmd() *cobra.Command {
	var opts engine.CrewCreateOptions
	var shiftStart, shiftEnd string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Roster a crew member",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.ShiftStart, err = time.Parse(time.RFC3339, shiftStart); err != nil {
				return fmt.Errorf("invalid --shift-start: %w", err)
			}
			if opts.ShiftEnd, err = time.Parse(time.RFC3339, shiftEnd); err != nil {
				return fmt.Errorf("invalid --shift-end: %w", err)
			}
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCrew(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "crew id (optional)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "crew member name")
	cmd.Flags().StringVar(&opts.Role, "role", "", "role")
	cmd.Flags().StringVar(&shiftStart, "shift-start", "", "shift start (RFC3339)")
	cmd.Flags().StringVar(&shiftEnd, "shift-end", "", "shift end (RFC3339)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("shift-start")
	_ = cmd.MarkFlagRequired("shift-end")
	return cmd
}

func crewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List crew with effective status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListCrew(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				now := e.Now()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Shift", "Last Break", "Walked"})
				for _, c := range items {
					lastBreak := "never"
					if c.LastBreakEnd != nil {
						lastBreak = c.LastBreakEnd.UTC().Format("15:04")
					}
					tw.AppendRow(table.Row{
						c.ID, c.Name, effectiveStatusLabel(c, now),
						fmt.Sprintf("%s-%s", c.Shift.Start.UTC().Format("15:04"), c.Shift.End.UTC().Format("15:04")),
						lastBreak,
						fmt.Sprintf("%.0fm", c.WalkingDistanceMeters),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func crewGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get crew member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Repo.GetCrew(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func crewStatusCmd() *cobra.Command {
	var status, reason string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Change crew status",
		Long:  "Setting off_shift or unavailable while the crew member holds open tasks is rejected; pass --force to unassign those tasks first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.SetCrewStatus(ctx, args[0], domain.CrewStatus(status), reason, viper.GetString("actor-id"), viper.GetBool("force"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (off_shift, on_shift, on_break, available, busy, unavailable)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason (required for unavailable)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func crewShiftCmd() *cobra.Command {
	var shiftStart, shiftEnd string
	cmd := &cobra.Command{
		Use:   "shift <id>",
		Short: "Update crew shift window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse(time.RFC3339, shiftStart)
			if err != nil {
				return fmt.Errorf("invalid --shift-start: %w", err)
			}
			end, err := time.Parse(time.RFC3339, shiftEnd)
			if err != nil {
				return fmt.Errorf("invalid --shift-end: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.UpdateCrewShift(ctx, args[0], domain.ShiftWindow{Start: start, End: end}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&shiftStart, "shift-start", "", "shift start (RFC3339)")
	cmd.Flags().StringVar(&shiftEnd, "shift-end", "", "shift end (RFC3339)")
	_ = cmd.MarkFlagRequired("shift-start")
	_ = cmd.MarkFlagRequired("shift-end")
	return cmd
}

func crewBreakCmd() *cobra.Command {
	br := &cobra.Command{Use: "break", Short: "Start or finish breaks"}
	br.AddCommand(&cobra.Command{
		Use:   "start <id>",
		Short: "Start break",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.StartCrewBreak(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	})
	br.AddCommand(&cobra.Command{
		Use:   "finish <id>",
		Short: "Finish break",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.FinishCrewBreak(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	})
	return br
}

func crewDistanceCmd() *cobra.Command {
	var meters float64
	cmd := &cobra.Command{
		Use:   "distance <id>",
		Short: "Record walked distance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.RecordWalkingDistance(ctx, args[0], meters, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().Float64Var(&meters, "meters", 0, "meters walked")
	_ = cmd.MarkFlagRequired("meters")
	return cmd
}

func boardCmd() *cobra.Command {
	var types, washrooms, priorities, states, crewIDs, terminals []string
	var idQuery, sortField, dir string
	var all bool
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Live dispatch board",
		Long: `The board lists tasks inside the dispatch horizon (terminal tasks always
show). Filters AND together; values within one filter OR. Sorting is stable,
so ties keep their previous order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := listview.Filter{
				TypeTitles:  types,
				WashroomIDs: washrooms,
				CrewIDs:     crewIDs,
				Terminals:   terminals,
				IDQuery:     idQuery,
				SkipHorizon: all,
			}
			for _, p := range priorities {
				f.Priorities = append(f.Priorities, domain.Priority(p))
			}
			for _, s := range states {
				f.States = append(f.States, domain.TaskState(s))
			}
			order := listview.Order{Field: listview.SortField(sortField), Dir: listview.Direction(dir)}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rows, err := e.DispatchBoard(ctx, f, order)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Washroom", "Priority", "State", "Crew", "SLA"})
				for _, r := range rows {
					tw.AppendRow(table.Row{
						r.Task.ID, r.Task.Type.Title(), r.WashroomName,
						r.Task.Priority, r.Task.State, r.CrewName, r.Countdown,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&types, "type", nil, "task type display title filter (repeatable)")
	cmd.Flags().StringArrayVar(&washrooms, "washroom", nil, "washroom id filter (repeatable)")
	cmd.Flags().StringArrayVar(&priorities, "priority", nil, "priority filter (repeatable)")
	cmd.Flags().StringArrayVar(&states, "state", nil, "state filter (repeatable)")
	cmd.Flags().StringArrayVar(&crewIDs, "crew", nil, "crew id filter (repeatable)")
	cmd.Flags().StringArrayVar(&terminals, "terminal", nil, "terminal filter (repeatable)")
	cmd.Flags().StringVar(&idQuery, "q", "", "case-insensitive id substring")
	cmd.Flags().BoolVar(&all, "all", false, "ignore the dispatch time horizon")
	cmd.Flags().StringVar(&sortField, "sort", "sla", "sort field (sla, priority, washroom, crew, type, state, created, id)")
	cmd.Flags().StringVar(&dir, "dir", "asc", "sort direction (asc, desc)")
	return cmd
}

func breaksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breaks",
		Short: "Crew ranked by break urgency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				statuses, err := e.BreakBoard(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(statuses)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Crew", "Since Break", "Next Due", "Status"})
				for _, bs := range statuses {
					label := ""
					switch {
					case bs.Overdue:
						label = "OVERDUE"
					case bs.NeedsBreakSoon:
						label = "soon"
					}
					tw.AppendRow(table.Row{
						bs.Name,
						fmt.Sprintf("%dm", bs.MinutesSinceBreak),
						bs.NextBreakDue.UTC().Format("15:04"),
						label,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func fairnessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fairness",
		Short: "Workload fairness report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.FairnessReport(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Crew", "Tasks", "Emergency", "Walking"})
				for _, m := range report.Metrics {
					tw.AppendRow(table.Row{m.Name, m.TotalTasks, m.EmergencyTasks, fmt.Sprintf("%.0fm", m.WalkingDistanceMeters)})
				}
				tw.Render()
				if len(report.Issues) == 0 {
					fmt.Println("no fairness issues")
					return nil
				}
				fmt.Println("Issues:")
				for _, issue := range report.Issues {
					fmt.Printf("  - %s\n", issue)
				}
				return nil
			})
		},
	}
	return cmd
}

func assignmentsCmd() *cobra.Command {
	a := &cobra.Command{Use: "assignments", Short: "Optimizer assignment batches"}
	a.AddCommand(assignmentsImportCmd())
	return a
}

func assignmentsImportCmd() *cobra.Command {
	var filePath, batchID string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import optimizer output from JSON",
		Long:  "The file holds a JSON array of {task_id, crew_id, travel_time_minutes} rows. Re-importing the same batch id replaces it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			var assignments []domain.Assignment
			if err := json.Unmarshal(data, &assignments); err != nil {
				return fmt.Errorf("invalid assignments JSON: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, err := e.ImportAssignments(ctx, batchID, assignments, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"batch_id": id, "count": len(assignments)})
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to assignments JSON")
	cmd.Flags().StringVar(&batchID, "batch-id", "", "batch id (optional, random UUID if omitted)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is washline.yml in the workspace: SLA defaults, per-washroom SLA overrides, break policy, dispatch horizon, fairness thresholds, server settings.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Audit log",
		Long:  "Every mutation is recorded with before/after snapshots and the acting dispatcher.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.ListAuditEvents(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Actor", "Action", "Entity"})
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.TS.UTC().Format(time.RFC3339), ev.ActorID, ev.Action, fmt.Sprintf("%s/%s", ev.EntityKind, ev.EntityID)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			e := engine.New(conn, cfg)
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				CacheTTL: time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Washline API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func effectiveStatusLabel(c domain.Crew, now time.Time) string {
	return string(shift.EffectiveStatus(c, now))
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
