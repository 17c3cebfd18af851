package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/tally/internal/cycle"
	"github.com/zulandar/tally/internal/models"
	"github.com/zulandar/tally/internal/notify"
	"github.com/zulandar/tally/internal/taskgen"
)

func newCycleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Evaluation cycle commands",
	}

	cmd.AddCommand(newCycleCreateCmd())
	cmd.AddCommand(newCycleListCmd())
	cmd.AddCommand(newCycleShowCmd())
	cmd.AddCommand(newCycleStatusCmd())
	cmd.AddCommand(newCycleScopeCmd())
	cmd.AddCommand(newCycleQuestionsCmd())
	cmd.AddCommand(newCycleGenerateCmd())
	cmd.AddCommand(newCycleTasksCmd())
	return cmd
}

func newCycleCreateCmd() *cobra.Command {
	var (
		configPath string
		id         string
		year       int
		branches   []string
		start      string
		duration   int
		thresholdY float64
		thresholdP float64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a DRAFT evaluation cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cycle.CreateOpts{
				ID:           id,
				Year:         year,
				BranchIDs:    branches,
				DurationDays: duration,
				ThresholdY:   thresholdY,
				ThresholdP:   thresholdP,
			}
			if start != "" {
				t, err := time.Parse("2006-01-02", start)
				if err != nil {
					return fmt.Errorf("invalid --start %q (want YYYY-MM-DD): %w", start, err)
				}
				opts.StartAt = &t
			}
			return runCycleCreate(cmd, configPath, opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().StringVar(&id, "id", "", "cycle id (generated when empty)")
	cmd.Flags().IntVar(&year, "year", 0, "academic year the cycle evaluates (required)")
	cmd.Flags().StringSliceVar(&branches, "branch", nil, "branch ids in scope (repeatable; empty means all)")
	cmd.Flags().StringVar(&start, "start", "", "window start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&duration, "duration", 0, "window length in days")
	cmd.Flags().Float64Var(&thresholdY, "threshold-y", 0, "risk threshold: student survey average (0-100) below which a teacher is flagged")
	cmd.Flags().Float64Var(&thresholdP, "threshold-p", 0, "observation period in months for flagged teachers")
	cmd.MarkFlagRequired("year")
	return cmd
}

func runCycleCreate(cmd *cobra.Command, configPath string, opts cycle.CreateOpts) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	c, err := cycle.Create(gormDB, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created cycle %s (year %d, %s)\n", c.ID, c.Year, c.Status)
	return nil
}

func newCycleListCmd() *cobra.Command {
	var (
		configPath string
		status     string
		year       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List evaluation cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycleList(cmd, configPath, cycle.ListFilters{
				Status: models.CycleStatus(strings.ToUpper(status)),
				Year:   year,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (draft, open, closed)")
	cmd.Flags().IntVar(&year, "year", 0, "filter by year")
	return cmd
}

func runCycleList(cmd *cobra.Command, configPath string, filters cycle.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	cycles, err := cycle.List(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(cycles) == 0 {
		fmt.Fprintln(out, "No cycles found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tYEAR\tSTATUS\tSTART\tEND\tBRANCHES")
	for _, c := range cycles {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			c.ID, c.Year, c.Status, formatDate(c.StartAt), formatDate(c.EndAt), formatScope(c.BranchIDs))
	}
	w.Flush()
	return nil
}

func newCycleShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a cycle and its task progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycleShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	return cmd
}

func runCycleShow(cmd *cobra.Command, configPath, id string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	c, err := cycle.Get(gormDB, id)
	if err != nil {
		return err
	}
	tasks, err := taskgen.ListTasks(gormDB, taskgen.TaskFilters{CycleID: id})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cycle:      %s\n", c.ID)
	fmt.Fprintf(out, "Year:       %d\n", c.Year)
	fmt.Fprintf(out, "Status:     %s\n", c.Status)
	fmt.Fprintf(out, "Branches:   %s\n", formatScope(c.BranchIDs))
	fmt.Fprintf(out, "Window:     %s to %s\n", formatDate(c.StartAt), formatDate(c.EndAt))
	fmt.Fprintf(out, "Risk:       below %g, observe %g month(s)\n", c.ThresholdY, c.ThresholdP)

	type progress struct{ open, done int }
	byFlow := make(map[models.Flow]*progress)
	for _, t := range tasks {
		p := byFlow[t.Flow()]
		if p == nil {
			p = &progress{}
			byFlow[t.Flow()] = p
		}
		if t.Status == models.TaskDone {
			p.done++
		} else {
			p.open++
		}
	}
	fmt.Fprintf(out, "\nTasks: %d\n", len(tasks))
	if len(tasks) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  FLOW\tOPEN\tDONE")
	for _, f := range []models.Flow{models.FlowStudentTeacher, models.FlowTeacherManagement, models.FlowManagementTeacher, models.FlowTeacherSelf} {
		if p := byFlow[f]; p != nil {
			fmt.Fprintf(w, "  %s\t%d\t%d\n", f, p.open, p.done)
		}
	}
	w.Flush()
	return nil
}

func newCycleStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status <id> <draft|open|closed>",
		Short: "Move a cycle to a new status",
		Long:  "Valid transitions: DRAFT to OPEN, OPEN to CLOSED, CLOSED to OPEN. Generated tasks are never touched.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycleStatus(cmd, configPath, args[0], models.CycleStatus(args[1]))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	return cmd
}

func runCycleStatus(cmd *cobra.Command, configPath, id string, to models.CycleStatus) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	c, err := cycle.UpdateStatus(gormDB, id, to, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cycle %s is now %s\n", c.ID, c.Status)
	return nil
}

func newCycleScopeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "scope <id> [branch...]",
		Short: "Replace a cycle's branch scope",
		Long:  "Sets the branches a cycle covers. With no branches the cycle covers every branch.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycleScope(cmd, configPath, args[0], args[1:])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	return cmd
}

func runCycleScope(cmd *cobra.Command, configPath, id string, branches []string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	c, err := cycle.SetBranchScope(gormDB, id, branches)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cycle %s scope: %s\n", c.ID, formatScope(c.BranchIDs))
	return nil
}

func newCycleQuestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Manage the questions each flow asks in a cycle",
		Long:  "A flow without a question set asks every question of that flow.",
	}

	cmd.AddCommand(newCycleQuestionsListCmd())
	cmd.AddCommand(newCycleQuestionsSetCmd())
	cmd.AddCommand(newCycleQuestionsCopyCmd())
	return cmd
}

func newCycleQuestionsListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <id>",
		Short: "Show a cycle's question sets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			sets, err := cycle.QuestionSets(gormDB, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sets) == 0 {
				fmt.Fprintln(out, "No question sets; every flow asks all of its questions.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FLOW\tQUESTIONS\tUPDATED")
			for _, s := range sets {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Flow, strings.Join(s.QuestionIDs, ","), s.UpdatedAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	return cmd
}

func newCycleQuestionsSetCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "set <id> <flow> [question...]",
		Short: "Pin the questions a flow asks in a cycle",
		Long:  "Replaces the flow's question set with the given questions, in order. With no questions the set is removed.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			set, err := cycle.SetQuestions(gormDB, args[0], models.Flow(args[1]), args[2:], time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(set.QuestionIDs) == 0 {
				fmt.Fprintf(out, "Cycle %s %s: question set removed\n", set.CycleID, set.Flow)
				return nil
			}
			fmt.Fprintf(out, "Cycle %s %s: %s\n", set.CycleID, set.Flow, strings.Join(set.QuestionIDs, ","))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	return cmd
}

func newCycleQuestionsCopyCmd() *cobra.Command {
	var (
		configPath string
		from       string
	)

	cmd := &cobra.Command{
		Use:   "copy <id>",
		Short: "Copy question sets from another cycle",
		Long:  "Copies every question set of --from, or of the latest cycle from an earlier year, into the cycle.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			source, sets, err := cycle.CopyQuestions(gormDB, args[0], from, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Copied %d question set(s) from %s to %s\n", len(sets), source, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().StringVar(&from, "from", "", "source cycle (default: latest cycle from an earlier year)")
	return cmd
}

func newCycleGenerateCmd() *cobra.Command {
	var (
		configPath   string
		includeSelf  bool
		requireScope bool
	)

	cmd := &cobra.Command{
		Use:   "generate <id>",
		Short: "Generate survey tasks for a cycle",
		Long: `Expands the cycle's roster into survey tasks. Running it again only
inserts tasks that do not exist yet.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycleGenerate(cmd, configPath, args[0], taskgen.Options{
				IncludeSelf:        includeSelf,
				RequireBranchScope: requireScope,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().BoolVar(&includeSelf, "self", false, "also generate teacher self-assessment tasks")
	cmd.Flags().BoolVar(&requireScope, "require-scope", false, "refuse cycles with an empty branch scope")
	return cmd
}

func runCycleGenerate(cmd *cobra.Command, configPath, id string, opts taskgen.Options) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()

	notifier, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		return err
	}

	res, err := taskgen.Generate(ctx, gormDB, id, opts)
	if err != nil {
		if nerr := notifier.Notify(ctx, notify.FailureEvent(id, err)); nerr != nil {
			log.Printf("cycle: notify failure: %v", nerr)
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Summary())

	if res.Created > 0 {
		if err := notifier.Notify(ctx, notify.GenerationEvent(res)); err != nil {
			log.Printf("cycle: notify: %v", err)
		}
	}
	return nil
}

func newCycleTasksCmd() *cobra.Command {
	var (
		configPath string
		filters    taskgen.TaskFilters
		status     string
		flow       string
	)

	cmd := &cobra.Command{
		Use:   "tasks <id>",
		Short: "List a cycle's survey tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters.CycleID = args[0]
			filters.Status = models.TaskStatus(strings.ToUpper(status))
			filters.Flow = models.Flow(flow)
			return runCycleTasks(cmd, configPath, filters)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().StringVar(&filters.RaterID, "rater", "", "filter by rater user id")
	cmd.Flags().StringVar(&filters.TargetID, "target", "", "filter by target id")
	cmd.Flags().StringVar(&filters.BranchID, "branch", "", "filter by branch id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (open, done)")
	cmd.Flags().StringVar(&flow, "flow", "", "filter by flow (student_teacher, teacher_management, management_teacher, teacher_self)")
	return cmd
}

func runCycleTasks(cmd *cobra.Command, configPath string, filters taskgen.TaskFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	tasks, err := taskgen.ListTasks(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFLOW\tRATER\tTARGET\tBRANCH\tGROUP\tSUBJECT\tSTATUS")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(t.ID, 24), t.Flow(), t.RaterID, truncate(t.TargetName, 30), t.BranchID,
			deref(t.GroupID), deref(t.SubjectID), t.Status)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d task(s)\n", len(tasks))
	return nil
}
