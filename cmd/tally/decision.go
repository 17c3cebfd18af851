package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/tally/internal/decision"
	"github.com/zulandar/tally/internal/models"
)

func newDecisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decision",
		Short: "Record and review evaluation decisions",
	}

	cmd.AddCommand(newDecisionSetCmd())
	cmd.AddCommand(newDecisionShowCmd())
	cmd.AddCommand(newDecisionListCmd())
	return cmd
}

func newDecisionSetCmd() *cobra.Command {
	var (
		configPath string
		opts       decision.SaveOpts
		status     string
	)

	cmd := &cobra.Command{
		Use:   "set <cycle> <teacher>",
		Short: "Record a decision and freeze the teacher's current score",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.CycleID, opts.TeacherID = args[0], args[1]
			opts.Status = models.DecisionStatus(strings.ToUpper(status))
			if opts.DecidedBy == "" {
				opts.DecidedBy = os.Getenv("USER")
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			d, err := decision.Save(gormDB, opts)
			if err != nil {
				return err
			}
			total := "-"
			if d.TotalScore != nil {
				total = fmt.Sprintf("%.2f", *d.TotalScore)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Decision for %s: %s (total %s, %s)\n", d.TeacherID, d.Status, total, d.Category)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().StringVar(&status, "status", "", "pending, approved or rejected (default pending)")
	cmd.Flags().StringVar(&opts.BranchID, "branch", "", "branch id (defaults to the teacher's branch)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "free-text note")
	cmd.Flags().StringVar(&opts.DecidedBy, "by", "", "who made the decision (defaults to $USER)")
	return cmd
}

func newDecisionShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <cycle> <teacher>",
		Short: "Show a decision with the breakdown frozen when it was made",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			d, err := decision.Get(gormDB, args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status:    %s\n", d.Status)
			fmt.Fprintf(out, "Decided:   %s by %s\n", d.DecidedAt.Format("2006-01-02 15:04"), d.DecidedBy)
			if d.Note != "" {
				fmt.Fprintf(out, "Note:      %s\n", d.Note)
			}
			b, err := decision.Snapshot(d)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			printBreakdown(out, b)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	return cmd
}

func newDecisionListCmd() *cobra.Command {
	var (
		configPath string
		branch     string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list <cycle>",
		Short: "List a cycle's decisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			rows, err := decision.List(gormDB, args[0], decision.ListFilters{
				BranchID: branch,
				Status:   models.DecisionStatus(strings.ToUpper(status)),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No decisions found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TEACHER\tBRANCH\tSTATUS\tTOTAL\tCATEGORY\tBY\tDECIDED")
			for _, d := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					d.TeacherID, d.BranchID, d.Status, formatScore(d.TotalScore), d.Category,
					d.DecidedBy, d.DecidedAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().StringVar(&branch, "branch", "", "filter by branch id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	return cmd
}
