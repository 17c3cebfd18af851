package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/tally/internal/score"
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute teacher scores",
	}

	cmd.AddCommand(newScoreShowCmd())
	cmd.AddCommand(newScoreListCmd())
	cmd.AddCommand(newScoreRiskCmd())
	return cmd
}

func newScoreShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <cycle> <teacher>",
		Short: "Show one teacher's score breakdown",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			b, err := score.Collect(gormDB, args[0], args[1])
			if err != nil {
				return err
			}
			printBreakdown(cmd.OutOrStdout(), b)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	return cmd
}

func printBreakdown(out io.Writer, b *score.Breakdown) {
	fmt.Fprintf(out, "Teacher:   %s (%s)\n", b.Name, b.TeacherID)
	fmt.Fprintf(out, "Category:  %s\n", b.Category)
	fmt.Fprintf(out, "Student:   %s\n", formatScore(b.Student))
	fmt.Fprintf(out, "Manager:   %s\n", formatScore(b.Manager))
	fmt.Fprintf(out, "Self:      %s\n", formatScore(b.Self))
	fmt.Fprintf(out, "BIQ:       %s\n", formatScore(b.Biq))
	fmt.Fprintf(out, "Exam:      %s\n", formatScore(b.Exam))
	fmt.Fprintf(out, "Portfolio: %s\n", formatScore(b.Portfolio))
	if b.BonusRaw > b.Bonus {
		fmt.Fprintf(out, "Bonus:     %.2f (capped from %.2f)\n", b.Bonus, b.BonusRaw)
	} else {
		fmt.Fprintf(out, "Bonus:     %.2f\n", b.Bonus)
	}
	fmt.Fprintf(out, "Total:     %.2f\n", b.Total)
	fmt.Fprintf(out, "Bucket:    %s\n", b.Bucket)
}

func newScoreListCmd() *cobra.Command {
	var (
		configPath string
		branch     string
	)

	cmd := &cobra.Command{
		Use:   "list <cycle>",
		Short: "Rank every teacher in a cycle by total score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			all, err := score.CollectAll(gormDB, args[0], branch)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(all) == 0 {
				fmt.Fprintln(out, "No teachers found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TEACHER\tNAME\tCATEGORY\tSTUDENT\tMANAGER\tBIQ\tEXAM\tPORTFOLIO\tBONUS\tTOTAL\tBUCKET")
			for _, b := range all {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t%.2f\t%s\n",
					b.TeacherID, truncate(b.Name, 30), b.Category,
					formatScore(b.Student), formatScore(b.Manager), formatScore(b.Biq),
					formatScore(b.Exam), formatScore(b.Portfolio), b.Bonus, b.Total, b.Bucket)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().StringVar(&branch, "branch", "", "only teachers belonging to this branch")
	return cmd
}

func newScoreRiskCmd() *cobra.Command {
	var (
		configPath string
		branch     string
	)

	cmd := &cobra.Command{
		Use:   "risk <cycle>",
		Short: "List teachers whose student survey average is below the cycle's threshold Y",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			r, err := score.Risk(gormDB, args[0], branch)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if r.Threshold <= 0 {
				fmt.Fprintf(out, "Cycle %s has no risk threshold (Y=0).\n", r.CycleID)
				return nil
			}
			if len(r.Teachers) == 0 {
				fmt.Fprintf(out, "No teachers below %.2f.\n", r.Threshold)
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TEACHER\tNAME\tSTUDENT AVG\tANSWERS")
			for _, e := range r.Teachers {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\n", e.TeacherID, truncate(e.Name, 30), e.StudentAvg, e.Answers)
			}
			w.Flush()
			fmt.Fprintf(out, "%d teacher(s) below %.2f; observe for %g month(s).\n", len(r.Teachers), r.Threshold, r.ObserveMonths)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().StringVar(&branch, "branch", "", "only teachers belonging to this branch")
	return cmd
}
