package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/tally/internal/results"
)

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Enter class, exam, portfolio and achievement results",
	}

	cmd.AddCommand(newResultsBiqCmd())
	cmd.AddCommand(newResultsExamCmd())
	cmd.AddCommand(newResultsPortfolioCmd())
	cmd.AddCommand(newResultsAchievementCmd())
	return cmd
}

func newResultsBiqCmd() *cobra.Command {
	var (
		configPath string
		entry      results.BiqEntry
		remove     bool
	)

	cmd := &cobra.Command{
		Use:   "biq <cycle>",
		Short: "Record a class result (0-100) for a group and subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry.CycleID = args[0]
			return runResultsBiq(cmd, configPath, entry, remove)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().StringVar(&entry.BranchID, "branch", "", "branch id")
	cmd.Flags().StringVar(&entry.GroupID, "group", "", "group id")
	cmd.Flags().StringVar(&entry.SubjectID, "subject", "", "subject id")
	cmd.Flags().Float64Var(&entry.Score, "score", 0, "class result between 0 and 100")
	cmd.Flags().BoolVar(&remove, "delete", false, "delete the stored result instead")
	return cmd
}

func runResultsBiq(cmd *cobra.Command, configPath string, entry results.BiqEntry, remove bool) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if remove {
		if err := results.DeleteBiq(gormDB, entry.CycleID, entry.BranchID, entry.GroupID, entry.SubjectID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted class result for %s/%s\n", entry.GroupID, entry.SubjectID)
		return nil
	}
	row, err := results.SaveBiq(gormDB, entry)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved class result %g for %s/%s\n", row.Score, row.GroupID, row.SubjectID)
	return nil
}

func newResultsExamCmd() *cobra.Command {
	var (
		configPath string
		branch     string
		score      float64
	)

	cmd := &cobra.Command{
		Use:   "exam <cycle> <teacher>",
		Short: "Record a teacher's exam score (0-30)",
		Long:  "Stores the exam score. Without --score the stored score is deleted.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := results.ExamEntry{CycleID: args[0], TeacherID: args[1], BranchID: branch}
			if cmd.Flags().Changed("score") {
				entry.Score = &score
			}
			return runResultsExam(cmd, configPath, entry)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().StringVar(&branch, "branch", "", "branch id")
	cmd.Flags().Float64Var(&score, "score", 0, "exam score between 0 and 30")
	return cmd
}

func runResultsExam(cmd *cobra.Command, configPath string, entry results.ExamEntry) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	row, err := results.SaveExam(gormDB, entry)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if row == nil {
		fmt.Fprintf(out, "Cleared exam score for %s\n", entry.TeacherID)
		return nil
	}
	fmt.Fprintf(out, "Saved exam score %g for %s\n", row.Score, row.TeacherID)
	return nil
}

func newResultsPortfolioCmd() *cobra.Command {
	var (
		configPath string
		branch     string
		note       string
		scores     [5]float64
	)
	names := [5]string{"education", "attendance", "training", "olympiad", "events"}

	cmd := &cobra.Command{
		Use:   "portfolio <cycle> <teacher>",
		Short: "Record a teacher's portfolio sub-scores",
		Long:  "Stores the sub-scores given as flags. Omitted sub-scores are stored as blank. Caps depend on the teacher's category.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := results.PortfolioEntry{CycleID: args[0], TeacherID: args[1], BranchID: branch, Note: note}
			fields := [5]**float64{&entry.Education, &entry.Attendance, &entry.Training, &entry.Olympiad, &entry.Events}
			for i, name := range names {
				if cmd.Flags().Changed(name) {
					v := scores[i]
					*fields[i] = &v
				}
			}
			return runResultsPortfolio(cmd, configPath, entry)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().StringVar(&branch, "branch", "", "branch id")
	cmd.Flags().StringVar(&note, "note", "", "free-text note")
	for i, name := range names {
		cmd.Flags().Float64Var(&scores[i], name, 0, name+" sub-score")
	}
	return cmd
}

func runResultsPortfolio(cmd *cobra.Command, configPath string, entry results.PortfolioEntry) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	row, err := results.SavePortfolio(gormDB, entry)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved portfolio for %s: education=%s attendance=%s training=%s olympiad=%s events=%s\n",
		row.TeacherID, formatScore(row.EducationScore), formatScore(row.AttendanceScore),
		formatScore(row.TrainingScore), formatScore(row.OlympiadScore), formatScore(row.EventsScore))
	return nil
}

func newResultsAchievementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "achievement",
		Short: "Bonus achievement commands",
	}

	cmd.AddCommand(newAchievementAddCmd())
	cmd.AddCommand(newAchievementListCmd())
	cmd.AddCommand(newAchievementDeleteCmd())
	return cmd
}

func newAchievementAddCmd() *cobra.Command {
	var (
		configPath string
		entry      results.AchievementEntry
	)

	cmd := &cobra.Command{
		Use:   "add <cycle> <teacher>",
		Short: "Add a bonus achievement (0-10 points)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry.CycleID, entry.TeacherID = args[0], args[1]
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			row, err := results.AddAchievement(gormDB, entry)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added achievement %s (%s, %g points)\n", row.ID, row.Type, row.Points)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().StringVar(&entry.BranchID, "branch", "", "branch id")
	cmd.Flags().StringVar(&entry.Type, "type", "", "achievement type (e.g. olympiad, event)")
	cmd.Flags().Float64Var(&entry.Points, "points", 0, "bonus points between 0 and 10")
	cmd.Flags().StringVar(&entry.Note, "note", "", "free-text note")
	return cmd
}

func newAchievementListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <cycle> <teacher>",
		Short: "List a teacher's achievements",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			rows, err := results.ListAchievements(gormDB, args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No achievements found.")
				return nil
			}
			var sum float64
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tPOINTS\tNOTE")
			for _, a := range rows {
				sum += a.Points
				fmt.Fprintf(w, "%s\t%s\t%g\t%s\n", a.ID, a.Type, a.Points, truncate(a.Note, 40))
			}
			w.Flush()
			fmt.Fprintf(out, "\nTotal: %g points\n", sum)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	return cmd
}

func newAchievementDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an achievement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := results.DeleteAchievement(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted achievement %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	return cmd
}
