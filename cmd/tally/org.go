package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/tally/internal/org"
)

func newOrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Organization roster commands",
	}

	cmd.AddCommand(newOrgImportCmd())
	return cmd
}

func newOrgImportCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "import <roster.yaml>",
		Short: "Import branches, people, assignments and questions",
		Long:  "Validates a roster file and upserts every row by id. Re-importing the same file changes nothing.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrgImport(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	return cmd
}

func runOrgImport(cmd *cobra.Command, configPath, rosterPath string) error {
	roster, err := org.LoadRoster(rosterPath)
	if err != nil {
		return err
	}
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	sum, err := org.Import(gormDB, roster)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %s:\n", rosterPath)
	fmt.Fprintf(out, "  branches:    %d\n", sum.Branches)
	fmt.Fprintf(out, "  users:       %d\n", sum.Users)
	fmt.Fprintf(out, "  teachers:    %d\n", sum.Teachers)
	fmt.Fprintf(out, "  students:    %d\n", sum.Students)
	fmt.Fprintf(out, "  groups:      %d\n", sum.Groups)
	fmt.Fprintf(out, "  subjects:    %d\n", sum.Subjects)
	fmt.Fprintf(out, "  teaching:    %d\n", sum.Teaching)
	fmt.Fprintf(out, "  management:  %d\n", sum.Management)
	fmt.Fprintf(out, "  questions:   %d\n", sum.Questions)
	return nil
}
