package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahmed20kamel/project-management-api/internal/app"
)

var (
	provisionProjectID uint
	provisionAll       bool
	provisionDryRun    bool
)

func init() {
	provisionCmd.Flags().UintVar(&provisionProjectID, "project-id", 0, "project to provision")
	provisionCmd.Flags().BoolVar(&provisionAll, "all", false, "provision every project")
	provisionCmd.Flags().BoolVar(&provisionDryRun, "dry-run", false, "list the directories without creating them")

	rootCmd.AddCommand(provisionCmd)
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the standard folder tree for projects",
	Long: `Create the project root and every current phase folder (with their
standard subfolders) for one project or all of them. Existing folders are
left alone, so the command is safe to re-run.

Examples:
  # Provision one project
  pmctl provision --project-id 42

  # Show what would be created for every project
  pmctl provision --all --dry-run`,
	RunE: runProvision,
}

func runProvision(cmd *cobra.Command, args []string) error {
	if provisionAll == (provisionProjectID != 0) {
		return errors.New("exactly one of --project-id or --all is required")
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		ids := []uint{provisionProjectID}
		if provisionAll {
			var err error
			if ids, err = a.Projects.Repository().IDs(ctx); err != nil {
				return fmt.Errorf("listing projects: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, id := range ids {
			p, err := a.Projects.Get(ctx, systemActor, id)
			if err != nil {
				fmt.Fprintf(out, "%s project %d: %v\n", red("✗"), id, err)
				failed++
				continue
			}

			if provisionDryRun {
				fmt.Fprintf(out, "%s %s\n", bold(fmt.Sprintf("project %d", p.ID)), p.Name)
				for _, dir := range a.Provisioner.Plan(p.ID, p.Name) {
					fmt.Fprintf(out, "  %s\n", dim(dir))
				}
				continue
			}

			report, err := a.Projects.Provision(ctx, systemActor, id)
			if err != nil {
				fmt.Fprintf(out, "%s project %d: %v\n", red("✗"), id, err)
				failed++
				continue
			}
			mark := green("✓")
			if !report.OK() {
				mark = yellow("!")
				failed++
			}
			fmt.Fprintf(out, "%s %s: %d created, %d existing, %d failed\n",
				mark, report.ProjectRoot, len(report.Created), len(report.Existing), len(report.Failed))
			for _, f := range report.Failed {
				fmt.Fprintf(out, "    %s %s\n", red(f.Path), dim(f.Error))
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d projects could not be fully provisioned", failed, len(ids))
		}
		return nil
	})
}
