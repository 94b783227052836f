package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahmed20kamel/project-management-api/internal/app"
	"github.com/ahmed20kamel/project-management-api/internal/layout"
)

var (
	deriveProjectID   uint
	deriveProjectName string
	derivePhase       string
	deriveSubfolder   string

	legacyProjectID uint
	legacyCheck     bool
)

func init() {
	deriveCmd.Flags().UintVar(&deriveProjectID, "project-id", 0, "project id")
	deriveCmd.Flags().StringVar(&deriveProjectName, "project-name", "", "project display name")
	deriveCmd.Flags().StringVar(&derivePhase, "phase", "", "phase key, e.g. contracts")
	deriveCmd.Flags().StringVar(&deriveSubfolder, "subfolder", "", "optional subfolder inside the phase directory")
	_ = deriveCmd.MarkFlagRequired("project-id")
	_ = deriveCmd.MarkFlagRequired("phase")

	legacyCmd.Flags().UintVar(&legacyProjectID, "project-id", 0, "project id")
	legacyCmd.Flags().BoolVar(&legacyCheck, "check", false, "report which candidates exist in storage")
	_ = legacyCmd.MarkFlagRequired("project-id")

	rootCmd.AddCommand(deriveCmd)
	rootCmd.AddCommand(legacyCmd)
	rootCmd.AddCommand(phasesCmd)
}

var deriveCmd = &cobra.Command{
	Use:   "derive <filename>",
	Short: "Print the storage path a file would be saved under",
	Long: `Print the media-relative path the API would derive for a file,
using the configured phase table and length budgets. Nothing is written.

Examples:
  pmctl derive --project-id 42 --project-name "Tower A" --phase contracts main.pdf
  pmctl derive --project-id 42 --phase drawings --subfolder "Rev 02" plan.dwg`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		phases, deriver, err := app.NewLayout(cfg.Layout, zap.NewNop())
		if err != nil {
			return err
		}
		if _, ok := phases.Lookup(derivePhase); !ok {
			return fmt.Errorf("%w: %q (known: %s)", layout.ErrUnknownPhase, derivePhase, strings.Join(phases.Keys(), ", "))
		}
		p := deriver.Derive(deriveProjectID, deriveProjectName, derivePhase, args[0], deriveSubfolder)
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

var legacyCmd = &cobra.Command{
	Use:   "legacy <phase> <filename>",
	Short: "List the legacy locations a file may occupy",
	Long: `List every pre-restructure location a file of the given phase may have
been stored under, primary template first. With --check each candidate is
looked up in the configured storage backend.

Examples:
  pmctl legacy --project-id 42 contracts main.pdf
  pmctl legacy --project-id 42 --check payments receipt.pdf`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		candidates := layout.NewLegacyResolver().Candidates(args[0], legacyProjectID, args[1])
		if !legacyCheck {
			for _, c := range candidates {
				fmt.Fprintln(out, c)
			}
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		backend, err := app.NewBackend(cmd.Context(), cfg.Storage, zap.NewNop())
		if err != nil {
			return err
		}
		for _, c := range candidates {
			ok, err := backend.Exists(cmd.Context(), c)
			switch {
			case err != nil:
				fmt.Fprintf(out, "%s %s %s\n", red("?"), c, dim(err.Error()))
			case ok:
				fmt.Fprintf(out, "%s %s\n", green("✓"), c)
			default:
				fmt.Fprintf(out, "%s %s\n", dim("-"), dim(c))
			}
		}
		return nil
	},
}

var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "List phase keys and their directory names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		phases, _, err := app.NewLayout(cfg.Layout, zap.NewNop())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range phases.All() {
			line := fmt.Sprintf("%-24s %s", p.Key, p.Dir)
			if p.Legacy {
				line = dim(line + " (legacy)")
			}
			fmt.Fprintln(out, line)
			for _, sub := range p.Subfolders {
				fmt.Fprintf(out, "%-24s   %s\n", "", dim(sub))
			}
		}
		return nil
	},
}
