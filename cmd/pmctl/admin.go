package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahmed20kamel/project-management-api/internal/app"
)

var (
	superuserEmail    string
	superuserPassword string

	recalcProjectID uint
)

func init() {
	createSuperuserCmd.Flags().StringVar(&superuserEmail, "email", "", "superuser email")
	createSuperuserCmd.Flags().StringVar(&superuserPassword, "password", "", "superuser password (defaults to $PMCTL_SUPERUSER_PASSWORD)")
	_ = createSuperuserCmd.MarkFlagRequired("email")

	recalcCmd.Flags().UintVar(&recalcProjectID, "project-id", 0, "recalculate a single project")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createSuperuserCmd)
	rootCmd.AddCommand(recalcCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Migrate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema up to date (%s)\n", green("✓"), a.Config.Database.Driver)
			return nil
		})
	},
}

var createSuperuserCmd = &cobra.Command{
	Use:   "create-superuser",
	Short: "Create a platform superuser outside any company",
	Long: `Create a super_admin account that is not bound to a company. The
password is read from --password or $PMCTL_SUPERUSER_PASSWORD.

Examples:
  PMCTL_SUPERUSER_PASSWORD=... pmctl create-superuser --email ops@example.com`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := superuserPassword
		if password == "" {
			password = os.Getenv("PMCTL_SUPERUSER_PASSWORD")
		}
		if password == "" {
			return errors.New("a password is required")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			u, err := a.Users.CreateSuperuser(ctx, superuserEmail, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s created superuser %s (id %d)\n", green("✓"), u.Email, u.ID)
			return nil
		})
	},
}

var recalcCmd = &cobra.Command{
	Use:   "recalc-status",
	Short: "Recompute project statuses from payments and attachments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out := cmd.OutOrStdout()
			if recalcProjectID != 0 {
				status, changed, err := a.Payments.Recalculate(ctx, recalcProjectID)
				if err != nil {
					return err
				}
				mark := dim("=")
				if changed {
					mark = green("✓")
				}
				fmt.Fprintf(out, "%s project %d: %s\n", mark, recalcProjectID, status)
				return nil
			}
			n, err := a.Payments.RecalculateAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %d project statuses changed\n", green("✓"), n)
			return nil
		})
	},
}
