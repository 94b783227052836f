// Package main implements pmctl, the admin CLI for the project management API.
//
// pmctl works directly against the configured database and media storage,
// so it reads the same environment and config file as pmapi.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/ahmed20kamel/project-management-api/internal/app"
	"github.com/ahmed20kamel/project-management-api/internal/config"
	"github.com/ahmed20kamel/project-management-api/internal/logging"
	"github.com/ahmed20kamel/project-management-api/internal/rbac"
	"github.com/ahmed20kamel/project-management-api/pkg/auth"
)

var (
	configPath string
	verbose    bool
	noColor    bool

	version = "dev"
)

// systemActor is the principal CLI operations run as: a platform superuser
// outside any company.
var systemActor = auth.Principal{Role: rbac.RoleSuperAdmin, Superuser: true}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	dim    = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pmctl",
	Short: "Admin CLI for the project management API",
	Long: `pmctl runs maintenance tasks against the project management database
and media storage: provisioning project folders, inspecting derived paths,
migrating the schema and recalculating project statuses.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file under ~/.config/pmapi or /etc/pmapi")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at info level")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Load()
	}
	return config.LoadWithFile(configPath)
}

// newLogger writes console logs to stderr so command output stays clean.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	obs := cfg.Observability
	obs.EnableTelemetry = false
	obs.LogFormat = "console"
	if !verbose {
		obs.LogLevel = "warn"
	}
	logCfg, err := logging.FromObservability(obs)
	if err != nil {
		return nil, err
	}
	logCfg.Output.Sink = zapcore.AddSync(os.Stderr)
	return logging.NewLogger(logCfg, nil)
}

// openApp wires the full application. Callers must Close it.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return app.New(ctx, cfg, app.Options{Version: version, Logger: logger})
}

// withApp runs fn against a wired application and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a)
}
