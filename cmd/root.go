package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iscle/haven-go/cmd/cache"
	"github.com/iscle/haven-go/cmd/config"
	"github.com/iscle/haven-go/cmd/favorite"
	"github.com/iscle/haven-go/cmd/history"
	"github.com/iscle/haven-go/cmd/next"
	"github.com/iscle/haven-go/cmd/rotate"
	"github.com/iscle/haven-go/cmd/serve"
	"github.com/iscle/haven-go/internal/app"
	"github.com/iscle/haven-go/internal/buildinfo"
	"github.com/iscle/haven-go/internal/conf"
	"github.com/iscle/haven-go/internal/errors"
	"github.com/iscle/haven-go/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(build *buildinfo.Context, opts ...app.Option) *cobra.Command {
	env := &app.Env{Build: build, Options: opts}
	var configFile string
	var cleanup []func()

	rootCmd := &cobra.Command{
		Use:           "haven",
		Short:         "Haven wallpaper backend",
		Long:          "Fetches landscape photos, keeps a history of what was shown and serves both over HTTP.",
		Version:       build.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		next.Command(env),
		rotate.Command(env),
		history.Command(env),
		favorite.Command(env),
		cache.Command(env),
		serve.Command(env),
		config.Command(env),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		settings, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		env.Settings = settings

		closeLog, err := initialize(settings, build)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, closeLog...)
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
		cleanup = nil
	}

	return rootCmd
}

// initialize sets up logging and error telemetry. It returns the functions
// that flush and close them.
func initialize(settings *conf.Settings, build *buildinfo.Context) ([]func(), error) {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	cleanup := []func(){func() { _ = central.Close() }}

	if settings.Telemetry.Enabled {
		errors.SetPrivacyScrubber(logger.RedactSensitiveData)
		flush, err := errors.InitSentry(settings.Telemetry.DSN, build.GetVersion())
		if err != nil {
			central.Module("main").Warn("telemetry disabled", logger.Error(err))
			return cleanup, nil
		}
		cleanup = append(cleanup, flush)
	}

	return cleanup, nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/haven, /etc/haven)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.StringP("query", "q", "", "Search query used when a command does not name one")
	flags.String("database", "", "Path to the SQLite database")

	bindings := map[string]string{
		"debug":              "debug",
		"photos.query":       "query",
		"output.sqlite.path": "database",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}

	return nil
}
