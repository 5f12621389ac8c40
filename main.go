package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	app "github.com/rocketscienceinc/tictactoe-ledger/internal"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/config"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
)

// main - is the entry point of the application.
func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "tictactoe-ledger",
		Short:         "Tic-tac-toe matches with escrowed stakes",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "path to the config file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				conf, err := initConfig(configPath)
				if err != nil {
					return err
				}

				return app.RunApp(cmd.Context(), initLogger(conf), conf)
			},
		},
		&cobra.Command{
			Use:   "init-registry",
			Short: "Create the ledger registry from the economics config",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				conf, err := initConfig(configPath)
				if err != nil {
					return err
				}

				registry, err := app.InitRegistry(cmd.Context(), initLogger(conf), conf)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "registry initialized, economic=%t\n", registry.IsEconomic())

				return nil
			},
		},
		&cobra.Command{
			Use:   "token <identity>",
			Short: "Issue a bearer token for an identity",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				conf, err := initConfig(configPath)
				if err != nil {
					return err
				}

				token, err := app.IssueToken(conf, entity.Identity(args[0]))
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), token)

				return nil
			},
		},
	)

	return rootCmd
}

// initialize config.
func initConfig(path string) (*config.Config, error) {
	conf, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return conf, nil
}

// initialize logger.
func initLogger(conf *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(conf.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}
