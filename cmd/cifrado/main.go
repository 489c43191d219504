package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dyne/cifrado/internal/cipher"
	"github.com/dyne/cifrado/internal/config"
	"github.com/dyne/cifrado/internal/inspect"
	"github.com/dyne/cifrado/internal/log"
	"github.com/dyne/cifrado/internal/plan"
	"github.com/dyne/cifrado/internal/rewrite"
	"github.com/dyne/cifrado/internal/server"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	Verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootOpts := &globalOptions{}
	root := &cobra.Command{
		Use:           "cifrado",
		Short:         "Reversible shift cipher for Spanish text and digits",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&rootOpts.Verbose, "verbose", false, "enable debug logging")

	root.AddCommand(serveCmd(rootOpts))
	root.AddCommand(transformCmd(cipher.ModeEncode))
	root.AddCommand(transformCmd(cipher.ModeDecode))
	root.AddCommand(copyCmd(rootOpts))
	root.AddCommand(planCmd(rootOpts))
	root.AddCommand(inspectCmd(rootOpts))
	return root
}

func newLogger(cmd *cobra.Command, rootOpts *globalOptions) *log.Logger {
	level := log.LevelInfo
	if rootOpts.Verbose {
		level = log.LevelDebug
	}
	return log.New(level, cmd.ErrOrStderr())
}

func serveCmd(rootOpts *globalOptions) *cobra.Command {
	var cfgPath string
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and the web form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(cfgPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			level, err := log.ParseLevel(cfg.Log.Level)
			if err != nil {
				return err
			}
			if rootOpts.Verbose {
				level = log.LevelDebug
			}
			logger := log.New(level, cmd.ErrOrStderr())
			if cfg.Log.JSON {
				logger = log.NewJSON(level, cmd.ErrOrStderr())
			}
			defer logger.Sync()

			srv, err := server.New(cfg, logger)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "server configuration file (YAML)")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides the configuration")
	return cmd
}

// transformCmd builds the encode and decode commands. Arguments are joined
// by a single space; without arguments stdin is transformed verbatim.
func transformCmd(mode cipher.Mode) *cobra.Command {
	short := "Encode text with the shift cipher"
	if mode == cipher.ModeDecode {
		short = "Decode text produced by encode"
	}
	return &cobra.Command{
		Use:   mode.String() + " [text...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) > 0 {
				_, err := fmt.Fprintln(out, mode.Apply(strings.Join(args, " ")))
				return err
			}
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			_, err = io.WriteString(out, mode.Apply(string(data)))
			return err
		},
	}
}

func copyCmd(rootOpts *globalOptions) *cobra.Command {
	var inPath string
	var outPath string
	var cfgPath string
	var fk string
	var triggers string
	var jobs int
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy a SQLite database, ciphering the configured columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, rootOpts)
			defer logger.Sync()
			opts := rewrite.Options{
				InPath:   inPath,
				OutPath:  outPath,
				Config:   cfg,
				FKMode:   fk,
				Triggers: triggers,
				Jobs:     jobs,
				Logger:   logger,
			}
			return rewrite.Run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input SQLite file")
	cmd.Flags().StringVar(&outPath, "out", "", "output SQLite file")
	cmd.Flags().StringVar(&cfgPath, "config", "", "column configuration file")
	cmd.Flags().StringVar(&fk, "fk", "on", "foreign key enforcement (on|off)")
	cmd.Flags().StringVar(&triggers, "triggers", "on", "trigger creation (on|off)")
	cmd.Flags().IntVar(&jobs, "jobs", 4, "parallel transform workers per table")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func planCmd(rootOpts *globalOptions) *cobra.Command {
	var inPath string
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which transformer runs on each column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, rootOpts)
			defer logger.Sync()
			return plan.Run(cmd.Context(), inPath, cfg, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input SQLite file")
	cmd.Flags().StringVar(&cfgPath, "config", "", "column configuration file")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func inspectCmd(rootOpts *globalOptions) *cobra.Command {
	var inPath string
	var suggest bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List tables and their text columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if suggest {
				return inspect.Suggest(cmd.Context(), inPath, cmd.OutOrStdout())
			}
			logger := newLogger(cmd, rootOpts)
			defer logger.Sync()
			return inspect.Run(cmd.Context(), inPath, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input SQLite file")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "print a configuration that encodes every text column")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
