package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/varvet/trove-advisor/internal/app"
	"github.com/varvet/trove-advisor/internal/config"
	"github.com/varvet/trove-advisor/internal/domain/entities"
)

var (
	// Global flags
	configPath   string
	debug        bool
	documentsDir string

	// ask flags
	askUser string

	// docs flags
	docsJSON bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "trove-advisor",
	Short: "Mr Trove Advisor - Slack assistant for the Trove project",
	Long: `trove-advisor answers Slack direct messages, mentions and the /chat command
with a language model, using the PDFs in the documents directory as reference
material.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if debug {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Slack and answer messages",
	RunE:  runServe,
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List the reference documents the bot has loaded",
	RunE:  runDocs,
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message through the bot's pipeline and print the reply",
	Example: `  trove-advisor ask "When does phase 2 end?"
  trove-advisor ask --user U123 "And the budget?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&documentsDir, "documents-dir", "", "override the documents directory")

	askCmd.Flags().StringVar(&askUser, "user", "cli", "user id the conversation history is keyed by")
	docsCmd.Flags().BoolVar(&docsJSON, "json", false, "print JSON instead of a table")

	rootCmd.AddCommand(serveCmd, docsCmd, askCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if documentsDir != "" {
		cfg.Documents.Dir = documentsDir
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	return a.Serve(ctx)
}

func runDocs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.LLM.APIKey = "" // listing documents never calls the model

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	meta := a.Documents.Metadata()
	if docsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}

	fmt.Fprintf(out, "Directory: %s\n", a.Documents.Directory())
	fmt.Fprintf(out, "Documents: %d\n", len(meta))
	if len(meta) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFILE\tSIZE\tMODIFIED")
	for _, m := range meta {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, m.FileName, m.Size, m.LastModified.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	reply, err := a.Ask(cmd.Context(), askUser, strings.Join(args, " "))
	if err != nil {
		class := entities.ClassOf(err)
		return fmt.Errorf("%s [%s]: %w", class.UserMessage(), class, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
