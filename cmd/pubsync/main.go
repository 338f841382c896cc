package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/samvad-hq/pubsync/internal/app"
	"github.com/samvad-hq/pubsync/internal/config"
	"github.com/samvad-hq/pubsync/internal/logger"
)

func main() {
	err := newRootCmd(viper.New()).ExecuteContext(context.Background())
	os.Exit(app.ExitCode(err))
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pubsync",
		Short: "Refresh the publications section of a page from Google Scholar",
		Long: `pubsync fetches the publication list of a Google Scholar author and rewrites
the publications section of a static page with the most recent entries.

Without flags it reads the built-in author id and updates index.html in the
current directory.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.String("document", config.DefaultDocumentPath, "page to update")
	flags.Int("max", config.DefaultMaxPubs, "number of publications kept on the page")
	flags.Bool("dry-run", false, "render the update without writing the page")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	for key, flag := range map[string]string{
		"document_path":    "document",
		"max_publications": "max",
		"dry_run":          "dry-run",
		"log_level":        "log-level",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func run(ctx context.Context, v *viper.Viper, out, errOut io.Writer) error {
	cfg, err := config.LoadWith(v)
	if err != nil {
		fmt.Fprintf(errOut, "pubsync start failed: load config: %v\n", err)
		return err
	}

	log, err := logger.Init(cfg)
	if err != nil {
		fmt.Fprintf(errOut, "pubsync start failed: init logger: %v\n", err)
		return err
	}
	defer logger.Close()

	logger.InfoObj("pubsync starting", "config", map[string]any{
		"app_env":          cfg.Env,
		"scholar_user_id":  cfg.ScholarUserID,
		"lookup_backend":   cfg.LookupBackend,
		"document_path":    cfg.DocumentPath,
		"max_publications": cfg.MaxPublications,
		"dry_run":          cfg.DryRun,
		"storage_type":     cfg.StorageType,
		"publishers_file":  cfg.PublishersFile,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updater, err := app.Build(ctx, cfg, out, log)
	if err != nil {
		logger.ErrorObj("failed to initialize updater", "error", err.Error())
		fmt.Fprintf(errOut, "pubsync start failed: %v\n", err)
		return err
	}
	defer func() {
		if cerr := updater.Close(); cerr != nil {
			log.WarnObj("shutdown incomplete", "error", cerr.Error())
		}
	}()

	_, err = updater.Run(ctx)
	return err
}
