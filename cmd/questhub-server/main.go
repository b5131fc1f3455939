package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/questhub/internal/chains"
	"github.com/pendergraft/questhub/internal/chains/evm"
	"github.com/pendergraft/questhub/internal/config"
	"github.com/pendergraft/questhub/internal/observability/metrics"
	progress "github.com/pendergraft/questhub/internal/progress/domain"
	"github.com/pendergraft/questhub/internal/quests"
	"github.com/pendergraft/questhub/internal/server"
	"github.com/pendergraft/questhub/internal/storage"
	verification "github.com/pendergraft/questhub/internal/verification/domain"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "questhub-server",
		Short:         "Questhub server - on-chain quest verification",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe()
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newQuestsCmd())
	rootCmd.AddCommand(newVerifyCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newQuestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quests",
		Short: "Inspect the quest catalogue",
	}

	cmd.AddCommand(newQuestsListCmd())
	cmd.AddCommand(newQuestsCheckCmd())

	return cmd
}

func newQuestsListCmd() *cobra.Command {
	var category string
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quests in the catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry()
			if err != nil {
				return err
			}
			return runQuestsList(cmd.OutOrStdout(), registry, quests.Filter{
				Category:      quests.Category(category),
				IncludeHidden: all,
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only show quests in this category")
	cmd.Flags().BoolVar(&all, "all", false, "include hidden quests")

	return cmd
}

func newQuestsCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Statically check every on-chain verification config",
		Long: `Check resolves the event selector of every on-chain verification config
and reports configs the engine cannot use. No RPC calls are made.

Placeholder contracts (0x000...000) are reported so they can be wired up
before the quest goes live.

EXAMPLES:
  questhub-server quests check
  QUESTS_FILE=./quests.yaml questhub-server quests check
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry()
			if err != nil {
				return err
			}
			return runQuestsCheck(cmd.OutOrStdout(), registry)
		},
	}
}

func newVerifyCmd() *cobra.Command {
	var questID string
	var step int
	var address string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run a quest's verification against the chain without recording it",
		Long: `Verify runs the verification configs of a quest, or of one of its steps,
for an address and prints the outcome. Nothing is written to storage.

EXAMPLES:
  questhub-server verify --quest 2 --address 0xabc...
  questhub-server verify --quest 10 --step 1 --address 0xabc...
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), cmd.OutOrStdout(), questID, step, address)
		},
	}

	cmd.Flags().StringVar(&questID, "quest", "", "quest ID (required)")
	cmd.Flags().IntVar(&step, "step", -1, "step index; omit to verify the quest itself")
	cmd.Flags().StringVar(&address, "address", "", "wallet address (required)")
	_ = cmd.MarkFlagRequired("quest")
	_ = cmd.MarkFlagRequired("address")

	return cmd
}

// Catalogue commands

func loadRegistry() (*quests.Registry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return openRegistry(cfg)
}

func openRegistry(cfg *config.Config) (*quests.Registry, error) {
	if cfg.Registry.Path != "" {
		return quests.LoadFile(cfg.Registry.Path)
	}
	return quests.Load()
}

func runQuestsList(out io.Writer, registry *quests.Registry, f quests.Filter) error {
	list := registry.List(f)
	if len(list) == 0 {
		fmt.Fprintln(out, "No quests found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tXP\tCATEGORY\tSTATUS\tVERIFIED BY")
	for _, q := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", q.ID, q.Title, q.XP, q.Category, q.Status, verifiedBy(q))
	}
	return w.Flush()
}

// verifiedBy summarises how a quest gets completed.
func verifiedBy(q quests.Quest) string {
	switch {
	case q.HasOnchainVerification():
		return fmt.Sprintf("onchain (%d configs)", len(q.OnchainConfigs()))
	case q.HasTopLevelVerification():
		return "manual"
	case q.IsMultiStep():
		return fmt.Sprintf("steps (%d of %d)", len(q.VerifiableSteps()), len(q.Steps))
	default:
		return "auto"
	}
}

func runQuestsCheck(out io.Writer, registry *quests.Registry) error {
	reports := registry.Check()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "QUEST\tSTEP\tCHAIN\tEVENT\tTOPIC0\tRESULT")
	failed := 0
	for _, rep := range reports {
		step := "-"
		if rep.Step >= 0 {
			step = fmt.Sprint(rep.Step)
		}
		result := "ok"
		if !rep.OK() {
			failed++
			result = strings.Join(rep.Problems, "; ")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", rep.QuestID, step, rep.ChainID, rep.EventName, rep.Topic0, result)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d configs checked, %d with problems\n", len(reports), failed)
	if failed > 0 {
		return fmt.Errorf("%d verification configs have problems", failed)
	}
	return nil
}

// Verification command

func runVerify(ctx context.Context, out io.Writer, questID string, step int, address string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg)

	registry, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	engine, clients, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer clients.Close()

	// The results are discarded, so the store never outlives the command.
	svc := progress.NewService(registry, storage.NewMemoryStore(), engine, progress.DefaultOptions(), logger)

	var success bool
	var message, tier string
	if step < 0 {
		res, err := svc.VerifyQuestOnChain(ctx, questID, address)
		if err != nil {
			return err
		}
		success, tier = res.Success, string(res.Tier)
		message = res.Message
		if !success {
			message = res.Error
		}
	} else {
		res, err := svc.VerifyStepOnChain(ctx, questID, step, address)
		if err != nil {
			return err
		}
		success, tier = res.Success, string(res.Tier)
		message = res.Message
		if !success {
			message = res.Error
		}
	}

	status := "PASS"
	if !success {
		status = "FAIL"
	}
	fmt.Fprintf(out, "%s  %s (tier: %s)\n", status, message, tier)
	if !success {
		return errors.New("verification failed")
	}
	return nil
}

// newEngine builds the chain client registry and the verification engine on top of it.
// The caller closes the returned registry.
func newEngine(cfg *config.Config, logger *slog.Logger) (*verification.Engine, *chains.Registry, error) {
	overrides, err := cfg.Chains.RPCURLOverrides()
	if err != nil {
		return nil, nil, err
	}

	clients := chains.NewRegistry(
		chains.WithRPCURLs(chains.DefaultNetworks(), overrides),
		evm.NewDialer(evm.Options{
			Timeout:           cfg.Chains.RPCTimeoutDuration(),
			RequestsPerSecond: cfg.Chains.RequestsPerSecond,
			Burst:             cfg.Chains.Burst,
		}),
	)

	engine := verification.NewEngine(clients, verification.Options{
		LookbackBlocks:  cfg.Verification.LookbackBlocks,
		MaxSenderTxs:    cfg.Verification.MaxSenderTxs,
		SenderBatchSize: cfg.Verification.SenderBatchSize,
	}, logger)

	return engine, clients, nil
}

// Server command

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg)
	logger.Info("starting questhub-server", "version", version)

	metrics.Init(cfg.Metrics.Enabled, cfg.Metrics.ServiceName)

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	registry, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	logger.Info("quest catalogue loaded", "quests", len(registry.All()), "milestones", len(registry.Milestones()))

	engine, clients, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer clients.Close()

	srv := server.New(cfg, store, registry, engine, logger)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr, "storage", cfg.Storage.Type)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
