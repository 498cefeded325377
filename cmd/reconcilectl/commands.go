package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciler/internal/config"
	"github.com/garyjia/invoice-reconciler/internal/container"
	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
	"github.com/garyjia/invoice-reconciler/pkg/utils"
)

type options struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "reconcilectl",
		Short:         "Operate the invoice reconciliation engine from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_PATH"), "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newReconcileCommand(opts),
		newMatchesCommand(opts),
		newConfirmCommand(opts),
		newScoreCommand(opts),
		newExplainCommand(opts),
		newExportCommand(opts),
	)
	return root
}

// withContainer starts the application container, runs fn and closes it again
func withContainer(cmd *cobra.Command, opts *options, fn func(ctx context.Context, services *container.ServiceBundle) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      opts.logLevel,
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close container", zap.Error(err))
		}
	}()

	return fn(ctx, c.Services())
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newReconcileCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <tenant-id>",
		Short: "Replace the tenant's proposed matches with a fresh allocation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, opts, func(ctx context.Context, s *container.ServiceBundle) error {
				result, err := s.Reconciliation.Reconcile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newMatchesCommand(opts *options) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "matches <tenant-id>",
		Short: "List match candidates, best score first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatus(status)
			if err != nil {
				return err
			}
			return withContainer(cmd, opts, func(ctx context.Context, s *container.ServiceBundle) error {
				matches, err := s.Reconciliation.ListMatches(ctx, args[0], filter)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), matches)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only list PROPOSED, CONFIRMED or REJECTED candidates")
	return cmd
}

func newConfirmCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <tenant-id> <match-id>",
		Short: "Confirm a proposed match and reject its siblings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, opts, func(ctx context.Context, s *container.ServiceBundle) error {
				result, err := s.Reconciliation.ConfirmMatch(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newScoreCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "score <tenant-id> <invoice-id> <bank-transaction-id>",
		Short: "Score one invoice against one bank transaction",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, opts, func(ctx context.Context, s *container.ServiceBundle) error {
				result, err := s.Reconciliation.ScorePair(ctx, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"invoice_id":          result.Invoice.ID,
					"bank_transaction_id": result.Transaction.ID,
					"score":               result.Score.Total.StringFixed(4),
					"confidence":          result.Score.Confidence,
					"reasoning":           result.Score.Reasoning,
				})
			})
		},
	}
}

func newExplainCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <tenant-id> <match-id>",
		Short: "Explain a stored match candidate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, opts, func(ctx context.Context, s *container.ServiceBundle) error {
				explanation, err := s.Explanation.ExplainMatch(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), explanation)
			})
		},
	}
}

func newExportCommand(opts *options) *cobra.Command {
	var (
		status string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <tenant-id>",
		Short: "Write the tenant's match candidates to a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatus(status)
			if err != nil {
				return err
			}
			return withContainer(cmd, opts, func(ctx context.Context, s *container.ServiceBundle) error {
				report, err := s.Report.ExportMatches(ctx, args[0], filter)
				if err != nil {
					return err
				}
				path := output
				if path == "" {
					path = report.Filename
				}
				if err := os.WriteFile(path, report.Content, 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"path": path, "rows": report.Rows})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only export PROPOSED, CONFIRMED or REJECTED candidates")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (defaults to matches-<tenant>.xlsx)")
	return cmd
}

func parseStatus(raw string) (*entity.MatchStatus, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return nil, nil
	}
	status := entity.MatchStatus(raw)
	if !status.IsValid() {
		return nil, fmt.Errorf("unknown match status %q", raw)
	}
	return &status, nil
}
