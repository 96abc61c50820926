package main

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ledgerflow/ledgerflow/internal/app"
	"github.com/ledgerflow/ledgerflow/internal/config"
	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/ledger"
	"github.com/ledgerflow/ledgerflow/internal/logger"
	"github.com/ledgerflow/ledgerflow/internal/provider"
	"github.com/ledgerflow/ledgerflow/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// boot builds the application graph lazily so "--help" never touches
// config or the database.
func boot(ctx context.Context) (*app.App, error) {
	log := logger.New()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, log)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerflow",
		Short: "Import and reconcile financial transactions",
	}
	root.AddCommand(
		newImportCmd(),
		newAccountsCmd(),
		newTransactionsCmd(),
		newConnectionsCmd(),
		newSyncCmd(),
		newRulesCmd(),
	)
	return root
}

func newImportCmd() *cobra.Command {
	var (
		accountID string
		sourceTag string
		negate    bool
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV, PDF or image statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := boot(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			file := provider.File{
				Name: filepath.Base(args[0]),
				MIME: mime.TypeByExtension(filepath.Ext(args[0])),
				Data: data,
			}
			result, err := a.Service.ImportFile(ctx, file, service.ImportOptions{
				AccountID:     accountID,
				SourceTag:     sourceTag,
				NegateAmounts: negate,
			})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "ledger account ID (required)")
	cmd.Flags().StringVar(&sourceTag, "source-tag", "", "source tag stamped on imported transactions")
	cmd.Flags().BoolVar(&negate, "negate", false, "flip amount signs for sources that report outflows as positive")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "accounts", Short: "Manage ledger accounts"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := boot(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			accounts, err := a.Service.Accounts(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(accounts)
		},
	})

	var currency string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := boot(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			acc, err := a.Service.CreateAccount(cmd.Context(), ledger.Account{
				ID:       uuid.NewString(),
				Name:     args[0],
				Currency: currency,
			})
			if err != nil {
				return err
			}
			return printJSON(acc)
		},
	}
	create.Flags().StringVar(&currency, "currency", "USD", "account currency")
	cmd.AddCommand(create)
	return cmd
}

func newTransactionsCmd() *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := boot(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			txs, err := a.Service.Transactions(cmd.Context(), ledger.TransactionFilter{AccountID: accountID})
			if err != nil {
				return err
			}
			return printJSON(txs)
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "filter by account ID")
	return cmd
}

func newConnectionsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "connections", Short: "Manage bank connections"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := boot(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			conns, err := a.Service.Connections(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(conns)
		},
	})

	var (
		kind       string
		accountID  string
		externalID string
		credRef    string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Link a bank connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := boot(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			conn, err := a.Service.AddConnection(cmd.Context(), domain.Connection{
				ID:                uuid.NewString(),
				ProviderKind:      domain.ProviderKind(kind),
				LedgerAccountID:   accountID,
				ExternalAccountID: externalID,
				CredentialRef:     credRef,
				Status:            domain.ConnectionConnected,
			})
			if err != nil {
				return err
			}
			return printJSON(conn)
		},
	}
	add.Flags().StringVar(&kind, "provider", "", "provider kind (plaid-like, open-finance, gocardless-like)")
	add.Flags().StringVar(&accountID, "account", "", "ledger account ID")
	add.Flags().StringVar(&externalID, "external-account", "", "account ID at the provider")
	add.Flags().StringVar(&credRef, "credential", "", "provider credential reference")
	_ = add.MarkFlagRequired("provider")
	_ = add.MarkFlagRequired("account")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Unlink a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := boot(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Service.RemoveConnection(cmd.Context(), args[0])
		},
	})
	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [connection-id]",
		Short: "Sync one connection, or all connected ones",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := boot(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				result, err := a.Service.SyncConnection(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(result)
			}
			results, err := a.Service.SyncAll(ctx)
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
}

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "rules", Short: "Manage import rules"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := boot(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			ruleSet, err := a.Service.Rules(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(ruleSet)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <rule.json>",
		Short: "Add a rule from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var rule domain.ImportRule
			if err := json.Unmarshal(data, &rule); err != nil {
				return fmt.Errorf("parse rule: %w", err)
			}
			if rule.ID == "" {
				rule.ID = uuid.NewString()
			}

			a, err := boot(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			created, err := a.Service.AddRule(cmd.Context(), rule)
			if err != nil {
				return err
			}
			return printJSON(created)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := boot(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Service.DeleteRule(cmd.Context(), args[0])
		},
	})
	return cmd
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
