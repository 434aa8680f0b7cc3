package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"duxwatch/pkg/actions"
	"duxwatch/pkg/amount"
	"duxwatch/pkg/config"
	"duxwatch/pkg/logging"
	"duxwatch/pkg/notify"
	"duxwatch/pkg/rpc"
	"duxwatch/pkg/store"
	"duxwatch/pkg/utils"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// printNotifier shows action outcomes on stdout. Errors are left to the
// command's returned error.
type printNotifier struct{}

func (printNotifier) Notify(message string, severity notify.Severity) {
	if severity == notify.SeveritySuccess {
		color.New(color.FgGreen).Fprintln(os.Stdout, message)
	}
}

// session is what a one-shot command needs to talk to the node.
type session struct {
	cfg     config.Config
	client  *rpc.Client
	actions *actions.Service
	closer  io.Closer
}

func openSession() (*session, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Stderr: true})
	client := rpc.NewClient(cfg.APIBaseURL, cfg.RequestTimeout(), logger)
	return &session{
		cfg:     cfg,
		client:  client,
		actions: actions.NewService(client, store.New(), printNotifier{}, nil, logger),
		closer:  closer,
	}, nil
}

// withSession runs fn with a request-scoped context and closes the log file
// afterwards.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.closer.Close() }()
	ctx, cancel := context.WithTimeout(cmd.Context(), s.cfg.RequestTimeout())
	defer cancel()
	return fn(ctx, s)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatUnix(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).Local().Format(time.RFC3339)
}

func newWalletCmd() *cobra.Command {
	walletCmd := &cobra.Command{
		Use:   "wallet",
		Short: "Inspect, back up and restore the node wallet",
	}

	walletCmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show the wallet summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				info, err := s.client.WalletInfo(ctx)
				if err != nil {
					return errors.New(rpc.UserMessage(err, "Failed to load wallet info"))
				}
				fmt.Printf("DID:           %s\n", info.DID)
				fmt.Printf("Public key:    %s\n", info.PublicKey)
				fmt.Printf("Transactions:  %d\n", info.TotalTransactions)
				fmt.Printf("Created:       %s\n", formatUnix(info.CreatedAt))
				fmt.Printf("Last activity: %s\n", formatUnix(info.LastActivity))
				fmt.Println("Addresses:")
				for _, c := range sortedKeys(info.Addresses) {
					fmt.Printf("  %-6s %s\n", c, info.Addresses[c])
				}
				fmt.Println("Balances:")
				for _, c := range sortedKeys(info.Balances) {
					fmt.Printf("  %-6s %s\n", c, info.Balances[c])
				}
				return nil
			})
		},
	})

	walletCmd.AddCommand(&cobra.Command{
		Use:   "tx <id>",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				tx, err := s.client.Transaction(ctx, args[0])
				if err != nil {
					return errors.New(rpc.UserMessage(err, "Failed to load transaction"))
				}
				fmt.Printf("ID:            %s\n", tx.ID)
				fmt.Printf("Status:        %s\n", tx.Status)
				fmt.Printf("From:          %s\n", tx.From)
				fmt.Printf("To:            %s\n", tx.To)
				fmt.Printf("Amount:        %s\n", utils.FormatAmount(amount.ToDisplay(tx.Amount, tx.Currency)))
				fmt.Printf("Fee:           %s\n", utils.FormatAmount(amount.ToDisplay(tx.Fee, tx.Currency)))
				fmt.Printf("Time:          %s\n", formatUnix(tx.Timestamp))
				fmt.Printf("Confirmations: %d\n", tx.Confirmations)
				if tx.BlockHeight != nil {
					fmt.Printf("Block:         %d\n", *tx.BlockHeight)
				}
				if tx.Memo != nil {
					fmt.Printf("Memo:          %s\n", *tx.Memo)
				}
				return nil
			})
		},
	})

	var outFile string
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Download the encoded wallet backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				data, err := s.actions.Backup(ctx)
				if err != nil {
					return errors.New(actions.Message(err, "Failed to backup wallet"))
				}
				if outFile == "" {
					fmt.Println(data)
					return nil
				}
				if err := os.WriteFile(outFile, []byte(data), 0600); err != nil {
					return fmt.Errorf("writing backup: %w", err)
				}
				fmt.Printf("Backup written to %s\n", outFile)
				return nil
			})
		},
	}
	backupCmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the backup to this file instead of stdout")
	walletCmd.AddCommand(backupCmd)

	walletCmd.AddCommand(&cobra.Command{
		Use:   "restore <file|->",
		Short: "Replace the node wallet with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("reading backup: %w", err)
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if err := s.actions.Restore(ctx, strings.TrimSpace(string(data))); err != nil {
					return errors.New(actions.Message(err, "Failed to restore wallet"))
				}
				return nil
			})
		},
	})

	return walletCmd
}

func newServicesCmd() *cobra.Command {
	servicesCmd := &cobra.Command{
		Use:   "services",
		Short: "Search and register marketplace services",
	}

	servicesCmd.AddCommand(&cobra.Command{
		Use:   "search [query]",
		Short: "Search services; no query lists all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				services, err := s.actions.SearchServices(ctx, query)
				if err != nil {
					return errors.New(actions.Message(err, "Failed to search services"))
				}
				for _, svc := range services {
					fmt.Printf("%-12s %-20s %24s  %s  rep %.2f\n",
						svc.ID,
						utils.TruncateString(svc.Name, 20),
						utils.FormatAmount(amount.ToDisplay(svc.Price, svc.Currency)),
						svc.ProviderDID,
						svc.ReputationScore,
					)
				}
				return nil
			})
		},
	})

	var in actions.ServiceInput
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Advertise a service on the network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				id, err := s.actions.RegisterService(ctx, in)
				if err != nil {
					return errors.New(actions.Message(err, "Failed to register service"))
				}
				fmt.Printf("Service ID: %s\n", id)
				return nil
			})
		},
	}
	registerCmd.Flags().StringVar(&in.Name, "name", "", "Service name")
	registerCmd.Flags().StringVar(&in.Description, "description", "", "Service description")
	registerCmd.Flags().StringVar(&in.Price, "price", "", "Price in whole units (e.g. 0.5)")
	registerCmd.Flags().StringVar(&in.Currency, "currency", "", "Price currency code")
	servicesCmd.AddCommand(registerCmd)

	return servicesCmd
}

func newTasksCmd() *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Submit compute tasks",
	}

	in := actions.TaskInput{CPUCores: 1, MemoryMB: 512, TimeoutSeconds: 300}
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue a task on a service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				id, err := s.actions.SubmitTask(ctx, in)
				if err != nil {
					return errors.New(actions.Message(err, "Failed to submit task"))
				}
				fmt.Printf("Task ID: %s\n", id)
				return nil
			})
		},
	}
	submitCmd.Flags().StringVar(&in.ServiceID, "service", "", "Service ID")
	submitCmd.Flags().StringVar(&in.Payload, "payload", "", "Task payload")
	submitCmd.Flags().Uint32Var(&in.CPUCores, "cpu", in.CPUCores, "CPU cores")
	submitCmd.Flags().Uint32Var(&in.MemoryMB, "memory", in.MemoryMB, "Memory in MB")
	submitCmd.Flags().Uint32Var(&in.TimeoutSeconds, "timeout", in.TimeoutSeconds, "Timeout in seconds")
	tasksCmd.AddCommand(submitCmd)

	return tasksCmd
}

func newEscrowCmd() *cobra.Command {
	escrowCmd := &cobra.Command{
		Use:   "escrow",
		Short: "Manage escrow contracts",
	}

	var in actions.EscrowInput
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Lock funds for a service purchase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				id, err := s.actions.CreateEscrow(ctx, in)
				if err != nil {
					return errors.New(actions.Message(err, "Failed to create escrow"))
				}
				fmt.Printf("Escrow ID: %s\n", id)
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&in.ServiceID, "service", "", "Service ID")
	createCmd.Flags().StringVar(&in.SellerDID, "seller", "", "Seller DID")
	createCmd.Flags().StringVar(&in.Amount, "amount", "", "Amount in whole units")
	createCmd.Flags().StringVar(&in.Currency, "currency", "", "Currency code")
	escrowCmd.AddCommand(createCmd)

	return escrowCmd
}

func newReputationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reputation <did>",
		Short: "Show a node's reputation score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			did := strings.TrimSpace(args[0])
			if !strings.HasPrefix(did, "did:") {
				return fmt.Errorf("%q is not a DID", did)
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				score, err := s.client.Reputation(ctx, did)
				if err != nil {
					return errors.New(rpc.UserMessage(err, "Failed to load reputation"))
				}
				fmt.Printf("%s reputation %.2f\n", did, score)
				return nil
			})
		},
	}
}
