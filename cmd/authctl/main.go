// Command authctl administers the auth token store directly against
// Postgres/Redis, for operators bootstrapping or auditing access without
// going through the running server.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/snorlak1/mem0-server-mcp/internal/auth"
	"github.com/snorlak1/mem0-server-mcp/internal/config"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	okColor   = color.New(color.FgGreen)
	infoColor = color.New(color.FgCyan)
)

func main() {
	root := &cobra.Command{
		Use:   "authctl",
		Short: "Administer mem0-server-mcp auth tokens",
	}
	root.AddCommand(newCreateCmd(), newRevokeCmd(), newEnableCmd(), newDeleteCmd(), newListCmd(), newStatsCmd())

	if err := root.Execute(); err != nil {
		_, _ = errColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*auth.Store, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return auth.NewStore(cfg.Postgres, cfg.Redis)
}

func newCreateCmd() *cobra.Command {
	var displayName, email, permissions string
	var expiresIn time.Duration

	cmd := &cobra.Command{
		Use:   "create <user_id>",
		Short: "Issue a new token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var expiresAt *time.Time
			if expiresIn > 0 {
				t := time.Now().UTC().Add(expiresIn)
				expiresAt = &t
			}

			rec, err := store.CreateToken(context.Background(), args[0], displayName, email, expiresAt, config.ParsePermissions(permissions))
			if err != nil {
				return err
			}
			_, _ = okColor.Printf("token created for %s\n", rec.UserID)
			fmt.Println(rec.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "display-name", "", "human-readable name")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().StringVar(&permissions, "permissions", "", "comma-separated permission tags")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "token lifetime, e.g. 720h (0 = never expires)")
	return cmd
}

func newRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token>",
		Short: "Disable a token without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Revoke(context.Background(), args[0]); err != nil {
				return err
			}
			_, _ = okColor.Println("token revoked")
			return nil
		},
	}
}

func newEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <token>",
		Short: "Re-enable a revoked token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Enable(context.Background(), args[0]); err != nil {
				return err
			}
			_, _ = okColor.Println("token enabled")
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <token>",
		Short: "Permanently remove a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Delete(context.Background(), args[0]); err != nil {
				return err
			}
			_, _ = okColor.Println("token deleted")
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tokens, optionally filtered by user",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			tokens, err := store.List(context.Background(), userID)
			if err != nil {
				return err
			}
			for _, t := range tokens {
				status := "enabled"
				if !t.Enabled {
					status = "revoked"
				}
				_, _ = infoColor.Printf("%-8s %-20s %-10s created=%s\n", t.Token[:8]+"...", t.UserID, status, t.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "filter by user_id")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user_id>",
		Short: "Show success/failure counts for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Stats(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("user=%s success=%s failure=%s\n", stats.UserID,
				strconv.FormatInt(stats.SuccessCount, 10), strconv.FormatInt(stats.FailureCount, 10))
			return nil
		},
	}
}
