package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/genai-cost-planner/genai-cost-planner/internal/storage"
)

var keysDBPath string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys in the server database",
	Long: `Manage API keys directly in the planner server's SQLite database.
These commands do not go through the HTTP API.`,
}

var keysCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an API key and print its secret once",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysCreate,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	RunE:  runKeysList,
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke [id]",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRevoke,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysCreateCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysRevokeCmd)

	keysCmd.PersistentFlags().StringVar(&keysDBPath, "db", getEnvOrDefault("DATABASE_PATH", "./data/planner.db"), "Path to the server database")
}

func openKeyStore(ctx context.Context) (*storage.KeyStore, func(), error) {
	db, err := storage.New(keysDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return storage.NewKeyStore(db), func() { db.Close() }, nil
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	keys, closeDB, err := openKeyStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	key, secret, err := keys.Create(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}

	if outputFormat == "json" {
		return printJSON(struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Prefix string `json:"prefix"`
			Secret string `json:"secret"`
		}{key.ID, key.Name, key.Prefix, secret})
	}

	fmt.Printf("Created API key %s (%s)\n\n", key.ID, key.Name)
	fmt.Printf("  %s\n\n", secret)
	fmt.Println("Store this secret now; it cannot be shown again.")
	return nil
}

func runKeysList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	keys, closeDB, err := openKeyStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	list, err := keys.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}

	if outputFormat == "json" {
		return printJSON(list)
	}

	if len(list) == 0 {
		fmt.Println("No API keys.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPREFIX\tCREATED\tLAST USED\tSTATUS")
	fmt.Fprintln(w, "--\t----\t------\t-------\t---------\t------")
	for _, k := range list {
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Format("2006-01-02 15:04")
		}
		status := "active"
		if k.RevokedAt != nil {
			status = "revoked"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			k.ID,
			k.Name,
			k.Prefix,
			k.CreatedAt.Format("2006-01-02 15:04"),
			lastUsed,
			status,
		)
	}
	w.Flush()
	return nil
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	keys, closeDB, err := openKeyStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := keys.Revoke(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}
	fmt.Printf("Revoked API key %s\n", args[0])
	return nil
}
