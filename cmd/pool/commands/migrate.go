package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/stockpool/internal/bars"
	"github.com/wonny/stockpool/internal/pool"
)

// migrateCmd creates the required tables
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "DB 스키마 생성",
	Long:  `bars, pool_members 테이블을 생성합니다 (이미 있으면 건너뜀).`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, cleanup, err := initApp()
	if err != nil {
		return err
	}
	defer cleanup()

	if a.db == nil {
		return fmt.Errorf("DATABASE_URL is not set; nothing to migrate")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := bars.NewRepository(a.db.Pool).EnsureSchema(ctx); err != nil {
		return fmt.Errorf("migrate bars: %w", err)
	}
	if err := pool.NewRepository(a.db.Pool).EnsureSchema(ctx); err != nil {
		return fmt.Errorf("migrate pools: %w", err)
	}

	fmt.Println("✅ Schema is up to date")
	return nil
}
