package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd shows the persisted pool snapshots
var statusCmd = &cobra.Command{
	Use:   "status [pool_name]",
	Short: "저장된 풀 상태 조회",
	Long: `PostgreSQL에 저장된 최신 풀 스냅샷을 조회합니다.

풀 이름(basic, watch, core)을 주면 해당 풀의 멤버를 출력합니다.

Example:
  go run ./cmd/pool status
  go run ./cmd/pool status core`,
	Args: cobra.MaximumNArgs(1),
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus(cmd *cobra.Command, args []string) error {
	a, cleanup, err := initApp()
	if err != nil {
		return err
	}
	defer cleanup()

	repo, err := a.requireDB()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if verbose {
		health, err := a.db.HealthCheck(ctx)
		if err != nil {
			return fmt.Errorf("database health check: %w", err)
		}
		fmt.Printf("Database: healthy (ping %v, conns %d/%d)\n\n",
			health.ResponseTime.Round(time.Millisecond),
			health.Stats.AcquiredConns, health.Stats.MaxConns)
	}

	if len(args) == 1 {
		p, err := repo.LoadPool(ctx, args[0])
		if err != nil {
			return fmt.Errorf("load pool: %w", err)
		}
		if len(p.Members) == 0 {
			fmt.Printf("Pool %q has no saved snapshot\n", args[0])
			return nil
		}
		fmt.Printf("Pool %q as of %s:\n", p.Name, p.AsOf.Format("2006-01-02 15:04"))
		printPool(p)
		return nil
	}

	summaries, err := repo.Summaries(ctx)
	if err != nil {
		return fmt.Errorf("load summaries: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Println("No saved pools yet. Run `pool run` first.")
		return nil
	}

	fmt.Println("Latest pool snapshots:")
	for _, s := range summaries {
		fmt.Printf("  %-8s %4d members (as of %s)\n", s.Name, s.Members, s.AsOf.Format("2006-01-02 15:04"))
	}
	return nil
}
