package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stockpool/internal/contracts"
)

var runAsOf string

// runCmd rebuilds the pools once over the given instruments
var runCmd = &cobra.Command{
	Use:   "run [instruments...]",
	Short: "풀 재구성 1회 실행",
	Long: `지정된 종목들에 대해 지표 계산과 3단계 선별을 1회 수행합니다.

종목을 생략하면 SCHEDULER_INSTRUMENTS 환경변수의 목록을 사용합니다.
DATABASE_URL이 설정되어 있으면 결과 풀이 저장됩니다.

Example:
  go run ./cmd/pool run 000001.XSHE 600519.XSHG
  go run ./cmd/pool run --as-of 2026-08-28`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runAsOf, "as-of", "", "snapshot date (YYYY-MM-DD, default: now)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	a, cleanup, err := initApp()
	if err != nil {
		return err
	}
	defer cleanup()

	instruments := args
	if len(instruments) == 0 {
		instruments = a.cfg.Scheduler.Instruments
	}
	if len(instruments) == 0 {
		return fmt.Errorf("no instruments given and SCHEDULER_INSTRUMENTS is empty")
	}

	asOf := time.Now()
	if runAsOf != "" {
		asOf, err = time.Parse("2006-01-02", runAsOf)
		if err != nil {
			return fmt.Errorf("parse --as-of: %w", err)
		}
	}

	fmt.Printf("Rebuilding pools for %d instruments (as of %s)\n\n", len(instruments), asOf.Format("2006-01-02"))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := a.runner.Run(ctx, instruments, asOf)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	printPoolSet(result.Pools)

	if len(result.Issues) > 0 {
		fmt.Printf("\n⚠️  %d issue(s):\n", len(result.Issues))
		for _, issue := range result.Issues {
			printIssue(issue)
		}
	}
	if result.Skipped > 0 {
		fmt.Printf("\nSkipped instruments: %d\n", result.Skipped)
	}

	if verbose {
		printCacheStats(a.cache.SnapshotStats())
	}

	fmt.Printf("\n✅ Completed in %s\n", result.Finished.Sub(result.Started).Round(time.Millisecond))
	return nil
}

func printIssue(issue contracts.Issue) {
	if issue.Indicator != "" {
		fmt.Printf("  - %s [%s/%s]: %s\n", issue.Instrument, issue.Stage, issue.Indicator, issue.Err)
		return
	}
	fmt.Printf("  - %s [%s]: %s\n", issue.Instrument, issue.Stage, issue.Err)
}
