package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/stockpool/internal/indicator"
)

// cacheCmd groups cache diagnostics
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "지표 캐시 진단",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats [instruments...]",
	Short: "지표 계산 후 캐시 통계 출력",
	Long: `주어진 종목들의 전체 지표와 합성 지표를 계산한 뒤
계층별 캐시 통계를 출력합니다. 지표 연산 경로(primary/fallback)
점검용 진단 명령입니다.

Example:
  go run ./cmd/pool cache stats 000001.XSHE`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCacheStats,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	a, cleanup, err := initApp()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	registry := indicator.NewRegistry()
	for _, instrument := range args {
		for _, name := range registry.Names() {
			if _, err := a.cache.GetOrComputeBasic(ctx, instrument, name, nil); err != nil {
				fmt.Printf("  ⚠️  %s %s: %v\n", instrument, name, err)
			}
		}
		for _, name := range a.cache.Derivations() {
			if _, err := a.cache.GetOrComputeComposite(ctx, instrument, name); err != nil {
				fmt.Printf("  ⚠️  %s %s: %v\n", instrument, name, err)
			}
		}
	}

	printCacheStats(a.cache.SnapshotStats())
	return nil
}
