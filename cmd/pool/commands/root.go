package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pool",
	Short: "Stockpool - 계층형 지표 캐시 기반 종목 풀 선별기",
	Long: `Stockpool Unified CLI

원시 봉 데이터 위에 기술 지표를 계층형으로 캐시하고,
Basic → Watch → Core 3단계 깔때기로 종목 풀을 선별합니다.

Usage:
  go run ./cmd/pool [command]

Examples:
  go run ./cmd/pool run 000001.XSHE 600519.XSHG
  go run ./cmd/pool status
  go run ./cmd/pool scheduler start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
