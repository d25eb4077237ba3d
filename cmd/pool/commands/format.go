package commands

import (
	"fmt"

	"github.com/wonny/stockpool/internal/cache"
	"github.com/wonny/stockpool/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// printPoolSet prints the three funnel stages with their members
func printPoolSet(set *contracts.PoolSet) {
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Pool Snapshot (%s)\n", set.AsOf.Format("2006-01-02 15:04"))
	fmt.Println("───────────────────────────────────────────────────────────")

	printPool(set.Basic)
	printPool(set.Watch)
	printPool(set.Core)

	fmt.Println("═══════════════════════════════════════════════════════════")
}

// printPool prints one stage with ranked members
func printPool(p *contracts.Pool) {
	fmt.Printf("\n  %s (%d)\n", p.Name, len(p.Members))
	for i, m := range p.Members {
		fmt.Printf("  %3d. %-14s basic=%5.1f watch=%5.1f core=%5.1f\n",
			i+1, m.Instrument, m.BasicScore, m.WatchScore, m.CoreScore)
	}
}

// printCacheStats prints one layered cache snapshot
func printCacheStats(stats cache.Stats) {
	fmt.Println()
	fmt.Println("Cache statistics:")
	printLayerStats("basic", stats.Basic)
	printLayerStats("composite", stats.Composite)
}

func printLayerStats(layer string, s cache.LayerStats) {
	fmt.Printf("  %-9s entries=%d hits=%d misses=%d computed=%d reused=%d primary=%d fallback=%d failed=%d avg=%s\n",
		layer, s.Entries, s.Hits, s.Misses, s.Computations, s.Reused, s.Primary, s.Fallback, s.Failed,
		s.AvgComputeTime())
}
