package config_test

import (
	"fmt"

	"github.com/wonny/stockpool/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	// Access configuration values
	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Basic pool cap: %d\n", cfg.Pool.BasicCap)
	fmt.Printf("Pipeline workers: %d\n", cfg.Pipeline.Workers)
}
