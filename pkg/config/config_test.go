package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}

	if cfg.Database.MaxConns != 25 {
		t.Errorf("Expected DB MaxConns to be 25, got %d", cfg.Database.MaxConns)
	}

	if cfg.Pool.BasicCap != 200 {
		t.Errorf("Expected BasicCap to be 200, got %d", cfg.Pool.BasicCap)
	}

	if cfg.Pipeline.Workers < 1 {
		t.Errorf("Expected at least one pipeline worker, got %d", cfg.Pipeline.Workers)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	// Set custom environment variables
	os.Setenv("ENV", "production")
	os.Setenv("DB_MAX_CONNS", "50")
	os.Setenv("POOL_WATCH_MIN", "55.5")
	os.Setenv("LOG_LEVEL", "debug")

	defer func() {
		os.Unsetenv("ENV")
		os.Unsetenv("DB_MAX_CONNS")
		os.Unsetenv("POOL_WATCH_MIN")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("Expected Env to be production, got %s", cfg.Env)
	}

	if cfg.Database.MaxConns != 50 {
		t.Errorf("Expected DB MaxConns to be 50, got %d", cfg.Database.MaxConns)
	}

	if cfg.Pool.WatchMin != 55.5 {
		t.Errorf("Expected WatchMin to be 55.5, got %v", cfg.Pool.WatchMin)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected LogLevel to be debug, got %s", cfg.LogLevel)
	}
}

func TestValidateInvalidEnv(t *testing.T) {
	os.Setenv("ENV", "invalid")
	defer os.Unsetenv("ENV")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when ENV is invalid, got nil")
	}
}

func TestValidateInvertedPoolCaps(t *testing.T) {
	// core > watch violates the nesting constraint
	os.Setenv("POOL_CORE_CAP", "100")
	os.Setenv("POOL_WATCH_CAP", "50")

	defer func() {
		os.Unsetenv("POOL_CORE_CAP")
		os.Unsetenv("POOL_WATCH_CAP")
	}()

	_, err := Load()
	if err == nil {
		t.Error("Expected error when core cap exceeds watch cap, got nil")
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "2h")
	defer os.Unsetenv("TEST_DURATION")

	duration := getEnvAsDuration("TEST_DURATION", "1h")
	expected := 2 * time.Hour

	if duration != expected {
		t.Errorf("Expected duration to be %v, got %v", expected, duration)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	os.Setenv("TEST_INT", "100")
	defer os.Unsetenv("TEST_INT")

	value := getEnvAsInt("TEST_INT", 50)
	if value != 100 {
		t.Errorf("Expected value to be 100, got %d", value)
	}
}

func TestGetEnvAsFloat(t *testing.T) {
	os.Setenv("TEST_FLOAT", "0.75")
	defer os.Unsetenv("TEST_FLOAT")

	value := getEnvAsFloat("TEST_FLOAT", 0.5)
	if value != 0.75 {
		t.Errorf("Expected value to be 0.75, got %v", value)
	}
}

func TestGetEnvAsSlice(t *testing.T) {
	os.Setenv("TEST_SLICE", "000001.XSHE, 600519.XSHG ,,000333.XSHE")
	defer os.Unsetenv("TEST_SLICE")

	values := getEnvAsSlice("TEST_SLICE", nil)
	expected := []string{"000001.XSHE", "600519.XSHG", "000333.XSHE"}

	if len(values) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(values))
	}
	for i := range expected {
		if values[i] != expected[i] {
			t.Errorf("Expected value %d to be %s, got %s", i, expected[i], values[i])
		}
	}

	if got := getEnvAsSlice("TEST_SLICE_MISSING", nil); got != nil {
		t.Errorf("Expected nil default, got %v", got)
	}
}

func TestGetEnvAsBool(t *testing.T) {
	os.Setenv("TEST_BOOL", "true")
	defer os.Unsetenv("TEST_BOOL")

	value := getEnvAsBool("TEST_BOOL", false)
	if value != true {
		t.Errorf("Expected value to be true, got %v", value)
	}
}
