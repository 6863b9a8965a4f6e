package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/viper"
)

// TestDefaults verifies the reference constants
func TestDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Seed != 666 || cfg.Device != "auto" {
		t.Errorf("Unexpected root settings %+v", cfg)
	}
	if cfg.Iris.BatchSize != 10 || cfg.Iris.Epochs != 25 || cfg.Iris.DenseAllocation != 0.3 || len(cfg.Iris.Models) != 5 {
		t.Errorf("Unexpected iris settings %+v", cfg.Iris)
	}
	if cfg.Iris.Models[3] != (IrisModel{Steps: 2, Activation: "relu"}) {
		t.Errorf("Unexpected fourth iris model %+v", cfg.Iris.Models[3])
	}
	if cfg.TimeSeries.Window != 12 || cfg.TimeSeries.Epochs != 300 || cfg.TimeSeries.Extra != 10 || cfg.TimeSeries.LR != 0.001 {
		t.Errorf("Unexpected time series settings %+v", cfg.TimeSeries)
	}
	if cfg.Yelp.TopN != 10000 || cfg.Yelp.Steps != 5 || cfg.Yelp.CNNSoftmax || !reflect.DeepEqual(cfg.Yelp.Windows, []int{1, 2, 3, 5}) {
		t.Errorf("Unexpected yelp settings %+v", cfg.Yelp)
	}
	if cfg.Optimizer.Name != "adam" || cfg.Optimizer.Scheduler.Name != "constant" {
		t.Errorf("Expected adam with a constant schedule, got %+v", cfg.Optimizer)
	}
}

// TestEnvOverride verifies PAGNN_* variables
func TestEnvOverride(t *testing.T) {
	t.Setenv("PAGNN_IRIS_EPOCHS", "3")
	t.Setenv("PAGNN_DEVICE", "cpu")
	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Iris.Epochs != 3 || cfg.Device != "cpu" {
		t.Errorf("Environment not applied: epochs=%d device=%s", cfg.Iris.Epochs, cfg.Device)
	}
}

// TestConfigFile verifies file values override defaults
func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagnn.yaml")
	content := "timeseries:\n  epochs: 7\n  steps: 2\nyelp:\n  graph: ring\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TimeSeries.Epochs != 7 || cfg.TimeSeries.Steps != 2 || cfg.Yelp.Graph != "ring" {
		t.Errorf("File not applied: %+v %+v", cfg.TimeSeries, cfg.Yelp)
	}
	if cfg.TimeSeries.Window != 12 {
		t.Errorf("Untouched keys must keep defaults, window=%d", cfg.TimeSeries.Window)
	}
}

// TestValidate verifies rejected settings
func TestValidate(t *testing.T) {
	t.Setenv("PAGNN_IRIS_BATCH_SIZE", "0")
	if _, err := Load(viper.New(), ""); err == nil {
		t.Error("Expected error for zero batch size")
	}
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing config file")
	}
}
