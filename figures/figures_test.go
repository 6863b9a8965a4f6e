package figures

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/openfluke/pagnn/nn"
	"github.com/openfluke/pagnn/pagnn"
)

// TestSaveComparison renders a 2+1 layout to PNG
func TestSaveComparison(t *testing.T) {
	loss, err := LinePanel("train loss", "epoch", "loss",
		Series{Label: "PAGNN", Y: []float64{1, 0.6, 0.4}},
		Series{Label: "CNN", Y: []float64{1.1, 0.8, 0.5}})
	if err != nil {
		t.Fatal(err)
	}
	acc, err := LinePanel("test accuracy", "", "", Series{Label: "PAGNN", Y: []float64{0.5, 0.7, 0.8}})
	if err != nil {
		t.Fatal(err)
	}

	layer, err := pagnn.New(pagnn.Config{Inputs: 3, Outputs: 2, Extra: 2, Steps: 1, Graph: pagnn.ErdosRenyi{P: 0.5}}, rand.New(rand.NewSource(666)))
	if err != nil {
		t.Fatal(err)
	}
	network, err := NetworkPanel(layer, ModeScaledWeights, "architecture")
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "figures", "comparison.png")
	if err := SaveComparison(path, "Comparison", [][]*plot.Plot{{loss, acc}, {network}}, 16*vg.Inch, 9*vg.Inch); err != nil {
		t.Fatalf("SaveComparison failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Errorf("Expected a non-empty PNG, got %v (%v)", info, err)
	}
}

// TestForecastSeries verifies x offsets and mismatched lengths
func TestForecastSeries(t *testing.T) {
	if _, err := LinePanel("forecast", "", "", Series{Label: "truth", Y: []float64{1, 2, 3}}, Series{Label: "pred", X: Range(1, 2), Y: []float64{2, 3}}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if _, err := LinePanel("bad", "", "", Series{X: Range(0, 3), Y: []float64{1}}); err == nil {
		t.Error("Expected error for mismatched series")
	}
	if got := Range(132, 12); got[0] != 132 || got[11] != 143 {
		t.Errorf("Unexpected range %v", got)
	}

	truth := []float64{10, 12, 14, 13, 15}
	p, err := ForecastPanel("forecast", "passengers", truth, 0, 3, Series{Label: "LSTM", Y: []float64{13.5, 14.5}})
	if err != nil {
		t.Fatalf("ForecastPanel failed: %v", err)
	}
	if p.X.Max < 4 {
		t.Errorf("Expected the x range to cover the forecast, max=%v", p.X.Max)
	}
	if _, err := ForecastPanel("last", "", truth[3:], 3, 3, Series{Label: "PAGNN", Y: []float64{13, 15}}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

// TestNetworkPanelModes verifies mode validation
func TestNetworkPanelModes(t *testing.T) {
	layer, err := pagnn.New(pagnn.Config{Inputs: 1, Outputs: 1, Steps: 1, Activation: nn.ActivationReLU}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NetworkPanel(layer, ModeWeights, ""); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if _, err := NetworkPanel(layer, "spring", ""); err == nil {
		t.Error("Expected error for unknown mode")
	}
}
