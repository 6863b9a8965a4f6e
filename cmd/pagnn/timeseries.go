package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/openfluke/pagnn/config"
	"github.com/openfluke/pagnn/datasets"
	"github.com/openfluke/pagnn/experiment"
	"github.com/openfluke/pagnn/figures"
	"github.com/openfluke/pagnn/models"
	"github.com/openfluke/pagnn/nn"
	"github.com/openfluke/pagnn/pagnn"
)

func newTimeSeriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "timeseries",
		Aliases: []string{"flights"},
		Short:   "PAGNN vs LSTM on the monthly airline passenger series",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session("timeseries")
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runTimeSeries(ctx, s)
		},
	}
	cmd.Flags().String("data", "", "flights CSV (year,month,passengers), empty uses the bundled table")
	cmd.Flags().Int("epochs", 300, "training epochs")
	cmd.Flags().String("figure", "examples/figures/time_series.png", "output figure")
	a.bind(cmd, "timeseries.data", "data")
	a.bind(cmd, "timeseries.epochs", "epochs")
	a.bind(cmd, "timeseries.figure", "figure")
	return cmd
}

func loadSeries(c config.TimeSeries) ([]float64, error) {
	var flights []datasets.Flight
	var err error
	if c.Data == "" {
		flights, err = datasets.Flights()
	} else {
		flights, err = datasets.LoadFlights(c.Data)
	}
	if err != nil {
		return nil, err
	}
	series := datasets.Passengers(flights)
	if len(series) <= c.TestSize+c.Window {
		return nil, errors.Errorf("timeseries: %d points cannot hold a window of %d and %d test points",
			len(series), c.Window, c.TestSize)
	}
	return series, nil
}

// forecasts holds the inverse-scaled predictions of every entry
type forecasts map[*experiment.Entry][]float64

func runTimeSeries(ctx context.Context, s *session) error {
	c := s.cfg.TimeSeries
	series, err := loadSeries(c)
	if err != nil {
		return err
	}
	trainData := series[:len(series)-c.TestSize]
	testData := series[len(series)-c.TestSize:]

	scaler := datasets.NewMinMaxScaler(c.ScaleLow, c.ScaleHigh)
	scaled, err := scaler.FitTransform(trainData)
	if err != nil {
		return err
	}
	train := datasets.NewLoader(datasets.InOutSequences(datasets.ToFloat32(scaled), c.Window), 1)

	lstm := models.NewLSTM(1, c.Hidden, 1, s.rng)
	layer, err := pagnn.New(pagnn.Config{Inputs: 1, Outputs: 1, Extra: c.Extra, Steps: c.Steps}, s.rng)
	if err != nil {
		return err
	}
	s.device.Attach(layer)

	var entries []*experiment.Entry
	for _, m := range []struct {
		name  string
		model nn.Model
	}{{"LSTM", lstm}, {"PAGNN", layer}} {
		e, err := s.entry(m.name, m.model, c.LR, c.Epochs*train.Len())
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	for i, e := range entries {
		if err := s.restore(fmt.Sprintf("timeseries_%d", i), e); err != nil {
			return err
		}
	}

	if err := trainSeries(ctx, entries, train, c); err != nil {
		return err
	}
	for i, e := range entries {
		s.checkpoint(fmt.Sprintf("timeseries_%d", i), e)
	}

	seed := datasets.ToFloat32(scaled[len(scaled)-c.Window:])
	preds := forecasts{}
	for i, e := range entries {
		out := experiment.Forecast(e.Model, seed, c.Window, c.Future)
		preds[e] = scaler.InverseTransform(datasets.ToFloat64(out))
		if n := len(testData); len(preds[e]) >= n {
			d := floats.Distance(preds[e][:n], testData, 2)
			fmt.Printf("[%s] forecast mse: %f\n", e.Name, d*d/float64(n))
			dev, err := experiment.EvaluateForecast(testData, preds[e][:n])
			if err != nil {
				return err
			}
			dev.Print(os.Stdout, e.Name)
			if s.cfg.Checkpoints != "" {
				path := filepath.Join(s.cfg.Checkpoints, s.id, fmt.Sprintf("timeseries_%d_deviation.json", i))
				if err := dev.Save(path); err != nil {
					log.Printf("save deviation: %v", err)
				}
			}
		}
	}
	return plotSeries(c, series, len(trainData), entries, preds)
}

// trainSeries runs one epoch at a time so the two losses can be printed side by side
func trainSeries(ctx context.Context, entries []*experiment.Entry, train *datasets.Loader, c config.TimeSeries) error {
	report := func(epoch int) {
		fmt.Printf("epoch: %3d LSTM avg loss: %10.8f PAGNN avg loss: %10.8f\n",
			epoch, entries[0].TrainHistory[epoch], entries[1].TrainHistory[epoch])
	}
	opts := experiment.Options{Epochs: 1, Criterion: nn.MSECriterion, Out: io.Discard}
	for epoch := 0; epoch < c.Epochs; epoch++ {
		if err := finished(experiment.Compare(ctx, entries, train, nil, opts)); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if c.LogEvery <= 1 || epoch%c.LogEvery == 1 {
			report(epoch)
		}
	}
	if n := len(entries[0].TrainHistory); n > 0 {
		report(n - 1)
	}
	return nil
}

func plotSeries(c config.TimeSeries, series []float64, offset int, entries []*experiment.Entry, preds forecasts) error {
	var full, last []figures.Series
	for _, e := range entries {
		full = append(full, figures.Series{Label: e.Name, Y: preds[e]})
		last = append(last, figures.Series{
			Label: fmt.Sprintf("%s (#p=%d)", e.Name, models.CountParams(e.Model)),
			Y:     preds[e],
		})
	}
	fullPanel, err := figures.ForecastPanel("Month vs Passenger", "Total Passengers", series, 0, offset, full...)
	if err != nil {
		return err
	}
	tail := len(series) - c.Future
	if tail < 0 {
		tail = 0
	}
	lastPanel, err := figures.ForecastPanel(fmt.Sprintf("Last %d Months", c.Future), "Total Passengers",
		series[tail:], tail, offset, last...)
	if err != nil {
		return err
	}
	rows := [][]*plot.Plot{{fullPanel}, {lastPanel}}
	return figures.SaveComparison(c.Figure, "Time Series Prediction - (PAGNN vs LSTM)", rows, 12*vg.Inch, 12*vg.Inch)
}
