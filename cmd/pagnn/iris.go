package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/openfluke/pagnn/config"
	"github.com/openfluke/pagnn/datasets"
	"github.com/openfluke/pagnn/experiment"
	"github.com/openfluke/pagnn/figures"
	"github.com/openfluke/pagnn/models"
	"github.com/openfluke/pagnn/nn"
	"github.com/openfluke/pagnn/pagnn"
	"github.com/openfluke/pagnn/sparse"
)

func newIrisCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iris",
		Short: "Sparse PAGNNs trained with RigL vs an FFNN on Iris",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session("iris")
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runIris(ctx, s)
		},
	}
	cmd.Flags().String("data", "datasets/iris.csv", "Iris CSV")
	cmd.Flags().Int("epochs", 25, "training epochs")
	cmd.Flags().Float64("dense-allocation", 0.3, "fraction of live connections, <= 0 trains dense PAGNNs")
	cmd.Flags().String("figure", "examples/figures/sparse_iris_classification.png", "output figure")
	a.bind(cmd, "iris.data", "data")
	a.bind(cmd, "iris.epochs", "epochs")
	a.bind(cmd, "iris.dense_allocation", "dense-allocation")
	a.bind(cmd, "iris.figure", "figure")
	return cmd
}

// irisEntries builds one PAGNN per configured model, each with its own RigL scheduler,
// followed by the FFNN baseline. tEnd is the step after which RigL stops updating.
func irisEntries(s *session, c config.Iris, classes, tEnd, totalSteps int) ([]*experiment.Entry, []*pagnn.Layer, error) {
	features := len(datasets.IrisFeatures)
	gen, err := pagnn.ParseGenerator(c.Graph, c.GraphP, c.GraphK)
	if err != nil {
		return nil, nil, err
	}

	var entries []*experiment.Entry
	var layers []*pagnn.Layer
	for _, m := range c.Models {
		act, err := nn.ParseActivation(m.Activation)
		if err != nil {
			return nil, nil, err
		}
		layer, err := pagnn.New(pagnn.Config{
			Inputs:     features,
			Outputs:    classes,
			Extra:      c.Extra,
			Steps:      m.Steps,
			Activation: act,
			Graph:      gen,
		}, s.rng)
		if err != nil {
			return nil, nil, err
		}
		s.device.Attach(layer)

		e, err := s.entry(pagnn.Describe(layer, c.DenseAllocation), layer, c.PAGNNLR, totalSteps)
		if err != nil {
			return nil, nil, err
		}
		if c.DenseAllocation > 0 {
			rigl, err := sparse.NewRigL(layer.Params(), e.Optimizer, sparse.Config{
				DenseAllocation: c.DenseAllocation,
				TEnd:            tEnd,
				Delta:           c.Delta,
				Alpha:           c.Alpha,
				StaticTopo:      c.StaticTopo,
			}, s.rng)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "rigl for %s", e.Name)
			}
			fmt.Println(rigl)
			e.Pruner = rigl
		}
		entries = append(entries, e)
		layers = append(layers, layer)
	}

	ffnn := models.NewFFNN(features, features, classes, s.rng)
	e, err := s.entry(ffnn.String(), ffnn, c.FFNNLR, totalSteps)
	if err != nil {
		return nil, nil, err
	}
	return append(entries, e), layers, nil
}

func runIris(ctx context.Context, s *session) error {
	c := s.cfg.Iris
	if len(c.Models) == 0 {
		return errors.New("iris: no PAGNN models configured")
	}
	data, err := datasets.LoadIris(c.Data)
	if err != nil {
		return err
	}
	data.Shuffle(s.rng)
	if c.Normalize {
		data.Normalize()
	}
	train, test := datasets.SplitAt(data.Samples(), c.TrainFrac)
	trainDL := datasets.NewLoader(train, c.BatchSize)
	testDL := datasets.NewLoader(test, c.BatchSize)
	fmt.Printf("iris: %d train, %d test, classes %v\n", len(train), len(test), data.Classes)

	totalSteps := c.Epochs * trainDL.Len()
	tEnd := int(c.TEndFrac * float64(totalSteps))
	entries, layers, err := irisEntries(s, c, len(data.Classes), tEnd, totalSteps)
	if err != nil {
		return err
	}
	for i, e := range entries {
		if err := s.restore(fmt.Sprintf("iris_%d", i), e); err != nil {
			return err
		}
	}

	err = experiment.Compare(ctx, entries, trainDL, testDL, experiment.Options{
		Epochs:       c.Epochs,
		Criterion:    nn.CrossEntropyCriterion,
		TestAccuracy: true,
		Classes:      len(data.Classes),
		Progress:     s.cfg.Progress,
	})
	if err := finished(err); err != nil {
		return err
	}

	for i, e := range entries {
		s.checkpoint(fmt.Sprintf("iris_%d", i), e)
	}
	for _, e := range entries {
		if p, ok := e.Pruner.(*sparse.RigL); ok {
			fmt.Printf("[%s] sparsity: %.3f\n", e.Name, p.Sparsity())
		}
	}
	last := layers[len(layers)-1]
	s.exportGraph("iris_pagnn", last)
	return plotIris(c, entries, last)
}

func plotIris(c config.Iris, entries []*experiment.Entry, layer *pagnn.Layer) error {
	var loss, acc []figures.Series
	for _, e := range entries {
		loss = append(loss, figures.Series{Label: e.Name, Y: e.TrainHistory})
		acc = append(acc, figures.Series{Label: e.Name, Y: e.TestHistory})
	}
	lossPanel, err := figures.LinePanel("Train Loss", "epoch", "loss", loss...)
	if err != nil {
		return err
	}
	accPanel, err := figures.LinePanel("Test Accuracy", "epoch", "accuracy", acc...)
	if err != nil {
		return err
	}
	network, err := figures.NetworkPanel(layer, c.NetworkMode, entries[len(entries)-2].Name)
	if err != nil {
		return err
	}
	rows := [][]*plot.Plot{{lossPanel, accPanel}, {network}}
	return figures.SaveComparison(c.Figure, "Iris Classification w/ RigL - (Sparse PAGNN vs FFNN)", rows, 16*vg.Inch, 12*vg.Inch)
}

// finished turns an interrupted comparison into a normal exit so results still get plotted
func finished(err error) error {
	if experiment.Interrupted(err) {
		fmt.Println("early exit")
		return nil
	}
	return err
}
