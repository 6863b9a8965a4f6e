// Package experiment trains several models side by side on the same data and records
// their loss and accuracy histories
package experiment

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/openfluke/pagnn/datasets"
	"github.com/openfluke/pagnn/nn"
)

// ErrInterrupted is returned (wrapped) when the context is cancelled mid-training
var ErrInterrupted = errors.New("training interrupted")

// Pruner gates optimizer steps; the RigL scheduler implements it
type Pruner interface {
	// Step returns false when the optimizer step must be skipped
	Step() bool
	// ApplyMasks re-zeroes pruned weights after an optimizer step
	ApplyMasks()
}

// Entry is one competitor of a comparison and its recorded histories
type Entry struct {
	Name      string
	Model     nn.Model
	Optimizer nn.Optimizer
	LR        float32
	Scheduler nn.LRScheduler // overrides LR when set
	Pruner    Pruner

	TrainHistory []float64
	TestHistory  []float64
	Confusion    *mat.Dense // last evaluation, rows = predicted, cols = true

	steps int
}

// Options controls a comparison run
type Options struct {
	Epochs       int
	Criterion    nn.Criterion
	TestAccuracy bool // record accuracy instead of test loss
	Classes      int  // confusion matrix size, when TestAccuracy is set
	Progress     bool // show a progress bar per pass
	LogEvery     int  // print epochs where epoch%LogEvery == 1; <= 1 prints every epoch
	Out          io.Writer
}

func (o Options) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

func (o Options) logs(epoch int) bool {
	return o.LogEvery <= 1 || epoch%o.LogEvery == 1
}

// Compare trains every entry for opts.Epochs, evaluating after each epoch.
// Cancelling ctx stops at the next batch or test sample; only epochs every entry completed
// (training and evaluation) are recorded, and the returned error wraps ErrInterrupted.
func Compare(ctx context.Context, entries []*Entry, train, test *datasets.Loader, opts Options) error {
	if opts.Criterion == nil {
		return errors.New("experiment: no criterion")
	}
	if opts.TestAccuracy && opts.Classes <= 0 {
		return errors.New("experiment: accuracy needs the class count")
	}
	out := opts.out()

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		losses, err := trainEpoch(ctx, entries, train, opts, epoch)
		if err != nil {
			return errors.Wrapf(err, "epoch %d", epoch)
		}

		// an epoch is recorded for every entry or for none
		var results []evaluation
		if test != nil && len(test.Samples) > 0 {
			results = make([]evaluation, len(entries))
			for i, e := range entries {
				if results[i], err = evaluate(ctx, e, test, opts); err != nil {
					return errors.Wrapf(err, "epoch %d", epoch)
				}
			}
		}
		for i, e := range entries {
			e.TrainHistory = append(e.TrainHistory, losses[i])
			if results != nil {
				e.TestHistory = append(e.TestHistory, results[i].metric)
				if results[i].confusion != nil {
					e.Confusion = results[i].confusion
				}
			}
		}

		if opts.logs(epoch) {
			fmt.Fprintf(out, "epoch %d\n", epoch)
			for _, e := range entries {
				Report(out, e, opts.TestAccuracy)
			}
		}
	}
	return nil
}

func trainEpoch(ctx context.Context, entries []*Entry, train *datasets.Loader, opts Options, epoch int) ([]float64, error) {
	for _, e := range entries {
		e.Model.SetTraining(true)
	}

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.Default(int64(len(train.Samples)), fmt.Sprintf("epoch %d train", epoch))
		defer bar.Finish()
	}

	totals := make([]float64, len(entries))
	batches := train.Batches()
	for _, batch := range batches {
		if ctx.Err() != nil {
			return nil, ErrInterrupted
		}
		for i, e := range entries {
			totals[i] += trainBatch(e, batch, opts.Criterion)
		}
		if bar != nil {
			bar.Add(len(batch))
		}
	}

	for i := range totals {
		if len(batches) > 0 {
			totals[i] /= float64(len(batches))
		}
	}
	return totals, nil
}

// trainBatch accumulates the mean gradient of the batch and takes one optimizer step,
// unless the pruner claims the step. Returns the mean batch loss.
func trainBatch(e *Entry, batch []datasets.Sample, criterion nn.Criterion) float64 {
	params := e.Model.Params()
	nn.ZeroGrads(params)

	scale := 1 / float32(len(batch))
	var loss float64
	for _, s := range batch {
		out := e.Model.Forward(s.Input)
		l, grad := criterion(out, s.Target)
		loss += float64(l)
		for j := range grad {
			grad[j] *= scale
		}
		e.Model.Backward(grad)
	}

	if e.Pruner == nil || e.Pruner.Step() {
		lr := e.LR
		if e.Scheduler != nil {
			lr = e.Scheduler.GetLR(e.steps)
		}
		e.Optimizer.Step(params, lr)
		e.steps++
	}
	if e.Pruner != nil {
		e.Pruner.ApplyMasks()
	}
	return loss / float64(len(batch))
}

// evaluation is one entry's test result for an epoch: accuracy or mean loss
type evaluation struct {
	metric    float64
	confusion *mat.Dense
}

func evaluate(ctx context.Context, e *Entry, test *datasets.Loader, opts Options) (evaluation, error) {
	e.Model.SetTraining(false)
	defer e.Model.SetTraining(true)

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.Default(int64(len(test.Samples)), e.Name+" eval")
		defer bar.Finish()
	}

	var preds, truth []int
	var loss float64
	for _, s := range test.Samples {
		if ctx.Err() != nil {
			return evaluation{}, ErrInterrupted
		}
		out := e.Model.Forward(s.Input)
		if opts.TestAccuracy {
			preds = append(preds, nn.Argmax(out))
			truth = append(truth, s.Target.Label)
		} else {
			l, _ := opts.Criterion(out, s.Target)
			loss += float64(l)
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	if opts.TestAccuracy {
		return evaluation{metric: Accuracy(preds, truth), confusion: ConfusionMatrix(preds, truth, opts.Classes)}, nil
	}
	return evaluation{metric: loss / float64(len(test.Samples))}, nil
}

// Report prints the last recorded metrics of an entry
func Report(w io.Writer, e *Entry, accuracy bool) {
	if n := len(e.TrainHistory); n > 0 {
		fmt.Fprintf(w, "[%s] train loss: %f\n", e.Name, e.TrainHistory[n-1])
	}
	n := len(e.TestHistory)
	if n == 0 {
		return
	}
	if !accuracy {
		fmt.Fprintf(w, "[%s] test loss: %f\n", e.Name, e.TestHistory[n-1])
		return
	}
	fmt.Fprintf(w, "[%s] test accuracy: %f\n", e.Name, e.TestHistory[n-1])
	if e.Confusion != nil {
		fmt.Fprintf(w, "[%s] confusion matrix:\n%s\n", e.Name, FormatConfusion(e.Confusion))
	}
}

// Interrupted reports whether err came from a cancelled comparison
func Interrupted(err error) bool {
	return errors.Cause(err) == ErrInterrupted
}
