// Command pagnn trains PAGNNs against baseline architectures and plots the comparison.
//
//	pagnn iris         sparse PAGNNs with RigL vs an FFNN on Iris
//	pagnn timeseries   PAGNN vs LSTM on the airline passenger series
//	pagnn yelp         PAGNN vs CNN on Yelp review sentiment
//
// Settings come from defaults, an optional --config file and PAGNN_* environment variables.
package main

import (
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openfluke/pagnn/config"
	"github.com/openfluke/pagnn/device"
	"github.com/openfluke/pagnn/experiment"
	"github.com/openfluke/pagnn/nn"
	"github.com/openfluke/pagnn/pagnn"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "pagnn",
		Short:         "Compare PAGNNs with baseline architectures",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (yaml, json or toml)")
	flags.String("device", "auto", "auto, cpu or gpu")
	flags.Int64("seed", 666, "random seed")
	flags.Bool("progress", true, "show progress bars")
	flags.String("checkpoints", "checkpoints", "checkpoint directory, empty disables saving")
	flags.String("resume", "", "run directory to restore weights and optimizer settings from")
	flags.String("optimizer", "adam", "sgd, sgd_momentum, adam, adamw or rmsprop")
	flags.String("lr-schedule", "constant", "constant, linear, cosine, exponential, step or warmup")
	a.bind(root, "device", "device")
	a.bind(root, "seed", "seed")
	a.bind(root, "progress", "progress")
	a.bind(root, "checkpoints", "checkpoints")
	a.bind(root, "resume", "resume")
	a.bind(root, "optimizer.name", "optimizer")
	a.bind(root, "optimizer.scheduler.name", "lr-schedule")

	root.AddCommand(newIrisCmd(a), newTimeSeriesCmd(a), newYelpCmd(a))
	return root
}

// bind ties a persistent or local flag of cmd to a config key
func (a *app) bind(cmd *cobra.Command, key, flag string) {
	f := cmd.Flags().Lookup(flag)
	if f == nil {
		f = cmd.PersistentFlags().Lookup(flag)
	}
	if f == nil {
		panic("no flag " + flag)
	}
	if err := a.v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

// session is the per-run state shared by every experiment
type session struct {
	cfg    *config.Config
	id     string
	device *device.Device
	rng    *rand.Rand
}

func (a *app) session(experiment string) (*session, error) {
	dev, err := device.Select(a.cfg.Device)
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:    a.cfg,
		id:     uuid.NewString(),
		device: dev,
		rng:    rand.New(rand.NewSource(a.cfg.Seed)),
	}
	log.Printf("%s run %s on %s", experiment, s.id, dev)
	return s, nil
}

// entry pairs model with a fresh optimizer and the configured learning rate schedule.
// A schedule without total_steps runs over totalSteps, the optimizer steps of the run.
func (s *session) entry(name string, model nn.Model, lr float32, totalSteps int) (*experiment.Entry, error) {
	opt, err := nn.NewOptimizer(s.cfg.Optimizer)
	if err != nil {
		return nil, err
	}
	sc := s.cfg.Optimizer.Scheduler
	if sc.TotalSteps == 0 {
		sc.TotalSteps = totalSteps
	}
	sched, err := nn.NewScheduler(lr, sc)
	if err != nil {
		return nil, errors.Wrapf(err, "%s scheduler", name)
	}
	return &experiment.Entry{Name: name, Model: model, Optimizer: opt, LR: lr, Scheduler: sched}, nil
}

// checkpoint writes the params and optimizer settings of a trained entry under
// <checkpoints>/<run id>/
func (s *session) checkpoint(file string, e *experiment.Entry) {
	if s.cfg.Checkpoints == "" {
		return
	}
	cp := nn.NewCheckpoint(s.id, e.Name, e.Model.Params())
	cp.Optimizer = e.Optimizer.GetState()
	if err := cp.Save(filepath.Join(s.cfg.Checkpoints, s.id, file+".json")); err != nil {
		log.Printf("checkpoint %s: %v", e.Name, err)
	}
}

// restore loads <resume>/<file>.json into e before training, when a run to resume is set
func (s *session) restore(file string, e *experiment.Entry) error {
	if s.cfg.Resume == "" {
		return nil
	}
	cp, err := nn.LoadCheckpoint(filepath.Join(s.cfg.Resume, file+".json"), e.Model.Params())
	if err != nil {
		return errors.Wrapf(err, "resume %s", e.Name)
	}
	if cp.Optimizer != nil {
		if err := e.Optimizer.LoadState(cp.Optimizer); err != nil {
			return errors.Wrapf(err, "resume %s optimizer", e.Name)
		}
	}
	log.Printf("resumed %s from run %s", e.Name, cp.ID)
	return nil
}

// exportGraph writes the live connections of layer as Graphviz DOT next to the checkpoints
func (s *session) exportGraph(file string, layer *pagnn.Layer) {
	if s.cfg.Checkpoints == "" {
		return
	}
	data, err := layer.DOT(file)
	if err == nil {
		path := filepath.Join(s.cfg.Checkpoints, s.id, file+".dot")
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			err = os.WriteFile(path, data, 0o644)
		}
	}
	if err != nil {
		log.Printf("export graph %s: %v", file, errors.Wrap(err, "dot"))
	}
}
