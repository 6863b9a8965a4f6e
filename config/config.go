// Package config holds the experiment settings. Defaults reproduce the reference runs; any key
// can be overridden from a config file or a PAGNN_* environment variable (PAGNN_IRIS_EPOCHS=50).
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/openfluke/pagnn/nn"
)

// Config is the root of all settings
type Config struct {
	Seed        int64              `mapstructure:"seed"`
	Device      string             `mapstructure:"device"` // auto, cpu, gpu
	Progress    bool               `mapstructure:"progress"`
	Checkpoints string             `mapstructure:"checkpoints"` // directory; empty disables saving
	Resume      string             `mapstructure:"resume"`      // run directory whose checkpoints seed the models
	Optimizer   nn.OptimizerConfig `mapstructure:"optimizer"`

	Yelp       Yelp       `mapstructure:"yelp"`
	Iris       Iris       `mapstructure:"iris"`
	TimeSeries TimeSeries `mapstructure:"timeseries"`
}

// Yelp configures the sentiment comparison (PAGNN vs CNN)
type Yelp struct {
	Data       string  `mapstructure:"data"`
	Word2Vec   string  `mapstructure:"word2vec"`    // pretrained vectors; empty builds a vocabulary from the reviews
	VectorSize int     `mapstructure:"vector_size"` // dimension when building from the reviews
	MinCount   int     `mapstructure:"min_count"`
	TopN       int     `mapstructure:"top_n"`
	TestSize   float64 `mapstructure:"test_size"`
	SplitSeed  int64   `mapstructure:"split_seed"`
	Extra      int     `mapstructure:"extra"`
	Steps      int     `mapstructure:"steps"`
	Graph      string  `mapstructure:"graph"`
	GraphP     float64 `mapstructure:"graph_p"` // edge probability, or rewiring probability for ring
	GraphK     int     `mapstructure:"graph_k"` // ring neighbours
	LR         float32 `mapstructure:"lr"`
	CNNLR      float32 `mapstructure:"cnn_lr"`
	Filters    int     `mapstructure:"filters"`
	Windows    []int   `mapstructure:"windows"`
	CNNSoftmax bool    `mapstructure:"cnn_softmax"` // feed CNN probabilities, not logits, to cross-entropy
	Epochs     int     `mapstructure:"epochs"`
	Figure     string  `mapstructure:"figure"`
}

// IrisModel is one sparse PAGNN configuration
type IrisModel struct {
	Steps      int    `mapstructure:"steps"`
	Activation string `mapstructure:"activation"`
}

// Iris configures the sparse classification comparison (RigL PAGNNs vs FFNN)
type Iris struct {
	Data            string      `mapstructure:"data"`
	Normalize       bool        `mapstructure:"normalize"`
	TrainFrac       float64     `mapstructure:"train_frac"`
	BatchSize       int         `mapstructure:"batch_size"`
	Epochs          int         `mapstructure:"epochs"`
	Extra           int         `mapstructure:"extra"`
	Graph           string      `mapstructure:"graph"`
	GraphP          float64     `mapstructure:"graph_p"`
	GraphK          int         `mapstructure:"graph_k"`
	PAGNNLR         float32     `mapstructure:"pagnn_lr"`
	FFNNLR          float32     `mapstructure:"ffnn_lr"`
	DenseAllocation float64     `mapstructure:"dense_allocation"` // <= 0 trains dense PAGNNs
	Delta           int         `mapstructure:"delta"`
	Alpha           float64     `mapstructure:"alpha"`
	TEndFrac        float64     `mapstructure:"t_end_frac"` // T_end as a fraction of all optimizer steps
	StaticTopo      bool        `mapstructure:"static_topo"`
	Models          []IrisModel `mapstructure:"models"`
	NetworkMode     string      `mapstructure:"network_mode"`
	Figure          string      `mapstructure:"figure"`
}

// TimeSeries configures the passenger forecasting comparison (PAGNN vs LSTM)
type TimeSeries struct {
	Data      string  `mapstructure:"data"` // empty uses the embedded flights table
	TestSize  int     `mapstructure:"test_size"`
	Window    int     `mapstructure:"window"`
	Hidden    int     `mapstructure:"hidden"`
	Extra     int     `mapstructure:"extra"`
	Steps     int     `mapstructure:"steps"`
	LR        float32 `mapstructure:"lr"`
	Epochs    int     `mapstructure:"epochs"`
	LogEvery  int     `mapstructure:"log_every"`
	Future    int     `mapstructure:"future"`
	ScaleLow  float64 `mapstructure:"scale_low"`
	ScaleHigh float64 `mapstructure:"scale_high"`
	Figure    string  `mapstructure:"figure"`
}

// SetDefaults registers every key with its reference value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("seed", 666)
	v.SetDefault("device", "auto")
	v.SetDefault("progress", true)
	v.SetDefault("checkpoints", "checkpoints")
	v.SetDefault("optimizer.name", "adam")
	v.SetDefault("optimizer.scheduler.name", "constant")

	v.SetDefault("yelp.data", "datasets/yelp/output_reviews_top.csv")
	v.SetDefault("yelp.word2vec", "")
	v.SetDefault("yelp.vector_size", 100)
	v.SetDefault("yelp.min_count", 1)
	v.SetDefault("yelp.top_n", 10000)
	v.SetDefault("yelp.test_size", 0.3)
	v.SetDefault("yelp.split_seed", 15)
	v.SetDefault("yelp.extra", 100)
	v.SetDefault("yelp.steps", 5)
	v.SetDefault("yelp.graph", "complete")
	v.SetDefault("yelp.graph_p", 0.5)
	v.SetDefault("yelp.graph_k", 4)
	v.SetDefault("yelp.lr", 0.001)
	v.SetDefault("yelp.cnn_lr", 0.001)
	v.SetDefault("yelp.filters", 10)
	v.SetDefault("yelp.windows", []int{1, 2, 3, 5})
	v.SetDefault("yelp.cnn_softmax", false)
	v.SetDefault("yelp.epochs", 100)
	v.SetDefault("yelp.figure", "figures/yelp_review_classification.png")

	v.SetDefault("iris.data", "datasets/iris.csv")
	v.SetDefault("iris.normalize", false)
	v.SetDefault("iris.train_frac", 0.67)
	v.SetDefault("iris.batch_size", 10)
	v.SetDefault("iris.epochs", 25)
	v.SetDefault("iris.extra", 0)
	v.SetDefault("iris.graph", "dense")
	v.SetDefault("iris.graph_p", 0.5)
	v.SetDefault("iris.graph_k", 4)
	v.SetDefault("iris.pagnn_lr", 0.01)
	v.SetDefault("iris.ffnn_lr", 0.01)
	v.SetDefault("iris.dense_allocation", 0.3)
	v.SetDefault("iris.delta", 100)
	v.SetDefault("iris.alpha", 0.3)
	v.SetDefault("iris.t_end_frac", 0.75)
	v.SetDefault("iris.static_topo", false)
	v.SetDefault("iris.models", []map[string]interface{}{
		{"steps": 1, "activation": "none"},
		{"steps": 2, "activation": "none"},
		{"steps": 3, "activation": "none"},
		{"steps": 2, "activation": "relu"},
		{"steps": 3, "activation": "relu"},
	})
	v.SetDefault("iris.network_mode", "scaled_weights")
	v.SetDefault("iris.figure", "examples/figures/sparse_iris_classification.png")

	v.SetDefault("timeseries.data", "")
	v.SetDefault("timeseries.test_size", 12)
	v.SetDefault("timeseries.window", 12)
	v.SetDefault("timeseries.hidden", 100)
	v.SetDefault("timeseries.extra", 10)
	v.SetDefault("timeseries.steps", 1)
	v.SetDefault("timeseries.lr", 0.001)
	v.SetDefault("timeseries.epochs", 300)
	v.SetDefault("timeseries.log_every", 25)
	v.SetDefault("timeseries.future", 12)
	v.SetDefault("timeseries.scale_low", -1)
	v.SetDefault("timeseries.scale_high", 1)
	v.SetDefault("timeseries.figure", "examples/figures/time_series.png")
}

// Load reads defaults, then the optional file at path, then PAGNN_* environment variables
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("PAGNN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no experiment can run with
func (c *Config) Validate() error {
	switch {
	case c.Iris.BatchSize <= 0:
		return errors.Errorf("iris.batch_size must be positive, got %d", c.Iris.BatchSize)
	case c.Iris.TrainFrac <= 0 || c.Iris.TrainFrac >= 1:
		return errors.Errorf("iris.train_frac must be in (0, 1), got %g", c.Iris.TrainFrac)
	case c.Yelp.TestSize <= 0 || c.Yelp.TestSize >= 1:
		return errors.Errorf("yelp.test_size must be in (0, 1), got %g", c.Yelp.TestSize)
	case c.TimeSeries.Window <= 0:
		return errors.Errorf("timeseries.window must be positive, got %d", c.TimeSeries.Window)
	case c.TimeSeries.ScaleHigh <= c.TimeSeries.ScaleLow:
		return errors.Errorf("timeseries scale range (%g, %g) is empty", c.TimeSeries.ScaleLow, c.TimeSeries.ScaleHigh)
	}
	return nil
}
