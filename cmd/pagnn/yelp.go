package main

import (
	"context"
	"fmt"
	"log"
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
	"github.com/openfluke/pagnn/word2vec"
)

func newYelpCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "yelp",
		Short: "PAGNN vs CNN on Yelp review sentiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session("yelp")
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runYelp(ctx, s)
		},
	}
	cmd.Flags().String("data", "datasets/yelp/output_reviews_top.csv", "Yelp reviews CSV")
	cmd.Flags().String("word2vec", "", "pretrained word2vec model, empty builds vectors from the reviews")
	cmd.Flags().Int("epochs", 100, "training epochs")
	cmd.Flags().Int("top-n", 10000, "reviews kept per sentiment")
	cmd.Flags().String("figure", "figures/yelp_review_classification.png", "output figure")
	a.bind(cmd, "yelp.data", "data")
	a.bind(cmd, "yelp.word2vec", "word2vec")
	a.bind(cmd, "yelp.epochs", "epochs")
	a.bind(cmd, "yelp.top_n", "top-n")
	a.bind(cmd, "yelp.figure", "figure")
	return cmd
}

// loadVectors reads pretrained vectors, or builds a vocabulary from the tokenized reviews.
// Either way the table ends with a zero pad vector whose index is returned.
func loadVectors(c config.Yelp, reviews []datasets.Review, seed int64) (*word2vec.KeyedVectors, int, error) {
	var kv *word2vec.KeyedVectors
	if c.Word2Vec != "" {
		var err error
		if kv, err = word2vec.Load(c.Word2Vec); err != nil {
			return nil, 0, err
		}
	} else {
		sentences := make([][]string, len(reviews))
		for i, r := range reviews {
			sentences[i] = r.Tokens
		}
		kv = word2vec.FromCorpus(sentences, c.VectorSize, c.MinCount, seed)
	}
	if kv.Len() == 0 {
		return nil, 0, errors.New("yelp: empty vocabulary")
	}
	return kv, kv.EnsurePad(word2vec.PadToken), nil
}

func reviewSamples(kv *word2vec.KeyedVectors, reviews []datasets.Review) []datasets.Sample {
	out := make([]datasets.Sample, len(reviews))
	for i, r := range reviews {
		out[i] = datasets.Sample{
			Input:  nn.TokenIDs(kv.Indices(r.Tokens)),
			Target: nn.Target{Label: r.Sentiment},
		}
	}
	return out
}

func runYelp(ctx context.Context, s *session) error {
	c := s.cfg.Yelp
	reviews, err := datasets.LoadYelp(c.Data)
	if err != nil {
		return err
	}
	reviews = datasets.TopPerClass(reviews, c.TopN)
	datasets.Tokenize(reviews)

	kv, padIdx, err := loadVectors(c, reviews, s.cfg.Seed)
	if err != nil {
		return err
	}
	log.Printf("word vectors: %s", kv)

	train, test := datasets.SplitReviews(reviews, c.TestSize, c.SplitSeed)
	maxLen := datasets.MaxTokens(reviews)
	fmt.Printf("yelp: %d train, %d test, max %d tokens\n", len(train), len(test), maxLen)

	gen, err := pagnn.ParseGenerator(c.Graph, c.GraphP, c.GraphK)
	if err != nil {
		return err
	}
	layer, err := pagnn.New(pagnn.Config{
		Inputs:  kv.Dim,
		Outputs: datasets.NumSentiments,
		Extra:   c.Extra,
		Steps:   c.Steps,
		Graph:   gen,
	}, s.rng)
	if err != nil {
		return err
	}
	s.device.Attach(layer)
	text, err := pagnn.NewText(layer, nn.EmbeddingFromPretrained("pagnn.vectors", kv.Vectors, padIdx, true))
	if err != nil {
		return err
	}

	cnn, err := models.NewCNNTextClassifier(kv.Vectors, padIdx, datasets.NumSentiments, c.Filters, c.Windows, s.rng)
	if err != nil {
		return err
	}
	cnn.Probabilities = c.CNNSoftmax

	trainDL := datasets.NewLoader(reviewSamples(kv, train), 1)
	testDL := datasets.NewLoader(reviewSamples(kv, test), 1)
	totalSteps := c.Epochs * trainDL.Len()

	pagnnEntry, err := s.entry(pagnn.Describe(layer, 0), text, c.LR, totalSteps)
	if err != nil {
		return err
	}
	cnnEntry, err := s.entry(fmt.Sprintf("CNN(#p=%d)", models.CountParams(cnn)),
		&models.Padded{Model: cnn, Length: maxLen, PadIdx: padIdx}, c.CNNLR, totalSteps)
	if err != nil {
		return err
	}
	entries := []*experiment.Entry{pagnnEntry, cnnEntry}
	for _, e := range entries {
		fmt.Println(e.Name)
	}
	if err := s.restore("yelp_pagnn", pagnnEntry); err != nil {
		return err
	}
	if err := s.restore("yelp_cnn", cnnEntry); err != nil {
		return err
	}

	err = experiment.Compare(ctx, entries, trainDL, testDL, experiment.Options{
		Epochs:       c.Epochs,
		Criterion:    nn.CrossEntropyCriterion,
		TestAccuracy: true,
		Classes:      datasets.NumSentiments,
		Progress:     s.cfg.Progress,
	})
	if err := finished(err); err != nil {
		return err
	}

	s.checkpoint("yelp_pagnn", pagnnEntry)
	s.checkpoint("yelp_cnn", cnnEntry)
	s.exportGraph("yelp_pagnn", layer)
	return plotYelp(c, entries, layer)
}

func plotYelp(c config.Yelp, entries []*experiment.Entry, layer *pagnn.Layer) error {
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
	network, err := figures.NetworkPanel(layer, figures.ModeWeights, "PAGNN Architecture")
	if err != nil {
		return err
	}
	rows := [][]*plot.Plot{{lossPanel, accPanel}, {network}}
	return figures.SaveComparison(c.Figure, "Yelp Review Sentiment Classification - (PAGNN vs CNN)", rows, 16*vg.Inch, 12*vg.Inch)
}
