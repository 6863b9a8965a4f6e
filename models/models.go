// Package models holds the baselines PAGNN is compared against
package models

import "github.com/openfluke/pagnn/nn"

// CountParams counts every parameter entry of the model, frozen tables included
func CountParams(m nn.Model) int {
	return nn.CountParams(m.Params())
}

var (
	_ nn.Model = (*FFNN)(nil)
	_ nn.Model = (*LSTM)(nil)
	_ nn.Model = (*CNNTextClassifier)(nil)
	_ nn.Model = (*Padded)(nil)
)
