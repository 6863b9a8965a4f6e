package models

import "github.com/openfluke/pagnn/nn"

// Padded fixes the token length of every input before it reaches Model, so a sentence
// model trained on padded batches can share loaders with one that reads raw tokens.
type Padded struct {
	nn.Model
	Length int
	PadIdx int
}

func (p *Padded) Forward(in nn.Input) []float32 {
	return p.Model.Forward(nn.TokenIDs(PadTokens(in.Tokens, p.Length, p.PadIdx)))
}

// PadTokens truncates ids to length or fills the tail with padIdx
func PadTokens(ids []int, length, padIdx int) []int {
	out := make([]int, length)
	n := copy(out, ids)
	for i := n; i < length; i++ {
		out[i] = padIdx
	}
	return out
}
