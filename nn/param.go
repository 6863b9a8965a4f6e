package nn

// Param is a trainable tensor stored as a flat row-major slice.
//
// Mask marks which entries are live connections; a nil Mask means every entry is live.
// Support marks the entries a sparsity scheduler is allowed to activate (the structural
// adjacency of a graph layer); a nil Support means every entry may be activated.
type Param struct {
	Name  string
	Shape []int
	Data  []float32
	Grad  []float32

	Mask    []bool
	Support []bool

	Sparse bool // eligible for dynamic sparsity
	Frozen bool // excluded from optimizer updates
}

// NewParam allocates a zeroed parameter with the given shape
func NewParam(name string, shape ...int) *Param {
	size := 1
	for _, d := range shape {
		size *= d
	}
	return &Param{
		Name:  name,
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, size),
		Grad:  make([]float32, size),
	}
}

// Numel returns the number of entries, live or not
func (p *Param) Numel() int {
	return len(p.Data)
}

// ZeroGrad clears the accumulated gradient
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// Active reports whether entry i is a live connection
func (p *Param) Active(i int) bool {
	return p.Mask == nil || p.Mask[i]
}

// Supported reports whether entry i may ever be activated
func (p *Param) Supported(i int) bool {
	return p.Support == nil || p.Support[i]
}

// ActiveCount returns the number of live entries
func (p *Param) ActiveCount() int {
	if p.Mask == nil {
		return len(p.Data)
	}
	n := 0
	for _, m := range p.Mask {
		if m {
			n++
		}
	}
	return n
}

// ApplyMask zeroes every entry that is not live
func (p *Param) ApplyMask() {
	if p.Mask == nil {
		return
	}
	for i, m := range p.Mask {
		if !m {
			p.Data[i] = 0
		}
	}
}

// MaskGrad zeroes the gradient of every entry that is not live
func (p *Param) MaskGrad() {
	if p.Mask == nil {
		return
	}
	for i, m := range p.Mask {
		if !m {
			p.Grad[i] = 0
		}
	}
}

// ZeroGrads clears the gradients of all trainable params. Frozen params never
// accumulate gradients, so their (possibly vocabulary sized) buffers are left alone.
func ZeroGrads(params []*Param) {
	for _, p := range params {
		if p.Frozen {
			continue
		}
		p.ZeroGrad()
	}
}

// CountParams returns the total number of entries across params, frozen ones included
func CountParams(params []*Param) int {
	total := 0
	for _, p := range params {
		total += p.Numel()
	}
	return total
}
