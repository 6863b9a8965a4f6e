package figures

import (
	"image/color"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/openfluke/pagnn/pagnn"
)

// Edge drawing modes for NetworkPanel
const (
	ModeWeights       = "weights"        // uniform edge width
	ModeScaledWeights = "scaled_weights" // width proportional to |w|
)

var roleColors = map[string]color.Color{
	"input":  color.RGBA{R: 0x90, G: 0xee, B: 0x90, A: 0xff},
	"extra":  color.RGBA{R: 0xa0, G: 0xa0, B: 0xa0, A: 0xff},
	"output": color.RGBA{R: 0xad, G: 0xd8, B: 0xe6, A: 0xff},
}

// NetworkPanel draws the layer's neurons on a circle, coloured by role, with one line per
// live connection. Positive weights are blue, negative red. Self loops are ringed nodes.
func NetworkPanel(layer *pagnn.Layer, mode, title string) (*plot.Plot, error) {
	if mode != ModeWeights && mode != ModeScaledWeights {
		return nil, errors.Errorf("figures: unknown network mode %q", mode)
	}

	p := plot.New()
	p.Title.Text = title
	p.HideAxes()
	p.Legend.Top = true

	pos := make(plotter.XYs, layer.N)
	for i := range pos {
		angle := 2 * math.Pi * float64(i) / float64(layer.N)
		pos[i] = plotter.XY{X: math.Cos(angle), Y: math.Sin(angle)}
	}

	g := layer.Graph()
	maxAbs := 0.0
	edges := g.WeightedEdges()
	for edges.Next() {
		maxAbs = math.Max(maxAbs, math.Abs(edges.WeightedEdge().Weight()))
	}

	edges = g.WeightedEdges()
	for edges.Next() {
		e := edges.WeightedEdge()
		from, to := pos[e.From().ID()], pos[e.To().ID()]
		l, err := plotter.NewLine(plotter.XYs{from, to})
		if err != nil {
			return nil, errors.Wrap(err, "figures: edge")
		}
		width := 0.5
		if mode == ModeScaledWeights && maxAbs > 0 {
			width = 0.2 + 3*math.Abs(e.Weight())/maxAbs
		}
		l.LineStyle.Width = vg.Points(width)
		l.LineStyle.Color = color.RGBA{B: 0xb0, A: 0x90}
		if e.Weight() < 0 {
			l.LineStyle.Color = color.RGBA{R: 0xc0, A: 0x90}
		}
		p.Add(l)
	}

	loops := layer.SelfLoops()
	for _, role := range []string{"input", "extra", "output"} {
		var pts, ringed plotter.XYs
		for i := 0; i < layer.N; i++ {
			if layer.Role(i) != role {
				continue
			}
			pts = append(pts, pos[i])
			if _, ok := loops[i]; ok {
				ringed = append(ringed, pos[i])
			}
		}
		if len(pts) == 0 {
			continue
		}
		if len(ringed) > 0 {
			rings, err := plotter.NewScatter(ringed)
			if err != nil {
				return nil, errors.Wrap(err, "figures: self loops")
			}
			rings.GlyphStyle = draw.GlyphStyle{Shape: draw.RingGlyph{}, Radius: vg.Points(9), Color: color.Black}
			p.Add(rings)
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "figures: %s neurons", role)
		}
		s.GlyphStyle = draw.GlyphStyle{Shape: draw.CircleGlyph{}, Radius: vg.Points(7), Color: roleColors[role]}
		p.Add(s)
		p.Legend.Add(role, s)
	}

	names := make([]string, layer.N)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: pos, Labels: names})
	if err != nil {
		return nil, errors.Wrap(err, "figures: labels")
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = text.XCenter
		labels.TextStyle[i].YAlign = text.YCenter
	}
	p.Add(labels)

	p.X.Min, p.X.Max = -1.2, 1.2
	p.Y.Min, p.Y.Max = -1.2, 1.2
	return p, nil
}
