// Package figures renders training comparisons with gonum/plot
package figures

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Series is one labelled line; a nil X plots Y against 0, 1, 2, ...
type Series struct {
	Label string
	X     []float64
	Y     []float64
}

// Range returns start, start+1, ..., start+n-1
func Range(start, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(start + i)
	}
	return out
}

func (s Series) points() (plotter.XYs, error) {
	if s.X != nil && len(s.X) != len(s.Y) {
		return nil, errors.Errorf("series %q: %d x values for %d y values", s.Label, len(s.X), len(s.Y))
	}
	pts := make(plotter.XYs, len(s.Y))
	for i, y := range s.Y {
		pts[i].X = float64(i)
		if s.X != nil {
			pts[i].X = s.X[i]
		}
		pts[i].Y = y
	}
	return pts, nil
}

// LinePanel plots each series as a coloured line with a legend entry
func LinePanel(title, xLabel, yLabel string, series ...Series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	for i, s := range series {
		if len(s.Y) == 0 {
			continue
		}
		pts, err := s.points()
		if err != nil {
			return nil, err
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "line %q", s.Label)
		}
		l.LineStyle.Width = vg.Points(1.5)
		l.LineStyle.Color = plotutil.Color(i)
		p.Add(l)
		if s.Label != "" {
			p.Legend.Add(s.Label, l)
		}
	}
	return p, nil
}

// ForecastPanel plots the ground truth starting at x = truthStart and every forecast starting
// at x = offset. Forecast X values are overwritten.
func ForecastPanel(title, yLabel string, truth []float64, truthStart, offset int, forecasts ...Series) (*plot.Plot, error) {
	series := []Series{{Label: "ground truth", X: Range(truthStart, len(truth)), Y: truth}}
	for _, f := range forecasts {
		f.X = Range(offset, len(f.Y))
		series = append(series, f)
	}
	return LinePanel(title, "month", yLabel, series...)
}

// SaveComparison lays rows of panels out under a centred suptitle and writes the figure.
// Rows may hold different numbers of panels; a single-panel row spans the full width.
// The format follows the file extension (png, svg, pdf, ...).
func SaveComparison(path, title string, rows [][]*plot.Plot, width, height vg.Length) error {
	if len(rows) == 0 {
		return errors.New("figures: nothing to draw")
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		format = "png"
	}
	cw, err := draw.NewFormattedCanvas(width, height, format)
	if err != nil {
		return errors.Wrapf(err, "figures: canvas for %s", path)
	}
	dc := draw.New(cw)

	header := vg.Length(0)
	if title != "" {
		sty := text.Style{
			Color:   color.Black,
			Font:    font.From(plot.DefaultFont, 24),
			XAlign:  text.XCenter,
			YAlign:  text.YTop,
			Handler: plot.DefaultTextHandler,
		}
		header = sty.Height(title) + 12
		dc.FillText(sty, vg.Point{X: dc.Center().X, Y: dc.Max.Y - 6}, title)
	}
	body := draw.Crop(dc, 0, 0, 0, -header)

	rowHeight := (body.Max.Y - body.Min.Y) / vg.Length(len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		strip := draw.Crop(body, 0, 0, vg.Length(len(rows)-1-i)*rowHeight, -vg.Length(i)*rowHeight)
		tiles := draw.Tiles{
			Rows: 1, Cols: len(row),
			PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 2,
			PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
			PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		}
		canvases := plot.Align([][]*plot.Plot{row}, tiles, strip)
		for j, p := range row {
			if p != nil {
				p.Draw(canvases[0][j])
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "figures: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "figures: create %s", path)
	}
	if _, err := cw.WriteTo(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "figures: write %s", path)
	}
	return errors.Wrapf(f.Close(), "figures: close %s", path)
}
