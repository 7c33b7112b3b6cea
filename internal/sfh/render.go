package sfh

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// BarColor is the fill used for SFR bars.
var BarColor = color.NRGBA{R: 195, G: 23, B: 47, A: 153}

// PlotOptions controls the two-panel SFH figure.
type PlotOptions struct {
	Title  string
	Width  vg.Length
	Height vg.Length

	// AvgMaxAge and Burst feed Summarize.
	AvgMaxAge float64
	Burst     float64

	// LifetimeMaxAge is the oldest age shown on the lifetime panel.
	LifetimeMaxAge float64

	// RecentMinAge and RecentMaxAge bound the recent panel, which leaves
	// out the RecentDrop oldest bins.
	RecentMinAge float64
	RecentMaxAge float64
	RecentDrop   int
}

// DefaultPlotOptions returns a 12x8 inch figure with a 0-6 Gyr average and
// a b = 2 burst line.
func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		Title:          "Star Formation History",
		Width:          12 * vg.Inch,
		Height:         8 * vg.Inch,
		AvgMaxAge:      6,
		Burst:          2,
		LifetimeMaxAge: 14.15,
		RecentMinAge:   0.0001,
		RecentMaxAge:   1,
		RecentDrop:     2,
	}
}

// Figure is a rendered-but-unwritten SFH figure.
type Figure struct {
	Lifetime *plot.Plot
	Recent   *plot.Plot
	Stats    Stats
	Title    string
}

// NewFigure builds both panels for h.
func NewFigure(h *History, opts PlotOptions) (*Figure, error) {
	if h == nil || len(h.Bins) == 0 {
		return nil, ErrNoBins
	}
	s := h.Series()
	st, err := Summarize(s, opts.AvgMaxAge, opts.Burst)
	if err != nil {
		return nil, err
	}

	lifetime, err := barPanel(s)
	if err != nil {
		return nil, fmt.Errorf("lifetime panel: %w", err)
	}
	lifetime.X.Min, lifetime.X.Max = 0, opts.LifetimeMaxAge
	lifetime.Y.Label.Text = "SFR (1e-3 Msun/yr)"

	recent, err := barPanel(s.DropOldest(opts.RecentDrop))
	if err != nil {
		return nil, fmt.Errorf("recent panel: %w", err)
	}
	recent.Y.Tick.Marker = unlabelledTicks{}
	if err := addReferenceLines(recent, st, opts.RecentMaxAge); err != nil {
		return nil, fmt.Errorf("recent panel: %w", err)
	}
	// Adding plotters widens the axis, so the age window is set last.
	recent.X.Min, recent.X.Max = opts.RecentMinAge, opts.RecentMaxAge

	return &Figure{Lifetime: lifetime, Recent: recent, Stats: st, Title: opts.Title}, nil
}

// Formats lists the output extensions Save understands.
var Formats = []string{"eps", "jpg", "jpeg", "pdf", "png", "svg", "tif", "tiff"}

// FormatOf returns the output format implied by path's extension, or an
// error when it is missing or unsupported.
func FormatOf(path string) (string, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		return "", fmt.Errorf("output %s has no extension to pick a format from", path)
	}
	if !slices.Contains(Formats, format) {
		return "", fmt.Errorf("output %s: unsupported format %q (want one of %s)", path, format, strings.Join(Formats, ", "))
	}
	return format, nil
}

// Save writes the figure to path; the format follows the extension.
func (f *Figure) Save(path string, w, h vg.Length) (err error) {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	c, err := draw.NewFormattedCanvas(w, h, format)
	if err != nil {
		return fmt.Errorf("output %s: %w", path, err)
	}
	f.Draw(draw.New(c))

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create figure: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close figure: %w", cerr))
		}
	}()
	if _, err := c.WriteTo(out); err != nil {
		return fmt.Errorf("write figure %s: %w", path, err)
	}
	return nil
}

// Draw lays the title across the top and the two panels side by side.
func (f *Figure) Draw(dc draw.Canvas) {
	dc.SetColor(color.White)
	dc.Fill(dc.Rectangle.Path())

	titleStyle := draw.TextStyle{
		Color:   color.Black,
		Font:    font.From(plot.DefaultFont, vg.Points(20)),
		XAlign:  draw.XCenter,
		YAlign:  draw.YTop,
		Handler: plot.DefaultTextHandler,
	}
	pad := vg.Points(10)
	titleHeight := titleStyle.Height(f.Title) + 2*pad
	if f.Title != "" {
		dc.FillText(titleStyle, vg.Point{X: (dc.Min.X + dc.Max.X) / 2, Y: dc.Max.Y - pad}, f.Title)
	}

	body := draw.Crop(dc, 0, 0, 0, -titleHeight)
	tiles := draw.Tiles{Rows: 1, Cols: 2, PadX: vg.Points(8), PadLeft: pad, PadRight: pad, PadBottom: pad}
	canvases := plot.Align([][]*plot.Plot{{f.Lifetime, f.Recent}}, tiles, body)
	f.Lifetime.Draw(canvases[0][0])
	f.Recent.Draw(canvases[0][1])
}

// Render draws h to path and returns the reference rates it plotted.
func Render(h *History, path string, opts PlotOptions) (Stats, error) {
	fig, err := NewFigure(h, opts)
	if err != nil {
		return Stats{}, err
	}
	if err := fig.Save(path, opts.Width, opts.Height); err != nil {
		return Stats{}, err
	}
	return fig.Stats, nil
}

// barPanel draws one bar per bin spanning [Begin, End] with asymmetric error
// bars at the bin centre, on an inverted age axis.
func barPanel(s Series) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = "Age (Gyr)"
	p.X.Label.TextStyle.Font.Size = vg.Points(18)
	p.Y.Label.TextStyle.Font.Size = vg.Points(16)
	p.X.Tick.Label.Font.Size = vg.Points(14)
	p.Y.Tick.Label.Font.Size = vg.Points(14)
	p.X.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}

	if s.Len() == 0 {
		return p, nil
	}

	bins := make([]plotter.HistogramBin, s.Len())
	for i := range bins {
		bins[i] = plotter.HistogramBin{Min: s.Begin[i], Max: s.End[i], Weight: s.SFR[i]}
	}
	bars := &plotter.Histogram{
		Bins:      bins,
		FillColor: BarColor,
		LineStyle: draw.LineStyle{Color: BarColor, Width: vg.Points(0.5)},
	}

	mids := s.Mid()
	errs := errorPoints{
		XYs:     make(plotter.XYs, s.Len()),
		YErrors: make(plotter.YErrors, s.Len()),
	}
	for i := range mids {
		errs.XYs[i] = plotter.XY{X: mids[i], Y: s.SFR[i]}
		errs.YErrors[i].Low = s.ErrDn[i]
		errs.YErrors[i].High = s.ErrUp[i]
	}
	errBars, err := plotter.NewYErrorBars(errs)
	if err != nil {
		return nil, err
	}
	errBars.LineStyle.Color = color.Black

	p.Add(bars, errBars)
	return p, nil
}

// errorPoints pairs bin centres with their asymmetric errors.
type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

func addReferenceLines(p *plot.Plot, st Stats, xmax float64) error {
	dashes := []vg.Length{vg.Points(6), vg.Points(4)}
	refs := []struct {
		y     float64
		label string
		lift  float64
	}{
		{st.AvgSFR, fmt.Sprintf("<SFR> 0-%g Gyr", st.MaxAge), 0.02},
		{st.BurstSFR, fmt.Sprintf("b = %g", st.BurstFactor), 0.01},
	}

	for _, r := range refs {
		line, err := plotter.NewLine(plotter.XYs{{X: 0, Y: r.y}, {X: xmax, Y: r.y}})
		if err != nil {
			return err
		}
		line.LineStyle.Color = color.Black
		line.LineStyle.Dashes = dashes
		p.Add(line)
	}

	// Labels sit just above their line, offset by a fraction of the y span.
	ylen := p.Y.Max - p.Y.Min
	for _, r := range refs {
		labels, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    plotter.XYs{{X: 0.98 * xmax, Y: r.y + r.lift*ylen}},
			Labels: []string{r.label},
		})
		if err != nil {
			return err
		}
		for i := range labels.TextStyle {
			labels.TextStyle[i].Font.Size = vg.Points(14)
		}
		p.Add(labels)
	}
	return nil
}

// unlabelledTicks keeps the default tick positions but drops their labels.
type unlabelledTicks struct{}

func (unlabelledTicks) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		ticks[i].Label = ""
	}
	return ticks
}
