package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/ocelot/internal/db"
	"github.com/banshee-data/ocelot/internal/units"
)

// ErrNoRecords is returned when there is nothing to plot.
var ErrNoRecords = errors.New("report: no records")

var (
	rawColour    = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	vEgoColour   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	targetColour = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	limitColour  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// SpeedPlot builds a time series of raw speed, filtered speed, the cruise
// target while engaged and the map speed limit where known.
func SpeedPlot(records []db.StateRecord, unit string) (*plot.Plot, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	if !units.IsValid(unit) {
		unit = units.MPS
	}

	p := plot.New()
	p.Title.Text = "Vehicle speed"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = fmt.Sprintf("Speed (%s)", unit)
	p.Add(plotter.NewGrid())

	t0 := records[0].TimestampUnix
	raw := make(plotter.XYs, 0, len(records))
	vEgo := make(plotter.XYs, 0, len(records))
	var target, limit plotter.XYs
	for _, r := range records {
		x := r.TimestampUnix - t0
		raw = append(raw, plotter.XY{X: x, Y: units.ConvertSpeed(r.VEgoRaw, unit)})
		vEgo = append(vEgo, plotter.XY{X: x, Y: units.ConvertSpeed(r.VEgo, unit)})
		if r.CruiseEnabled {
			target = append(target, plotter.XY{X: x, Y: units.ConvertSpeed(r.CruiseSpeed, unit)})
		}
		if r.MapSpeedLimit > 0 {
			limit = append(limit, plotter.XY{X: x, Y: units.ConvertSpeed(r.MapSpeedLimit, unit)})
		}
	}

	series := []struct {
		name   string
		pts    plotter.XYs
		colour color.Color
		dashed bool
	}{
		{"vEgoRaw", raw, rawColour, false},
		{"vEgo", vEgo, vEgoColour, false},
		{"cruise target", target, targetColour, true},
		{"map limit", limit, limitColour, true},
	}
	for _, s := range series {
		if len(s.pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s line: %w", s.name, err)
		}
		line.Color = s.colour
		line.Width = vg.Points(1)
		if s.dashed {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	return p, nil
}

// WriteSpeedPNG renders SpeedPlot as a PNG to w.
func WriteSpeedPNG(w io.Writer, records []db.StateRecord, unit string) error {
	p, err := SpeedPlot(records, unit)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
