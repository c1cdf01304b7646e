package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/ocelot/internal/db"
	"github.com/banshee-data/ocelot/internal/units"
)

// EChartsAssetsHost is where the rendered pages load echarts from.
var EChartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// SpeedChart builds an interactive line chart of the same series as SpeedPlot.
func SpeedChart(records []db.StateRecord, unit, subtitle string) *charts.Line {
	if !units.IsValid(unit) {
		unit = units.MPS
	}

	x := make([]string, len(records))
	raw := make([]opts.LineData, len(records))
	vEgo := make([]opts.LineData, len(records))
	target := make([]opts.LineData, len(records))
	var t0 float64
	if len(records) > 0 {
		t0 = records[0].TimestampUnix
	}
	for i, r := range records {
		x[i] = strconv.FormatFloat(r.TimestampUnix-t0, 'f', 2, 64)
		raw[i] = opts.LineData{Value: units.ConvertSpeed(r.VEgoRaw, unit)}
		vEgo[i] = opts.LineData{Value: units.ConvertSpeed(r.VEgo, unit)}
		if r.CruiseEnabled {
			target[i] = opts.LineData{Value: units.ConvertSpeed(r.CruiseSpeed, unit)}
		} else {
			target[i] = opts.LineData{Value: "-"}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Vehicle speed", Width: "100%", Height: "600px", AssetsHost: EChartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Vehicle speed", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("speed (%s)", unit)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x).
		AddSeries("vEgoRaw", raw).
		AddSeries("vEgo", vEgo).
		AddSeries("cruise target", target).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

// RenderSpeedChart writes the chart as a standalone HTML page.
func RenderSpeedChart(w io.Writer, records []db.StateRecord, unit, subtitle string) error {
	return SpeedChart(records, unit, subtitle).Render(w)
}
