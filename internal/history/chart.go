package history

import (
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultPalette assigns line colours to series by position.
var DefaultPalette = []string{
	"#6366f1",
	"#10b981",
	"#f59e0b",
	"#ef4444",
	"#8b5cf6",
}

// DefaultLabelLayout renders axis points as hour:minute.
const DefaultLabelLayout = "15:04"

// SeriesLabel names a timeline series for display.
type SeriesLabel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChartOptions controls label formatting and colours.
type ChartOptions struct {
	LabelLayout string
	Location    *time.Location
	Palette     []string
}

// Dataset is one line in a Chart.js style payload.
type Dataset struct {
	ID                   string    `json:"id"`
	Label                string    `json:"label"`
	Data                 []float64 `json:"data"`
	BorderColor          string    `json:"borderColor"`
	BackgroundColor      string    `json:"backgroundColor"`
	Tension              float64   `json:"tension"`
	Fill                 bool      `json:"fill"`
	PointBackgroundColor string    `json:"pointBackgroundColor"`
	PointBorderColor     string    `json:"pointBorderColor"`
	PointBorderWidth     int       `json:"pointBorderWidth"`
	PointRadius          int       `json:"pointRadius"`
	PointHoverRadius     int       `json:"pointHoverRadius"`
}

// Chart is the labels/datasets structure handed to the charting library.
type Chart struct {
	Labels     []string    `json:"labels"`
	Timestamps []time.Time `json:"timestamps"`
	Datasets   []Dataset   `json:"datasets"`
}

// BuildChart lays out one dataset per entry of order. Series missing from the
// timeline are drawn as a flat zero line.
func BuildChart(tl Timeline, order []SeriesLabel, opts ChartOptions) Chart {
	layout := opts.LabelLayout
	if layout == "" {
		layout = DefaultLabelLayout
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	palette := normalizePalette(opts.Palette)

	chart := Chart{
		Labels:     make([]string, len(tl.Axis)),
		Timestamps: append([]time.Time{}, tl.Axis...),
		Datasets:   make([]Dataset, 0, len(order)),
	}
	for i, ts := range tl.Axis {
		chart.Labels[i] = ts.In(loc).Format(layout)
	}

	for i, label := range order {
		data, ok := tl.Series[label.ID]
		if !ok {
			data = make([]float64, len(tl.Axis))
		}
		name := label.Name
		if name == "" {
			name = label.ID
		}
		color := palette[i%len(palette)]
		chart.Datasets = append(chart.Datasets, Dataset{
			ID:                   label.ID,
			Label:                name,
			Data:                 data,
			BorderColor:          color,
			BackgroundColor:      color + "20",
			Tension:              0.4,
			Fill:                 false,
			PointBackgroundColor: "#fff",
			PointBorderColor:     color,
			PointBorderWidth:     2,
			PointRadius:          4,
			PointHoverRadius:     6,
		})
	}
	return chart
}

// normalizePalette lower-cases valid hex colours and swaps invalid ones for
// the default colour at the same position.
func normalizePalette(in []string) []string {
	if len(in) == 0 {
		return DefaultPalette
	}
	out := make([]string, len(in))
	for i, raw := range in {
		c, err := colorful.Hex(raw)
		if err != nil {
			out[i] = DefaultPalette[i%len(DefaultPalette)]
			continue
		}
		out[i] = c.Hex()
	}
	return out
}
