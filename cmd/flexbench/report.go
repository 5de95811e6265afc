package main

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// renderLatencyChart draws one bar per BenchResult's (Name, Operation)
// pair, bucketed by Name, giving the at-a-glance structure-vs-structure
// comparison the teacher's dead gonum/plot dependency never got wired up
// to produce.
func renderLatencyChart(results []BenchResult, outPath string) error {
	byName := map[string][]BenchResult{}
	var names []string
	for _, r := range results {
		if _, ok := byName[r.Name]; !ok {
			names = append(names, r.Name)
		}
		byName[r.Name] = append(byName[r.Name], r)
	}

	p := plot.New()
	p.Title.Text = "flextree vs. baseline: mean latency per phase"
	p.Y.Label.Text = "nanoseconds/op"

	var labels []string
	width := vg.Points(12)
	offset := -width * vg.Length(len(names)-1) / 2

	for i, name := range names {
		rows := byName[name]
		values := make(plotter.Values, len(rows))
		for j, r := range rows {
			values[j] = float64(r.LatencyNs)
			if i == 0 {
				labels = append(labels, r.Operation)
			}
		}

		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return fmt.Errorf("flexbench: bar chart for %s: %w", name, err)
		}
		bars.Offset = offset + vg.Length(i)*width
		bars.Color = plotutil.Color(i)
		p.Add(bars)
		p.Legend.Add(name, bars)
	}

	p.NominalX(labels...)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, outPath); err != nil {
		return fmt.Errorf("flexbench: save chart: %w", err)
	}
	return nil
}
