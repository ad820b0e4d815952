package http

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"registros/internal/core"
)

// Report grouping modes, taken from the agrupar query parameter.
const (
	GroupByPerson   = "pessoa"
	GroupByCategory = "categoria"
)

const (
	chartWidth      = 720.0
	chartHeight     = 320.0
	chartLeft       = 72.0
	chartRight      = 16.0
	chartTop        = 16.0
	chartBottom     = 40.0
	chartTickCount  = 5
	chartMaxBarW    = 48.0
	chartBarPadding = 0.4 // fraction of each slot left empty
)

type chartSegment struct {
	Y, Height float64
	Color     string
	Name      string
	Value     string
}

type chartBar struct {
	X, Width float64
	LabelX   float64
	Label    string
	Total    string
	Segments []chartSegment
}

type chartTick struct {
	Y     float64
	Label string
}

type chartSeries struct {
	Name  string
	Color string
	value func(core.Bucket) decimal.Decimal
}

type chartView struct {
	Width, Height float64
	Left, Right   float64
	Baseline      float64
	LabelY        float64
	Mode          string
	Bars          []chartBar
	Ticks         []chartTick
	Legend        []chartSeries
	Empty         bool
}

// CategoryColor spreads categories around the hue wheel.
func CategoryColor(index int) string {
	return fmt.Sprintf("hsl(%d, 70%%, 60%%)", (index*60)%360)
}

func chartSeriesFor(mode string, categories []string) []chartSeries {
	if mode == GroupByCategory {
		out := make([]chartSeries, 0, len(categories))
		for i, c := range categories {
			cat := c
			out = append(out, chartSeries{
				Name:  cat,
				Color: CategoryColor(i),
				value: func(b core.Bucket) decimal.Decimal { return b.CategoryTotal(cat) },
			})
		}
		return out
	}
	out := make([]chartSeries, 0, len(core.KnownPeople))
	for _, p := range core.KnownPeople {
		key := p.Key
		out = append(out, chartSeries{
			Name:  p.Label,
			Color: p.Color,
			value: func(b core.Bucket) decimal.Decimal { return b.PersonTotal(key) },
		})
	}
	return out
}

// niceStep rounds raw up to 1, 2, 2.5 or 5 times a power of ten.
func niceStep(raw float64) float64 {
	if raw <= 0 {
		return 1
	}
	exp := math.Floor(math.Log10(raw))
	base := math.Pow(10, exp)
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if raw <= m*base*(1+1e-9) {
			return m * base
		}
	}
	return 10 * base
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// buildChart lays out one stacked bar per bucket. Bar height follows the
// bucket total, so records of unknown people still count in pessoa mode.
func buildChart(buckets []core.Bucket, categories []string, mode string) chartView {
	if mode != GroupByCategory {
		mode = GroupByPerson
	}
	series := chartSeriesFor(mode, categories)
	view := chartView{
		Width:    chartWidth,
		Height:   chartHeight,
		Left:     chartLeft,
		Right:    chartWidth - chartRight,
		Baseline: chartHeight - chartBottom,
		LabelY:   chartHeight - chartBottom + 18,
		Mode:     mode,
		Legend:   series,
		Empty:    len(buckets) == 0,
	}

	var maxTotal float64
	for _, b := range buckets {
		maxTotal = math.Max(maxTotal, b.Total.InexactFloat64())
	}
	step := niceStep(maxTotal / float64(chartTickCount-1))
	top := step * float64(chartTickCount-1)
	plotH := view.Baseline - chartTop

	for i := 0; i < chartTickCount; i++ {
		v := step * float64(i)
		view.Ticks = append(view.Ticks, chartTick{
			Y:     round2(view.Baseline - v/top*plotH),
			Label: core.FormatBRL(decimal.NewFromFloat(v)),
		})
	}

	if len(buckets) == 0 {
		return view
	}

	slot := (view.Right - view.Left) / float64(len(buckets))
	barW := math.Min(slot*(1-chartBarPadding), chartMaxBarW)
	for i, b := range buckets {
		x := view.Left + float64(i)*slot + (slot-barW)/2
		bar := chartBar{
			X:      round2(x),
			Width:  round2(barW),
			LabelX: round2(x + barW/2),
			Label:  b.Label,
			Total:  core.FormatBRL(b.Total),
		}
		y := view.Baseline
		for _, s := range series {
			v := s.value(b)
			if !v.IsPositive() {
				continue
			}
			h := v.InexactFloat64() / top * plotH
			y -= h
			bar.Segments = append(bar.Segments, chartSegment{
				Y:      round2(y),
				Height: round2(h),
				Color:  s.Color,
				Name:   s.Name,
				Value:  core.FormatBRL(v),
			})
		}
		view.Bars = append(view.Bars, bar)
	}
	return view
}
