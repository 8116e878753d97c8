// Package history aligns per-server player-count samples onto one shared
// time axis for charting.
package history

import (
	"sort"
	"time"
)

// Sample is one observation of a series.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// NamedSeries is the raw, possibly unsorted, sample list of one tracked entity.
type NamedSeries struct {
	ID      string   `json:"id"`
	Samples []Sample `json:"samples"`
}

// Timeline is the merged result. Every Series entry has len(Axis) values.
type Timeline struct {
	Axis   []time.Time          `json:"axis"`
	Series map[string][]float64 `json:"series"`
}

// instant keys timestamps by absolute time so values that differ only in
// location or monotonic reading collapse together.
type instant struct {
	sec  int64
	nsec int
}

func instantOf(t time.Time) instant {
	return instant{sec: t.Unix(), nsec: t.Nanosecond()}
}

func (a instant) before(b instant) bool {
	if a.sec != b.sec {
		return a.sec < b.sec
	}
	return a.nsec < b.nsec
}

// SortSamples returns a chronologically ordered copy of samples. Ties keep
// their input order.
func SortSamples(samples []Sample) []Sample {
	sorted := append([]Sample(nil), samples...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// Merge unions the timestamps of every series into an ascending axis and
// aligns each series to it, filling gaps with 0. Within one series the last
// sample in input order wins on a duplicate timestamp. When two series share
// an ID the later one replaces the earlier.
func Merge(seriesList []NamedSeries) Timeline {
	tl := Timeline{
		Axis:   []time.Time{},
		Series: make(map[string][]float64, len(seriesList)),
	}

	latest := make(map[string]int, len(seriesList))
	for i, s := range seriesList {
		latest[s.ID] = i
	}

	axisTimes := make(map[instant]time.Time)
	lookups := make(map[string]map[instant]float64, len(latest))
	for i, s := range seriesList {
		if latest[s.ID] != i {
			continue
		}
		values := make(map[instant]float64, len(s.Samples))
		for _, sample := range SortSamples(s.Samples) {
			key := instantOf(sample.Timestamp)
			values[key] = sample.Value
			if _, ok := axisTimes[key]; !ok {
				axisTimes[key] = sample.Timestamp.UTC().Round(0)
			}
		}
		lookups[s.ID] = values
	}

	keys := make([]instant, 0, len(axisTimes))
	for key := range axisTimes {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].before(keys[j]) })
	for _, key := range keys {
		tl.Axis = append(tl.Axis, axisTimes[key])
	}

	for id, values := range lookups {
		aligned := make([]float64, len(keys))
		for i, key := range keys {
			aligned[i] = values[key]
		}
		tl.Series[id] = aligned
	}
	return tl
}

// MaxChartSeries is the number of servers the dashboard overlays at once.
const MaxChartSeries = 5

// CapSeries keeps at most max series, reporting whether any were dropped.
// A max of zero or less disables the cap.
func CapSeries(list []NamedSeries, max int) ([]NamedSeries, bool) {
	if max <= 0 || len(list) <= max {
		return list, false
	}
	return list[:max], true
}
