package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"bdsgp/internal/history"
	"bdsgp/internal/motd"
	"bdsgp/internal/upstream"
)

// HistoryResult is the comparison chart for a set of servers.
type HistoryResult struct {
	Chart     history.Chart    `json:"chart"`
	Timeline  history.Timeline `json:"timeline"`
	Truncated bool             `json:"truncated"`
	Notice    string           `json:"notice,omitempty"`
	Missing   []string         `json:"missing,omitempty"`
	Fallback  []string         `json:"fallback,omitempty"`
}

type seriesFetch struct {
	samples  []history.Sample
	missing  bool
	fallback bool
}

// History fetches each server's status history, merges the series onto one
// axis and lays them out for charting. Requests beyond MaxChartSeries are
// dropped with a notice. When upstream fails for a server its locally
// recorded samples are used instead.
func (m *Manager) History(ctx context.Context, uuids []string) (*HistoryResult, error) {
	seen := map[string]bool{}
	requested := []history.NamedSeries{}
	for _, id := range uuids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		requested = append(requested, history.NamedSeries{ID: id})
	}
	if len(requested) == 0 {
		return nil, fmt.Errorf("no servers requested")
	}

	limit := m.Config.MaxChartSeries
	kept, truncated := history.CapSeries(requested, limit)

	results := make([]seriesFetch, len(kept))
	var wg sync.WaitGroup
	for i := range kept {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.fetchSeries(ctx, kept[i].ID)
		}(i)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &HistoryResult{Truncated: truncated}
	series := make([]history.NamedSeries, 0, len(kept))
	labels := make([]history.SeriesLabel, 0, len(kept))
	for i, r := range results {
		id := kept[i].ID
		if r.missing {
			res.Missing = append(res.Missing, id)
			continue
		}
		if r.fallback {
			res.Fallback = append(res.Fallback, id)
		}
		series = append(series, history.NamedSeries{ID: id, Samples: r.samples})
		labels = append(labels, history.SeriesLabel{ID: id, Name: m.displayName(id)})
	}
	if truncated {
		res.Notice = fmt.Sprintf("At most %d servers can be shown at once", limit)
	}

	res.Timeline = history.Merge(series)
	res.Chart = history.BuildChart(res.Timeline, labels, history.ChartOptions{
		LabelLayout: m.Config.ChartLabelLayout,
		Location:    m.loc,
		Palette:     m.Config.ChartPalette,
	})
	return res, nil
}

func (m *Manager) fetchSeries(ctx context.Context, id string) seriesFetch {
	records, err := m.client.GetHistory(ctx, id)
	if err == nil {
		samples := upstream.Samples(records, m.loc)
		if m.store != nil {
			if serr := m.store.SaveSamples(ctx, id, samples); serr != nil {
				m.logger.Printf("Caching history for %s failed: %v", id, serr)
			}
		}
		return seriesFetch{samples: samples}
	}
	if errors.Is(err, upstream.ErrNotFound) {
		return seriesFetch{missing: true}
	}
	m.logger.Printf("History for %s unavailable upstream: %v", id, err)
	if m.store == nil {
		return seriesFetch{samples: []history.Sample{}, fallback: true}
	}
	samples, serr := m.store.LoadSamples(ctx, id, m.now().Add(-m.Config.Retention()))
	if serr != nil {
		m.logger.Printf("Loading cached history for %s failed: %v", id, serr)
		samples = []history.Sample{}
	}
	return seriesFetch{samples: samples, fallback: true}
}

func (m *Manager) displayName(id string) string {
	if s, ok := m.cached(id); ok {
		if name := strings.TrimSpace(motd.Strip(s.Name)); name != "" {
			return name
		}
	}
	return id
}
