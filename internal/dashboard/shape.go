package dashboard

import (
	"context"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"econglobe.io/explorer/internal/catalog"
	"econglobe.io/explorer/internal/store"
)

const maxConcurrentCharts = 4

// DashboardItem is a saved item ready for display. Country items offer every
// indicator and start with no chart; chart items offer their own indicator
// and start with it loaded.
type DashboardItem struct {
	store.SavedItem
	Indicators          []catalog.Indicator  `json:"indicators"`
	ActiveChart         *catalog.ChartSeries `json:"activeChart,omitempty"`
	ActiveIndicatorName string               `json:"activeIndicatorName,omitempty"`
	ActiveIndicatorID   string               `json:"activeIndicatorId,omitempty"`
	Error               string               `json:"error,omitempty"`
}

const chartLoadFailed = "Could not load chart data."

// Shape turns saved items into display items, loading chart series
// concurrently. A failed load leaves that item with an empty series and an
// Error message instead of failing the whole dashboard.
func (s *Service) Shape(ctx context.Context, items []store.SavedItem) ([]DashboardItem, error) {
	shaped := make([]DashboardItem, len(items))

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentCharts)
	for i, item := range items {
		shaped[i] = DashboardItem{SavedItem: item, Indicators: IndicatorsFor(item)}
		if item.Type != store.ItemChart || item.Indicator == nil {
			continue
		}
		indicator := *item.Indicator
		i := i
		g.Go(func() error {
			s.load(ctx, &shaped[i], indicator)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return shaped, nil
}

// IndicatorsFor lists the indicators an item offers: all of them for a
// country, its own for a chart.
func IndicatorsFor(item store.SavedItem) []catalog.Indicator {
	if item.Type == store.ItemChart && item.Indicator != nil {
		return []catalog.Indicator{*item.Indicator}
	}
	return slices.Clone(catalog.Indicators)
}

// ToggleChart hides the chart when indicatorID is the active one and loads
// it otherwise.
func (s *Service) ToggleChart(ctx context.Context, item DashboardItem, indicatorID string) DashboardItem {
	if item.ActiveChart != nil && item.ActiveIndicatorID == indicatorID {
		item.ActiveChart = nil
		item.ActiveIndicatorID = ""
		item.ActiveIndicatorName = ""
		item.Error = ""
		return item
	}
	idx := slices.IndexFunc(item.Indicators, func(ind catalog.Indicator) bool { return ind.ID == indicatorID })
	if idx < 0 {
		return item
	}
	s.load(ctx, &item, item.Indicators[idx])
	return item
}

func (s *Service) load(ctx context.Context, item *DashboardItem, indicator catalog.Indicator) {
	item.ActiveIndicatorID = indicator.ID
	item.ActiveIndicatorName = indicator.Name
	item.Error = ""

	series, err := s.charts.Chart(ctx, item.Country.ID, indicator)
	if err != nil {
		s.logger.Warn("dashboard chart load failed",
			zap.String("country", item.Country.ID),
			zap.String("indicator", indicator.ID),
			zap.Error(err))
		item.ActiveChart = &catalog.ChartSeries{Name: indicator.Name, Series: []catalog.ChartDataPoint{}}
		item.Error = chartLoadFailed
		return
	}
	item.ActiveChart = &series
}
