// Package datasync is the boundary to the market-data ETL collaborator.
// The engine only ever talks to the Service interface; the bundled
// implementation logs what a real provider-backed one would do, which keeps
// the scheduling paths fully runnable without credentials.
package datasync

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ExtraInfo carries provenance stamped onto synced rows. The executors fill
// it with the owning task's name.
type ExtraInfo struct {
	CreatedBy string `json:"created_by"`
	UpdatedBy string `json:"updated_by"`
}

// Range bounds a daily-data sync. Zero values mean the caller did not
// constrain that dimension.
type Range struct {
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
	CodeList  []string `json:"codelist,omitempty"`
}

// IsZero reports whether no dimension was given.
func (r Range) IsZero() bool {
	return r.StartDate == "" && r.EndDate == "" && len(r.CodeList) == 0
}

// Service is what the data-sync executor calls into.
type Service interface {
	SyncStockList(ctx context.Context, info ExtraInfo) (map[string]interface{}, error)
	SyncTradingCalendar(ctx context.Context, info ExtraInfo) (map[string]interface{}, error)
	SyncDailyData(ctx context.Context, r Range, info ExtraInfo) (map[string]interface{}, error)
	// SyncAllDailyData syncs daily bars for every listed code. An empty
	// Range narrows to the most recent trading day only.
	SyncAllDailyData(ctx context.Context, r Range, info ExtraInfo) (map[string]interface{}, error)
}

type noopService struct {
	logger zerolog.Logger
	now    func() time.Time
}

// NewNoop returns a Service that performs no external calls and reports
// what it was asked to do in its results.
func NewNoop(logger zerolog.Logger) Service {
	return &noopService{
		logger: logger.With().Str("component", "datasync").Logger(),
		now:    time.Now,
	}
}

func (s *noopService) SyncStockList(ctx context.Context, info ExtraInfo) (map[string]interface{}, error) {
	return s.report(ctx, "sync_stock_list", nil, info), nil
}

func (s *noopService) SyncTradingCalendar(ctx context.Context, info ExtraInfo) (map[string]interface{}, error) {
	return s.report(ctx, "sync_trading_calendar", nil, info), nil
}

func (s *noopService) SyncDailyData(ctx context.Context, r Range, info ExtraInfo) (map[string]interface{}, error) {
	return s.report(ctx, "sync_daily_data", &r, info), nil
}

func (s *noopService) SyncAllDailyData(ctx context.Context, r Range, info ExtraInfo) (map[string]interface{}, error) {
	result := s.report(ctx, "sync_all_daily_data", &r, info)
	if r.IsZero() {
		result["mode"] = "latest_trading_day"
		result["trade_date"] = LatestTradingDay(s.now()).Format("20060102")
	} else {
		result["mode"] = "range"
	}
	return result, nil
}

func (s *noopService) report(ctx context.Context, action string, r *Range, info ExtraInfo) map[string]interface{} {
	if err := ctx.Err(); err == nil {
		s.logger.Info().Str("action", action).Str("created_by", info.CreatedBy).Msg("data sync requested")
	}
	result := map[string]interface{}{
		"action":     action,
		"created_by": info.CreatedBy,
		"updated_by": info.UpdatedBy,
	}
	if r != nil {
		if r.StartDate != "" {
			result["start_date"] = r.StartDate
		}
		if r.EndDate != "" {
			result["end_date"] = r.EndDate
		}
		if len(r.CodeList) > 0 {
			result["codelist"] = r.CodeList
		}
	}
	return result
}

// LatestTradingDay walks back from t to the most recent weekday. Exchange
// holidays are the provider's problem; weekends are enough for scheduling
// decisions here.
func LatestTradingDay(t time.Time) time.Time {
	day := t
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, -1)
	}
	return day
}
