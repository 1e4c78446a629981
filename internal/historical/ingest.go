package historical

import (
	"context"
	"log/slog"
	"time"

	"dtc-btrex-bridge/internal/exchange"
)

// Pump drives the per-symbol backfill: walk hour buckets from the control
// file's last gap up to the present, fetching ticks via REST and writing
// them through the granulator into the store, marking each hour ingested
// only once every tick in it has been durably written.
//
// Grounded on 0xtitan6-polymarket-mm/internal/exchange/client.go's
// REST-poll-then-process shape, looped over historical hour windows instead
// of a single live poll.
type Pump struct {
	client *exchange.Client
	store  *Store
	ctrl   *CtrlFile
	gran   *Granulator

	logger *slog.Logger
}

// NewPump creates a backfill pump for the given components.
func NewPump(client *exchange.Client, store *Store, ctrl *CtrlFile, gran *Granulator, logger *slog.Logger) *Pump {
	return &Pump{client: client, store: store, ctrl: ctrl, gran: gran, logger: logger.With("component", "historical-pump")}
}

// Run backfills every symbol from genesis (or its last ingested hour)
// through the current hour, then polls the latest hour on every tick of
// interval until ctx is cancelled.
func (p *Pump) Run(ctx context.Context, symbols []string, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	for _, symbol := range symbols {
		p.backfill(ctx, symbol)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range symbols {
				p.pumpHour(ctx, symbol, time.Now().UTC().Truncate(hourGranularity))
			}
		}
	}
}

func (p *Pump) backfill(ctx context.Context, symbol string) {
	now := time.Now().UTC().Truncate(hourGranularity)
	for hour := genesis; !hour.After(now); hour = hour.Add(hourGranularity) {
		if ctx.Err() != nil {
			return
		}
		if p.ctrl.IsIngested(symbol, hour) {
			continue
		}
		p.pumpHour(ctx, symbol, hour)
	}
}

func (p *Pump) pumpHour(ctx context.Context, symbol string, hour time.Time) {
	ticks, err := p.client.HistoricalTicks(ctx, symbol, hour)
	if err != nil {
		p.logger.Error("fetch historical ticks failed", "symbol", symbol, "hour", hour, "error", err)
		return
	}
	for _, tick := range ticks {
		if err := p.store.PutTick(symbol, tick); err != nil {
			p.logger.Error("persist tick failed", "symbol", symbol, "error", err)
			return
		}
		p.gran.Ingest(symbol, tick)
	}
	if hour.Add(hourGranularity).After(time.Now().UTC()) {
		return // the current hour is still filling; leave it unmarked so it is refetched
	}
	p.ctrl.MarkIngested(symbol, hour)
	if err := p.ctrl.Save(); err != nil {
		p.logger.Error("persist control file failed", "error", err)
	}
}
