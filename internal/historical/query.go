package historical

import (
	"context"
	"log/slog"
	"time"

	"dtc-btrex-bridge/internal/session"
	"dtc-btrex-bridge/internal/wire"
)

// QueryHandler answers HistoricalPriceDataRequest frames against the store:
// SpanSeconds <= 0 streams each raw tick as a single-trade record (its price
// in all four OHLC fields, its quantity as volume), anything else streams
// the matching OHLCV bars.
type QueryHandler struct {
	store  *Store
	gran   *Granulator
	logger *slog.Logger
}

// NewQueryHandler creates a handler serving from store. Answers come from
// the store only; bars still open in the granulator are not included.
func NewQueryHandler(store *Store, gran *Granulator, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{store: store, gran: gran, logger: logger.With("component", "historical-query")}
}

// Handle decodes and answers one HistoricalPriceDataRequest frame.
func (q *QueryHandler) Handle(ctx context.Context, conn *session.Connection, msg wire.Message) {
	req, err := wire.DecodeHistoricalPriceDataRequest(msg.Payload)
	if err != nil {
		q.logger.Warn("malformed historical price data request", "error", err)
		return
	}
	start := time.Unix(req.StartDateTime, 0).UTC()
	end := time.Unix(req.EndDateTime, 0).UTC()

	if req.SpanSeconds <= 0 {
		q.streamTicks(conn, req, start, end)
		return
	}
	q.streamBars(conn, req, start, end)
}

func (q *QueryHandler) streamTicks(conn *session.Connection, req wire.HistoricalPriceDataRequest, start, end time.Time) {
	ticks, err := q.store.QueryTicks(req.Symbol, start, end)
	if err != nil {
		conn.Send(wire.Encode(wire.TypeHistoricalPriceDataResponse, wire.EncodeHistoricalPriceDataResponse(wire.HistoricalPriceDataResponse{
			RequestID: req.RequestID, Rejected: 1, RejectText: err.Error(),
		})))
		return
	}
	conn.Send(wire.Encode(wire.TypeHistoricalPriceDataResponse, wire.EncodeHistoricalPriceDataResponse(wire.HistoricalPriceDataResponse{
		RequestID: req.RequestID, RecordSize: int64(len(ticks)),
	})))
	for i, t := range ticks {
		final := int64(0)
		if i == len(ticks)-1 {
			final = 1
		}
		conn.Send(wire.Encode(wire.TypeHistoricalPriceDataRecord, wire.EncodeHistoricalPriceDataRecord(wire.HistoricalPriceDataRecord{
			RequestID:     req.RequestID,
			StartDateTime: t.Timestamp.Unix(),
			Open:          t.Price,
			High:          t.Price,
			Low:           t.Price,
			Last:          t.Price,
			Volume:        t.Qty,
			NumTrades:     1,
			IsFinal:       final,
		})))
	}
	if len(ticks) == 0 {
		conn.Send(wire.Encode(wire.TypeHistoricalPriceDataRecord, wire.EncodeHistoricalPriceDataRecord(wire.HistoricalPriceDataRecord{
			RequestID: req.RequestID, IsFinal: 1,
		})))
	}
}

func (q *QueryHandler) streamBars(conn *session.Connection, req wire.HistoricalPriceDataRequest, start, end time.Time) {
	span := time.Duration(req.SpanSeconds) * time.Second
	bars, err := q.store.QueryBars(req.Symbol, span, start, end)
	if err != nil {
		conn.Send(wire.Encode(wire.TypeHistoricalPriceDataResponse, wire.EncodeHistoricalPriceDataResponse(wire.HistoricalPriceDataResponse{
			RequestID: req.RequestID, Rejected: 1, RejectText: err.Error(),
		})))
		return
	}
	conn.Send(wire.Encode(wire.TypeHistoricalPriceDataResponse, wire.EncodeHistoricalPriceDataResponse(wire.HistoricalPriceDataResponse{
		RequestID: req.RequestID, RecordSize: int64(len(bars)),
	})))
	for i, bar := range bars {
		final := int64(0)
		if i == len(bars)-1 {
			final = 1
		}
		conn.Send(wire.Encode(wire.TypeHistoricalPriceDataRecord, wire.EncodeHistoricalPriceDataRecord(wire.HistoricalPriceDataRecord{
			RequestID:     req.RequestID,
			StartDateTime: bar.Start.Unix(),
			Open:          bar.Open,
			High:          bar.High,
			Low:           bar.Low,
			Last:          bar.Last,
			Volume:        bar.Volume,
			NumTrades:     int64(bar.NumTrades),
			IsFinal:       final,
		})))
	}
	if len(bars) == 0 {
		conn.Send(wire.Encode(wire.TypeHistoricalPriceDataRecord, wire.EncodeHistoricalPriceDataRecord(wire.HistoricalPriceDataRecord{
			RequestID: req.RequestID, IsFinal: 1,
		})))
	}
}
