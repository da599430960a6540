package trade

import "time"

// Record is the validated result of processing one trading-chart screenshot.
// Every structured field is optional: a record built from a completely failed
// structuring response is still valid, with only the identity and confidence
// fields populated.
type Record struct {
	TradeID             string    `json:"trade_id"`
	Ticker              *string   `json:"ticker"`
	Timeframe           *string   `json:"timeframe"`
	EntryPrice          *float64  `json:"entry_price"`
	ExitPrice           *float64  `json:"exit_price"`
	Direction           *string   `json:"direction"`
	PnL                 *string   `json:"pnl"`
	PnLAmount           *float64  `json:"pnl_amount"`
	DateTime            *string   `json:"date_time"`
	ReasonOrAnnotations *string   `json:"reason_or_annotations"`
	ImageSource         *string   `json:"image_source"`
	LoggedAt            time.Time `json:"logged_at"`
	OCRConfidence       string    `json:"ocr_confidence"`
	ParseError          string    `json:"parse_error,omitempty"`
}

// DailySummary is the per-calendar-day rollup of all records logged that day.
// Totals are recomputed from the full trade list on every append, so they are
// always consistent with it.
type DailySummary struct {
	Date        string    `json:"date"`
	Trades      []Record  `json:"trades"`
	TotalTrades int       `json:"total_trades"`
	TotalPnL    float64   `json:"total_pnl"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
