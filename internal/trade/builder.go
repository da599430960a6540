package trade

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"tradejournal/internal/ocr"
)

// Outcome tags how much structure the builder recovered from the response,
// so callers can tell a fully-successful extraction from a degraded one.
type Outcome int

const (
	// Unstructured means the response was not a JSON object, or yielded no
	// structured fields at all
	Unstructured Outcome = iota
	// PartiallyStructured means some structured fields are missing
	PartiallyStructured
	// Structured means every structured field was recovered
	Structured
)

func (o Outcome) String() string {
	switch o {
	case Structured:
		return "structured"
	case PartiallyStructured:
		return "partially-structured"
	default:
		return "unstructured"
	}
}

// BuildRecord assembles a Record from the raw structuring response. It never
// fails: an unparseable response yields a record carrying only the identity,
// source and confidence fields plus a parse-error marker. Every image yields
// a record.
func BuildRecord(response, imagePath string, info ocr.Info, id string, now time.Time) (*Record, Outcome) {
	rec := &Record{
		TradeID:       id,
		ImageSource:   ptr(filepath.Base(imagePath)),
		LoggedAt:      now,
		OCRConfidence: fmt.Sprintf("%.1f%%", info.Confidence),
	}

	body := stripFence(response)
	parsed := gjson.Parse(body)
	if !gjson.Valid(body) || !parsed.IsObject() {
		rec.ParseError = "structuring response is not a JSON object"
		return rec, Unstructured
	}
	rec.Ticker = stringField(parsed, "ticker")
	rec.Timeframe = stringField(parsed, "timeframe")
	rec.EntryPrice = numberField(parsed, "entry_price")
	rec.ExitPrice = numberField(parsed, "exit_price")
	rec.Direction = stringField(parsed, "direction")
	rec.PnL = stringField(parsed, "pnl")
	rec.PnLAmount = amountField(parsed.Get("pnl_amount"))
	rec.DateTime = stringField(parsed, "date_time")
	rec.ReasonOrAnnotations = stringField(parsed, "reason_or_annotations")

	return rec, rec.outcome()
}

func (r *Record) outcome() Outcome {
	present := 0
	if r.Ticker != nil {
		present++
	}
	if r.Timeframe != nil {
		present++
	}
	if r.EntryPrice != nil {
		present++
	}
	if r.ExitPrice != nil {
		present++
	}
	if r.Direction != nil {
		present++
	}
	if r.PnL != nil {
		present++
	}
	if r.PnLAmount != nil {
		present++
	}
	if r.DateTime != nil {
		present++
	}
	if r.ReasonOrAnnotations != nil {
		present++
	}

	switch present {
	case 0:
		return Unstructured
	case 9:
		return Structured
	default:
		return PartiallyStructured
	}
}

// stripFence removes a markdown code fence wrapped around the JSON body
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func stringField(parsed gjson.Result, key string) *string {
	r := parsed.Get(key)
	if r.Type != gjson.String || strings.TrimSpace(r.Str) == "" {
		return nil
	}
	return ptr(r.Str)
}

// numberField accepts a JSON number, or a numeric string the model failed to
// unquote. Anything else is null.
func numberField(parsed gjson.Result, key string) *float64 {
	r := parsed.Get(key)
	switch r.Type {
	case gjson.Number:
		return finite(r.Num)
	case gjson.String:
		if f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64); err == nil {
			return finite(f)
		}
	}
	return nil
}

// amountField normalizes pnl_amount: numbers pass through, display strings
// are cleaned first. A residual parse failure yields null, never an error.
func amountField(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		return finite(r.Num)
	case gjson.String:
		return CleanAmount(r.Str)
	}
	return nil
}

// CleanAmount parses a monetary display string (e.g. "+38.07 USD" or
// "-1,250.00") by stripping everything but digits, decimal point and sign.
// The normalization is idempotent: cleaning an already-clean value yields
// the same number. Returns nil when nothing parseable remains.
func CleanAmount(s string) *float64 {
	s = strings.ReplaceAll(s, ",", "")
	var b strings.Builder
	for _, c := range s {
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' {
			b.WriteRune(c)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return finite(f)
}

// finite guards the invariant that pnl and price fields are always finite
func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func ptr[T any](v T) *T {
	return &v
}
