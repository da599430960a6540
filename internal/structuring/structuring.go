package structuring

import "fmt"

// Structurer defines the interface for turning raw OCR text into a
// structured-trade response. The response is returned verbatim; parsing and
// validation happen downstream in the record builder.
type Structurer interface {
	// StructureTrade sends the raw OCR text to the model and returns its raw
	// textual response, which is expected (but not guaranteed) to be JSON
	StructureTrade(rawText, imageSource string) (string, error)
	// Close closes the client and releases resources
	Close() error
}

// tradePromptFormat is the shared prompt used by all providers. The model is
// told to emit only JSON with a fixed key set and to split the monetary PnL
// display string from its bare numeric value.
const tradePromptFormat = `You are an expert trading analyst. Given OCR text from a trading screenshot, output ONLY valid JSON with the following keys:

ticker, timeframe, entry_price, exit_price, direction, pnl, pnl_amount, date_time, reason_or_annotations

IMPORTANT: For pnl_amount, extract only the numeric value (e.g., if you see "+38.07 USD", output 38.07)

OCR text from %s:
"""%s"""

Example output:
{
  "ticker": "SOLUSD",
  "timeframe": "5m",
  "entry_price": 150.25,
  "exit_price": 151.50,
  "direction": "long",
  "pnl": "+38.07 USD",
  "pnl_amount": 38.07,
  "date_time": "2025-07-06 14:20:58",
  "reason_or_annotations": "Quick scalp trade"
}

Do not include any text before or after the JSON.
Do not use markdown code blocks.`

func buildPrompt(rawText, imageSource string) string {
	return fmt.Sprintf(tradePromptFormat, imageSource, rawText)
}
