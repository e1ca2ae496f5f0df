package models

// HoldingsRecord is the canonical unit of output: one fund's Bitcoin
// holdings as disclosed on its website at extraction time.
//
// TotalNetAssets and AsOfDate are deliberately opaque strings: fund sites
// disagree on currency formatting and date layout, so no normalization is
// attempted.
type HoldingsRecord struct {
	// Symbol is the ETF ticker. Required, unique within one run.
	Symbol string `json:"etf_symbol" jsonschema:"description=The ETF ticker symbol"`

	// Name is the full fund name.
	Name string `json:"etf_name" jsonschema:"description=The full ETF name"`

	// SourceURL is the page the data was extracted from.
	SourceURL string `json:"website_url" jsonschema:"description=The canonical fund website URL"`

	// BitcoinQuantity is the number of Bitcoin held. Nil when the page
	// did not disclose a quantity.
	BitcoinQuantity *float64 `json:"bitcoin_quantity" jsonschema:"description=Number of Bitcoin held by the fund"`

	// QuantityUnit is the unit as stated on the page, e.g. "BTC" or "Bitcoin".
	QuantityUnit string `json:"bitcoin_quantity_unit" jsonschema:"description=Unit of the quantity, e.g. BTC"`

	// TotalNetAssets is the total fund value if visible. Free text.
	TotalNetAssets string `json:"total_net_assets,omitempty" jsonschema:"description=Total fund value if visible on the page"`

	// AsOfDate is the date the holdings are reported for. Free text.
	AsOfDate string `json:"as_of_date,omitempty" jsonschema:"description=Date of the holdings data as shown on the page"`

	// DataFound reports whether holdings data was actually extracted.
	DataFound bool `json:"data_found" jsonschema:"description=Whether Bitcoin holdings data was successfully extracted"`

	// Notes carries any additional relevant information, including the
	// terminal error text for placeholder records.
	Notes string `json:"notes,omitempty" jsonschema:"description=Any additional relevant information"`
}

// Complete reports whether the record carries usable holdings data.
// A record with DataFound set but no quantity is treated as incomplete.
func (r *HoldingsRecord) Complete() bool {
	return r.DataFound && r.BitcoinQuantity != nil
}

// SelectorChoice is the selector-discovery stage output: the CSS selector
// the extraction service judged to isolate the holdings region, plus its
// justification. It lives only for the duration of one pipeline run.
type SelectorChoice struct {
	Selector string `json:"selector" jsonschema:"description=The most specific CSS selector for the element containing the holdings information"`
	Reason   string `json:"reason" jsonschema:"description=A brief explanation of why this selector was chosen"`
}

// PageSnapshot is the result of a full-page render.
type PageSnapshot struct {
	// SourceURL is the URL the snapshot was taken from.
	SourceURL string

	// Title is the page title, when the renderer reports one.
	Title string

	// ScreenshotRef addresses the full-page screenshot (https URL or data URI).
	ScreenshotRef string

	// DOM is the rendered page markup. Empty unless requested.
	DOM string
}

// FocusedSnapshot is the result of a focused render: a screenshot cropped
// to the element matched by a selector, plus that element's markup.
// Neither field is ever empty on success.
type FocusedSnapshot struct {
	ScreenshotRef string
	MatchedMarkup string
}

// Action types understood by the renderers.
const (
	ActionWait      = "wait"
	ActionClick     = "click"
	ActionScroll    = "scroll"
	ActionExecuteJS = "execute_js"
)

// Action is a single UI primitive replayed on a page before capture.
// Per-fund action lists are configuration, not code: a fund that hides its
// holdings behind a tab or modal declares the clicks to reveal it.
type Action struct {
	// Type is one of the Action* constants.
	Type string `json:"type"`

	// Selector targets an element for click, scroll-to and selector waits.
	Selector string `json:"selector,omitempty"`

	// Milliseconds is the wait duration for timed waits.
	Milliseconds int `json:"milliseconds,omitempty"`

	// Direction is "up" or "down" for viewport scrolls.
	Direction string `json:"direction,omitempty"`

	// Amount is the number of viewports to scroll.
	Amount int `json:"amount,omitempty"`

	// Code is the script body for execute_js actions.
	Code string `json:"code,omitempty"`
}
