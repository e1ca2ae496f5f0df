package treasury

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/use-agent/treasury/cleaner"
	"github.com/use-agent/treasury/llm"
	"github.com/use-agent/treasury/models"
	"github.com/use-agent/treasury/render"
)

// Sampling temperatures per pipeline stage. Selector discovery is a
// classification-like task and runs deterministic; holdings extraction keeps
// a little freedom because disclosure shapes vary by site.
const (
	selectorTemperature   = 0.0
	extractionTemperature = 0.2
)

// Extractor is the structured-extraction collaborator contract the pipeline
// calls. *llm.Client satisfies it.
type Extractor interface {
	ExtractStructured(ctx context.Context, req llm.Request) (json.RawMessage, error)
}

// Response schemas reflected once; the extraction service validates its own
// output against them, so the pipeline treats responses as pre-shaped.
var (
	selectorSchema = llm.SchemaFor[models.SelectorChoice]()
	holdingsSchema = llm.SchemaFor[models.HoldingsRecord]()
)

// Pipeline runs the staged extraction process for one fund. Every invocation
// is independent: no shared mutable state, safe to run concurrently across
// funds.
type Pipeline struct {
	renderer    render.Renderer
	extractor   Extractor
	mdConverter *converter.Converter
}

// NewPipeline wires the pipeline to its collaborators. The markdown
// converter is created once and reused across all runs (goroutine-safe).
func NewPipeline(r render.Renderer, e Extractor) *Pipeline {
	return &Pipeline{
		renderer:    r,
		extractor:   e,
		mdConverter: cleaner.NewMarkdownConverter(),
	}
}

// Run executes the stage sequence for one fund and returns its holdings
// record. Stages are strictly sequential; the first failing stage aborts
// the run with its own error kind:
//
//  1. Initial render      – full-page screenshot + DOM        (RENDER_FAILED)
//  2. Simplify            – strip script/style/svg, pure      (never fails)
//  3. Selector discovery  – AI picks the holdings region      (SELECTOR_DISCOVERY_FAILED)
//  4. Focused render      – cropped screenshot + markup       (RENDER_FAILED)
//  5. Structured extract  – markdown + screenshot → record    (EXTRACTION_FAILED)
//
// Fund-specific action scripts replay before the renders in stages 1 and 4.
func (p *Pipeline) Run(ctx context.Context, fund Fund) (*models.HoldingsRecord, error) {
	// ── 1. Initial render ───────────────────────────────────────────
	slog.Info("pipeline: initial render", "symbol", fund.Symbol, "url", fund.URL)
	page, err := p.renderer.Render(ctx, fund.URL, render.Options{
		FullPage:   true,
		IncludeDOM: true,
		Actions:    fund.InitialActions,
	})
	if err != nil {
		return nil, err
	}

	// ── 2. Simplify DOM ─────────────────────────────────────────────
	simplified := cleaner.SimplifyDOM(page.DOM)
	slog.Info("pipeline: DOM simplified",
		"symbol", fund.Symbol,
		"originalTokens", cleaner.EstimateTokens(page.DOM),
		"simplifiedTokens", cleaner.EstimateTokens(simplified),
	)

	// ── 3. Selector discovery ───────────────────────────────────────
	choice, err := p.discoverSelector(ctx, fund.Symbol, simplified, page.ScreenshotRef)
	if err != nil {
		return nil, err
	}
	slog.Info("pipeline: selector discovered",
		"symbol", fund.Symbol, "selector", choice.Selector, "reason", choice.Reason)

	// ── 4. Focused render ───────────────────────────────────────────
	focused, err := p.renderer.RenderFocused(ctx, fund.URL, choice.Selector, render.Options{
		Actions: fund.InitialActions,
	})
	if err != nil {
		return nil, err
	}

	// ── 5. Structured extraction ────────────────────────────────────
	return p.extractHoldings(ctx, fund, focused)
}

// discoverSelector submits the simplified DOM and the full-page screenshot
// to the extraction service, constrained to the SelectorChoice schema, and
// validates the proposed selector before the pipeline spends a focused
// render on it.
func (p *Pipeline) discoverSelector(ctx context.Context, symbol, simplifiedDOM, screenshotRef string) (*models.SelectorChoice, error) {
	raw, err := p.extractor.ExtractStructured(ctx, llm.Request{
		Prompt:      selectorPrompt(symbol, simplifiedDOM),
		Images:      []string{screenshotRef},
		Schema:      selectorSchema,
		Temperature: selectorTemperature,
	})
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeSelectorDiscovery,
			"selector discovery call failed for "+symbol, err)
	}

	var choice models.SelectorChoice
	if err := json.Unmarshal(raw, &choice); err != nil {
		return nil, models.NewExtractError(models.ErrCodeSelectorDiscovery,
			"malformed selector choice for "+symbol, err)
	}
	if choice.Selector == "" {
		return nil, models.NewExtractError(models.ErrCodeSelectorDiscovery,
			"empty selector for "+symbol, nil)
	}
	if err := cleaner.ValidateSelector(choice.Selector); err != nil {
		return nil, models.NewExtractError(models.ErrCodeSelectorDiscovery,
			fmt.Sprintf("unparseable selector %q for %s", choice.Selector, symbol), err)
	}
	return &choice, nil
}

// extractHoldings converts the matched markup to markdown, assembles the
// extraction prompt and submits it with the focused screenshot, constrained
// to the HoldingsRecord schema.
func (p *Pipeline) extractHoldings(ctx context.Context, fund Fund, focused *models.FocusedSnapshot) (*models.HoldingsRecord, error) {
	markdown, err := cleaner.ToMarkdown(p.mdConverter, focused.MatchedMarkup, fund.URL)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeExtraction,
			"markdown conversion failed for "+fund.Symbol, err)
	}

	raw, err := p.extractor.ExtractStructured(ctx, llm.Request{
		Prompt:      extractionPrompt(fund, markdown),
		Images:      []string{focused.ScreenshotRef},
		Schema:      holdingsSchema,
		Temperature: extractionTemperature,
	})
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeExtraction,
			"holdings extraction call failed for "+fund.Symbol, err)
	}

	var rec models.HoldingsRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, models.NewExtractError(models.ErrCodeExtraction,
			"malformed holdings record for "+fund.Symbol, err)
	}

	// The model occasionally drops identity fields; they are ours, not its.
	rec.Symbol = fund.Symbol
	if rec.Name == "" {
		rec.Name = fund.Name
	}
	rec.SourceURL = fund.URL

	return &rec, nil
}

// selectorPrompt asks for one working, simple CSS selector isolating the
// holdings region visible in the screenshot.
func selectorPrompt(symbol, simplifiedDOM string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Analyze the screenshot and the accompanying simplified HTML DOM for the %s ETF website.
Your goal is to identify a WORKING CSS selector that isolates the main container
(e.g. a <div>, <table> or <section>) displaying the Bitcoin-holdings data.

The selector MUST be effective and as simple as possible. Prefer, in order:
1. An id attribute if a relevant one is available (e.g. #fundHoldingsTable).
2. A single distinctive class name unique to the holdings section (e.g. .bitcoin-data-container).
3. A data-* attribute (e.g. [data-testid="holdings-summary"]).
4. A stable tag and class combination (e.g. table.summary-table).

Avoid: chained pseudo-classes like :nth-child(N), deep descendant combinators,
auto-generated or layout-grid class names, and selectors general enough to match
multiple parts of the page.

The selector must pinpoint the area containing the Bitcoin holdings data as seen
in the screenshot. The HTML below is pre-processed; focus on the structural tags
that best match the visual data block.

Simplified HTML DOM:
`, symbol)
	b.WriteString("```html\n")
	b.WriteString(simplifiedDOM)
	b.WriteString("\n```")
	return b.String()
}

// extractionPrompt combines the focused markdown, fund identity and any
// per-fund special instructions into the holdings-extraction prompt.
func extractionPrompt(fund Fund, markdown string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Analyze the focused screenshot from the %s ETF website and the focused markdown content below.

%s

website_url: %s

Your task: from this focused context, extract the Bitcoin holdings data:
the number of Bitcoin held and its unit, the total net assets if visible,
and the "as of" date of the data. Set data_found only if a Bitcoin quantity
is actually disclosed, and add a short note with any caveats.`,
		fund.Symbol, markdown, fund.URL)

	if fund.SpecialInstructions != "" {
		b.WriteString("\n\nSpecial instructions: ")
		b.WriteString(fund.SpecialInstructions)
	}
	return b.String()
}
