package treasury

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/treasury/llm"
	"github.com/use-agent/treasury/models"
	"github.com/use-agent/treasury/render"
)

// fakeRenderer implements render.Renderer with canned snapshots. Behaviour
// is keyed by URL so service tests can fail individual funds.
type fakeRenderer struct {
	mu    sync.Mutex
	calls []string

	// delay simulates page render time on every call.
	delay time.Duration

	// failRender maps URLs whose initial render always errors.
	failRender map[string]error

	// failFocused maps URLs whose focused render always errors.
	failFocused map[string]error
}

func (f *fakeRenderer) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeRenderer) Render(ctx context.Context, url string, opts render.Options) (*models.PageSnapshot, error) {
	f.record("render " + url)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.failRender[url]; ok {
		return nil, err
	}
	return &models.PageSnapshot{
		SourceURL:     url,
		Title:         "Fund Page",
		ScreenshotRef: "https://shots.example.com/full.png",
		DOM:           `<html><head><script>x()</script></head><body><table id="holdings"><tr><td>BTC</td></tr></table></body></html>`,
	}, nil
}

func (f *fakeRenderer) RenderFocused(ctx context.Context, url, selector string, opts render.Options) (*models.FocusedSnapshot, error) {
	f.record("focused " + url + " " + selector)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.failFocused[url]; ok {
		return nil, err
	}
	return &models.FocusedSnapshot{
		ScreenshotRef: "https://shots.example.com/focused.png",
		MatchedMarkup: `<table><tr><td>Bitcoin held</td><td>12345.67</td></tr></table>`,
	}, nil
}

// fakeExtractor implements Extractor. Stages are told apart by schema
// identity; holdings responses are keyed by the URL embedded in the prompt.
type fakeExtractor struct {
	mu    sync.Mutex
	calls []string

	// selectorResp overrides the default selector choice JSON.
	selectorResp json.RawMessage

	// selectorErr fails the discovery stage.
	selectorErr error

	// holdingsByURL maps fund URLs to their extraction response.
	holdingsByURL map[string]json.RawMessage

	// holdingsResp is the fallback extraction response.
	holdingsResp json.RawMessage

	// holdingsErr fails the extraction stage.
	holdingsErr error
}

func (f *fakeExtractor) ExtractStructured(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	if req.Schema == selectorSchema {
		f.mu.Lock()
		f.calls = append(f.calls, "selector")
		f.mu.Unlock()
		if f.selectorErr != nil {
			return nil, f.selectorErr
		}
		if f.selectorResp != nil {
			return f.selectorResp, nil
		}
		return json.RawMessage(`{"selector":"#holdings","reason":"table with BTC figures"}`), nil
	}

	f.mu.Lock()
	f.calls = append(f.calls, "extract")
	f.mu.Unlock()
	if f.holdingsErr != nil {
		return nil, f.holdingsErr
	}
	for url, resp := range f.holdingsByURL {
		if strings.Contains(req.Prompt, "website_url: "+url) {
			return resp, nil
		}
	}
	if f.holdingsResp != nil {
		return f.holdingsResp, nil
	}
	return holdingsJSON("", "Fund", 1000, true), nil
}

// holdingsJSON builds an extraction-stage response body.
func holdingsJSON(symbol, name string, qty float64, found bool) json.RawMessage {
	rec := models.HoldingsRecord{
		Symbol:       symbol,
		Name:         name,
		QuantityUnit: "BTC",
		AsOfDate:     "2026-08-21",
		DataFound:    found,
	}
	if found {
		rec.BitcoinQuantity = &qty
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		panic(err)
	}
	return raw
}

func testFund(symbol, url string) Fund {
	return Fund{Symbol: symbol, Name: symbol + " Trust", URL: url}
}

func TestPipelineRun_StageSequence(t *testing.T) {
	fr := &fakeRenderer{}
	fe := &fakeExtractor{}
	p := NewPipeline(fr, fe)

	fund := testFund("IBIT", "https://example.com/ibit")
	rec, err := p.Run(context.Background(), fund)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"render https://example.com/ibit",
		"focused https://example.com/ibit #holdings",
	}, fr.calls)
	assert.Equal(t, []string{"selector", "extract"}, fe.calls)

	assert.Equal(t, "IBIT", rec.Symbol)
	assert.Equal(t, fund.URL, rec.SourceURL)
	require.NotNil(t, rec.BitcoinQuantity)
	assert.True(t, rec.Complete())
}

func TestPipelineRun_RecordIdentityForced(t *testing.T) {
	fr := &fakeRenderer{}
	fe := &fakeExtractor{
		// The model answered with a different ticker and no name.
		holdingsResp: holdingsJSON("WRONG", "", 500, true),
	}
	p := NewPipeline(fr, fe)

	fund := testFund("GBTC", "https://example.com/gbtc")
	rec, err := p.Run(context.Background(), fund)
	require.NoError(t, err)

	assert.Equal(t, "GBTC", rec.Symbol, "roster identity wins over model output")
	assert.Equal(t, "GBTC Trust", rec.Name, "empty model name falls back to roster name")
	assert.Equal(t, fund.URL, rec.SourceURL)
}

func TestPipelineRun_RenderErrorPropagatesUnwrapped(t *testing.T) {
	renderErr := models.NewExtractError(models.ErrCodeRender, "render API returned 502", nil)
	fr := &fakeRenderer{failRender: map[string]error{
		"https://example.com/ibit": renderErr,
	}}
	fe := &fakeExtractor{}
	p := NewPipeline(fr, fe)

	_, err := p.Run(context.Background(), testFund("IBIT", "https://example.com/ibit"))
	require.Error(t, err)
	assert.Same(t, error(renderErr), err, "stage 1 errors pass through without re-wrapping")
	assert.Empty(t, fe.calls, "no extraction call is made after a failed render")
}

func TestPipelineRun_SelectorDiscoveryFailures(t *testing.T) {
	tests := []struct {
		name string
		fe   *fakeExtractor
	}{
		{"call error", &fakeExtractor{selectorErr: models.NewExtractError(models.ErrCodeExtraction, "no candidates", nil)}},
		{"malformed JSON", &fakeExtractor{selectorResp: json.RawMessage(`not json`)}},
		{"empty selector", &fakeExtractor{selectorResp: json.RawMessage(`{"selector":"","reason":"none"}`)}},
		{"unparseable selector", &fakeExtractor{selectorResp: json.RawMessage(`{"selector":"div[","reason":"broken"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRenderer{}
			p := NewPipeline(fr, tt.fe)

			_, err := p.Run(context.Background(), testFund("HODL", "https://example.com/hodl"))
			require.Error(t, err)
			assert.True(t, models.HasCode(err, models.ErrCodeSelectorDiscovery), "got: %v", err)
			assert.Len(t, fr.calls, 1, "no focused render is spent on a failed discovery")
		})
	}
}

func TestPipelineRun_FocusedRenderErrorPropagates(t *testing.T) {
	focusedErr := models.NewExtractError(models.ErrCodeRender, "no markup for selector", nil)
	fr := &fakeRenderer{failFocused: map[string]error{
		"https://example.com/bitb": focusedErr,
	}}
	p := NewPipeline(fr, &fakeExtractor{})

	_, err := p.Run(context.Background(), testFund("BITB", "https://example.com/bitb"))
	require.Error(t, err)
	assert.Same(t, error(focusedErr), err)
}

func TestPipelineRun_MalformedHoldingsResponse(t *testing.T) {
	fe := &fakeExtractor{holdingsResp: json.RawMessage(`[1,2,3]`)}
	p := NewPipeline(&fakeRenderer{}, fe)

	_, err := p.Run(context.Background(), testFund("ARKB", "https://example.com/arkb"))
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.ErrCodeExtraction), "got: %v", err)
}

func TestPipelineRun_ActionsForwardedToBothRenders(t *testing.T) {
	var initialOpts, focusedOpts render.Options
	fr := &capturingRenderer{initial: &initialOpts, focused: &focusedOpts}
	p := NewPipeline(fr, &fakeExtractor{})

	fund := testFund("BTCW", "https://example.com/btcw")
	fund.InitialActions = []models.Action{
		{Type: models.ActionScroll, Direction: "down", Amount: 7},
		{Type: models.ActionClick, Selector: "a.fund-modal-trigger"},
	}

	_, err := p.Run(context.Background(), fund)
	require.NoError(t, err)

	assert.True(t, initialOpts.FullPage)
	assert.True(t, initialOpts.IncludeDOM)
	assert.Equal(t, fund.InitialActions, initialOpts.Actions)
	assert.Equal(t, fund.InitialActions, focusedOpts.Actions,
		"the focused render replays the same reveal script")
}

// capturingRenderer records the Options each mode received.
type capturingRenderer struct {
	inner   fakeRenderer
	initial *render.Options
	focused *render.Options
}

func (c *capturingRenderer) Render(ctx context.Context, url string, opts render.Options) (*models.PageSnapshot, error) {
	*c.initial = opts
	return c.inner.Render(ctx, url, opts)
}

func (c *capturingRenderer) RenderFocused(ctx context.Context, url, selector string, opts render.Options) (*models.FocusedSnapshot, error) {
	*c.focused = opts
	return c.inner.RenderFocused(ctx, url, selector, opts)
}
