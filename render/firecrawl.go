package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/use-agent/treasury/config"
	"github.com/use-agent/treasury/models"
)

// Firecrawl is a client for a Firecrawl-style rendering API.
// It uses net/http directly and retries transport and format failures with
// a fixed wait before giving up.
type Firecrawl struct {
	cfg        config.RenderConfig
	httpClient *http.Client
}

// NewFirecrawl creates a remote renderer from config.
// Pass nil to use a default http.Client with the configured request timeout.
func NewFirecrawl(cfg config.RenderConfig, httpClient *http.Client) *Firecrawl {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Firecrawl{cfg: cfg, httpClient: httpClient}
}

// scrapeResponse is the subset of the rendering API response we consume.
type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Metadata struct {
			SourceURL string          `json:"sourceURL"`
			Title     json.RawMessage `json:"title"`
		} `json:"metadata"`
		Screenshot string `json:"screenshot"`
		RawHTML    string `json:"rawHtml"`
		Actions    struct {
			Screenshots []string `json:"screenshots"`
			Scrapes     []struct {
				HTML string `json:"html"`
			} `json:"scrapes"`
		} `json:"actions"`
	} `json:"data"`
}

// Render implements Renderer for the standard and DOM modes.
func (f *Firecrawl) Render(ctx context.Context, url string, opts Options) (*models.PageSnapshot, error) {
	formats := []string{"screenshot"}
	if opts.FullPage {
		formats = []string{"screenshot@fullPage"}
	}
	if opts.IncludeDOM {
		formats = append(formats, "rawHtml")
	}

	payload := f.basePayload(url)
	payload["formats"] = formats
	if len(opts.Actions) > 0 {
		payload["actions"] = toWireActions(opts.Actions)
	}

	return retryRender(ctx, f.cfg, func() (*models.PageSnapshot, error) {
		resp, err := f.call(ctx, "v1/scrape", payload)
		if err != nil {
			return nil, err
		}

		if resp.Data.Screenshot == "" || !strings.HasPrefix(resp.Data.Screenshot, "https://") {
			return nil, models.NewExtractError(models.ErrCodeRender,
				fmt.Sprintf("invalid screenshot reference: %q", resp.Data.Screenshot), nil)
		}

		snap := &models.PageSnapshot{
			SourceURL:     resp.Data.Metadata.SourceURL,
			Title:         decodeTitle(resp.Data.Metadata.Title),
			ScreenshotRef: resp.Data.Screenshot,
		}
		if snap.SourceURL == "" {
			snap.SourceURL = url
		}

		if opts.IncludeDOM {
			if resp.Data.RawHTML == "" {
				return nil, models.NewExtractError(models.ErrCodeRender,
					"requested DOM but response carried none", nil)
			}
			snap.DOM = resp.Data.RawHTML
		}
		return snap, nil
	})
}

// RenderFocused implements Renderer for the focused mode: the action script
// is extended with a wait, a scroll to the selector, a viewport screenshot
// and a scoped scrape, all in one rendering call.
func (f *Firecrawl) RenderFocused(ctx context.Context, url, selector string, opts Options) (*models.FocusedSnapshot, error) {
	actions := toWireActions(opts.Actions)
	actions = append(actions,
		map[string]any{"type": "wait", "milliseconds": 3000},
		map[string]any{"type": "scroll", "selector": selector},
		map[string]any{"type": "screenshot"},
		map[string]any{"type": "scrape", "selector": selector},
	)

	payload := f.basePayload(url)
	payload["formats"] = []string{}
	payload["actions"] = actions

	return retryRender(ctx, f.cfg, func() (*models.FocusedSnapshot, error) {
		resp, err := f.call(ctx, "v1/scrape", payload)
		if err != nil {
			return nil, err
		}

		a := resp.Data.Actions
		if len(a.Screenshots) == 0 || a.Screenshots[0] == "" || len(a.Scrapes) == 0 || a.Scrapes[0].HTML == "" {
			return nil, models.NewExtractError(models.ErrCodeRender,
				"focused render returned no screenshot or markup for selector "+selector, nil)
		}

		return &models.FocusedSnapshot{
			ScreenshotRef: a.Screenshots[0],
			MatchedMarkup: a.Scrapes[0].HTML,
		}, nil
	})
}

// basePayload returns the default scrape payload shared by both modes.
func (f *Firecrawl) basePayload(url string) map[string]any {
	return map[string]any{
		"url":                 url,
		"timeout":             f.cfg.PageTimeout.Milliseconds(),
		"onlyMainContent":     false,
		"skipTlsVerification": true,
	}
}

// call POSTs a payload to the rendering API and decodes the response.
func (f *Firecrawl) call(ctx context.Context, path string, payload map[string]any) (*scrapeResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, backoff.Permanent(models.NewExtractError(models.ErrCodeInternal, "marshal render payload", err))
	}

	endpoint := strings.TrimRight(f.cfg.BaseURL, "/") + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(models.NewExtractError(models.ErrCodeInternal, "create render request", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeRender, "render request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeRender, "read render response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, models.NewExtractError(models.ErrCodeRender,
			fmt.Sprintf("render API returned %d: %s", resp.StatusCode, truncate(string(respBody), 200)), nil)
	}

	var sr scrapeResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return nil, models.NewExtractError(models.ErrCodeRender, "parse render response", err)
	}
	return &sr, nil
}

// retryRender wraps one render operation with the transport retry policy:
// fixed wait, bounded attempts, format errors retried the same as transport
// errors. The last error is returned unmodified.
func retryRender[T any](ctx context.Context, cfg config.RenderConfig, op func() (T, error)) (T, error) {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(cfg.RetryWait)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.Warn("render call failed, retrying", "error", err, "wait", wait)
		}),
	)
}

// toWireActions translates the configured action list into the rendering
// API's action objects. Scrolls with Amount > 1 are expanded into repeated
// single-viewport scrolls because the API has no repeat parameter.
func toWireActions(actions []models.Action) []map[string]any {
	wire := make([]map[string]any, 0, len(actions))
	for _, a := range actions {
		switch a.Type {
		case models.ActionWait:
			wire = append(wire, map[string]any{"type": "wait", "milliseconds": a.Milliseconds})
		case models.ActionClick:
			wire = append(wire, map[string]any{"type": "click", "selector": a.Selector})
		case models.ActionScroll:
			n := a.Amount
			if n <= 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				if a.Selector != "" {
					wire = append(wire, map[string]any{"type": "scroll", "selector": a.Selector})
				} else {
					wire = append(wire, map[string]any{"type": "scroll", "direction": scrollDirection(a.Direction)})
				}
			}
		case models.ActionExecuteJS:
			wire = append(wire, map[string]any{"type": "executeJavascript", "script": a.Code})
		}
	}
	return wire
}

func scrollDirection(d string) string {
	if d == "up" {
		return "up"
	}
	return "down"
}

// decodeTitle tolerates the rendering API's occasional list-typed title.
func decodeTitle(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
