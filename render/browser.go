package render

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/treasury/config"
	"github.com/use-agent/treasury/models"
	"github.com/ysmood/gson"
)

// Browser is a local Renderer backed by a headless Chrome instance via Rod.
// It produces the same snapshots as the remote renderer, with screenshots
// carried as data URIs instead of hosted URLs. Safe for concurrent use.
type Browser struct {
	browser  *rod.Browser
	pagePool rod.Pool[rod.Page]
	cfg      config.BrowserConfig
}

// NewBrowser launches a headless browser and initialises the page pool.
func NewBrowser(cfg config.BrowserConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	// Fund sites sit behind aggressive bot detection; hide the obvious
	// automation signals before the first navigation.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewExtractError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	return &Browser{
		browser:  browser,
		pagePool: rod.NewPagePool(cfg.MaxPages),
		cfg:      cfg,
	}, nil
}

// Close drains the page pool and kills the browser process.
func (b *Browser) Close() {
	b.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	b.browser.MustClose()
}

// Render implements Renderer: navigate, replay actions, capture a screenshot
// and optionally the DOM.
func (b *Browser) Render(ctx context.Context, target string, opts Options) (*models.PageSnapshot, error) {
	page, cleanup, err := b.preparePage(ctx, target, opts.Actions)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	p := page.Context(ctx)

	shot, err := p.Screenshot(opts.FullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeRender, "screenshot capture failed", err)
	}

	snap := &models.PageSnapshot{
		SourceURL:     target,
		Title:         evalStringOrEmpty(p, `() => document.title`),
		ScreenshotRef: pngDataURI(shot),
	}

	if opts.IncludeDOM {
		dom, err := p.HTML()
		if err != nil {
			return nil, models.NewExtractError(models.ErrCodeRender, "failed to extract page HTML", err)
		}
		snap.DOM = dom
	}
	return snap, nil
}

// RenderFocused implements Renderer: navigate, replay actions, scroll to the
// selector's first match and capture that element's screenshot and markup.
func (b *Browser) RenderFocused(ctx context.Context, target, selector string, opts Options) (*models.FocusedSnapshot, error) {
	page, cleanup, err := b.preparePage(ctx, target, opts.Actions)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	p := page.Context(ctx)

	el, err := p.Element(selector)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeRender,
			"selector matched no element: "+selector, err)
	}
	if err := el.ScrollIntoView(); err != nil {
		slog.Debug("scroll into view failed, capturing anyway", "selector", selector, "error", err)
	}

	markup, err := el.HTML()
	if err != nil || markup == "" {
		return nil, models.NewExtractError(models.ErrCodeRender,
			"focused render returned no markup for selector "+selector, err)
	}

	shot, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeRender, "element screenshot failed", err)
	}

	return &models.FocusedSnapshot{
		ScreenshotRef: pngDataURI(shot),
		MatchedMarkup: markup,
	}, nil
}

// preparePage acquires a pooled page, installs stealth and a plausible
// Referer, navigates, waits for the DOM to settle and replays the action
// script. The returned cleanup resets the page and returns it to the pool;
// it uses the original page reference so cleanup succeeds even after the
// request context has expired.
func (b *Browser) preparePage(ctx context.Context, target string, actions []models.Action) (*rod.Page, func(), error) {
	page, err := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, nil, models.NewExtractError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}

	cleanup := func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pagePool.Put(page)
	}

	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}

	if u, parseErr := url.Parse(target); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{
				"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
			},
		}.Call(page)
	}

	p := page.Context(ctx)

	if err := p.Navigate(target); err != nil {
		cleanup()
		return nil, nil, models.NewExtractError(models.ErrCodeRender, "navigation to target URL failed", err)
	}

	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}

	if len(actions) > 0 {
		if err := replayActions(ctx, page, actions); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	return page, cleanup, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func pngDataURI(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}
