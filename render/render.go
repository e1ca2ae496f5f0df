// Package render provides the page-rendering collaborators: given a URL and
// an optional action script, they return a rendered page's screenshot and
// optionally its DOM, or, in focused mode, a cropped screenshot of one
// selector-addressed region plus that region's markup.
package render

import (
	"context"

	"github.com/use-agent/treasury/models"
)

// Options carries the optional parameters for a render call.
type Options struct {
	// FullPage requests a full-page screenshot instead of the viewport.
	FullPage bool

	// IncludeDOM requests the rendered page markup alongside the screenshot.
	IncludeDOM bool

	// Actions are UI primitives replayed on the page before capture.
	Actions []models.Action
}

// Renderer is the rendering-service contract the pipeline calls.
// Implementations retry transport failures internally; an error from either
// method is terminal for the call.
type Renderer interface {
	// Render navigates to url, replays opts.Actions, and captures the page.
	// Fails if the screenshot reference is missing or malformed.
	Render(ctx context.Context, url string, opts Options) (*models.PageSnapshot, error)

	// RenderFocused navigates to url, replays opts.Actions, scrolls to the
	// element matched by selector, and captures a cropped screenshot plus
	// the element's markup. Fails if either is empty after the call.
	RenderFocused(ctx context.Context, url, selector string, opts Options) (*models.FocusedSnapshot, error)
}
