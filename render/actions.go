package render

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/treasury/models"
)

// actionTimeout is the per-action deadline.
const actionTimeout = 20 * time.Second

// replayActions runs the fund's ordered action list on the page. If any
// action fails, it returns an error describing which action failed and how
// many completed before it.
func replayActions(ctx context.Context, page *rod.Page, actions []models.Action) error {
	for i, action := range actions {
		if err := replayAction(ctx, page, action); err != nil {
			return models.NewExtractError(
				models.ErrCodeRender,
				fmt.Sprintf("action %d (%s) failed after %d completed: %v", i, action.Type, i, err),
				err,
			)
		}
	}
	return nil
}

// replayAction dispatches a single action with its own timeout.
func replayAction(ctx context.Context, page *rod.Page, action models.Action) error {
	actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	p := page.Context(actionCtx)

	switch action.Type {
	case models.ActionWait:
		return replayWait(p, action)
	case models.ActionClick:
		return replayClick(p, action)
	case models.ActionScroll:
		return replayScroll(p, action)
	case models.ActionExecuteJS:
		return replayJS(p, action)
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}

// replayWait either sleeps for a duration or waits for a CSS selector to appear.
func replayWait(p *rod.Page, action models.Action) error {
	if action.Selector != "" {
		return p.WaitElementsMoreThan(action.Selector, 0)
	}
	if action.Milliseconds > 0 {
		d := time.Duration(action.Milliseconds) * time.Millisecond
		select {
		case <-time.After(d):
			return nil
		case <-p.GetContext().Done():
			return p.GetContext().Err()
		}
	}
	return nil
}

// replayClick finds the element matching the selector and clicks it.
func replayClick(p *rod.Page, action models.Action) error {
	if action.Selector == "" {
		return fmt.Errorf("click action requires a selector")
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// replayScroll scrolls the page up or down by the specified number of
// viewports, either towards a selector or blind.
func replayScroll(p *rod.Page, action models.Action) error {
	if action.Selector != "" {
		el, err := p.Element(action.Selector)
		if err != nil {
			return fmt.Errorf("scroll target %q not found: %w", action.Selector, err)
		}
		return el.ScrollIntoView()
	}

	amount := action.Amount
	if amount <= 0 {
		amount = 1
	}

	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return fmt.Errorf("failed to get viewport height: %w", err)
	}
	viewportHeight := res.Value.Int()

	for i := 0; i < amount; i++ {
		delta := viewportHeight
		if action.Direction == "up" {
			delta = -viewportHeight
		}
		if err := p.Mouse.Scroll(0, float64(delta), 0); err != nil {
			return fmt.Errorf("scroll step %d failed: %w", i, err)
		}
		// Brief pause between steps so lazy-loaded content can trigger.
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

// replayJS evaluates the action's script in the page context.
func replayJS(p *rod.Page, action models.Action) error {
	if action.Code == "" {
		return fmt.Errorf("execute_js action requires code")
	}
	_, err := p.Eval(action.Code)
	return err
}
