package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestExtractError_ErrorString(t *testing.T) {
	e := NewExtractError(ErrCodeRender, "render API returned 502", nil)
	want := "RENDER_FAILED: render API returned 502"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	wrapped := NewExtractError(ErrCodeExtraction, "call failed", errors.New("boom"))
	if got := wrapped.Error(); got != "EXTRACTION_FAILED: call failed: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestExtractError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	e := NewExtractError(ErrCodeRender, "render request failed", cause)

	if !errors.Is(e, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestHasCode_WalksWrapperChain(t *testing.T) {
	auth := NewExtractError(ErrCodeLLMAuthFailure, "invalid API key", nil)
	stage := NewExtractError(ErrCodeSelectorDiscovery, "selector discovery call failed", auth)
	outer := fmt.Errorf("fund IBIT: %w", stage)

	if !HasCode(outer, ErrCodeLLMAuthFailure) {
		t.Error("buried auth failure not found")
	}
	if !HasCode(outer, ErrCodeSelectorDiscovery) {
		t.Error("top-level stage code not found")
	}
	if HasCode(outer, ErrCodeRender) {
		t.Error("found a code that is not in the chain")
	}
	if HasCode(nil, ErrCodeRender) {
		t.Error("nil error cannot carry a code")
	}
	if HasCode(errors.New("plain"), ErrCodeRender) {
		t.Error("plain errors carry no codes")
	}
}

func TestToDetail(t *testing.T) {
	e := NewExtractError(ErrCodeValidation, "missing bitcoin quantity", errors.New("internal detail"))
	d := e.ToDetail()

	if d.Code != ErrCodeValidation {
		t.Errorf("detail code = %q", d.Code)
	}
	if d.Message != "missing bitcoin quantity" {
		t.Errorf("detail message = %q", d.Message)
	}
}
