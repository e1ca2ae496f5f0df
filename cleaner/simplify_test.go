package cleaner

import (
	"strings"
	"testing"
)

func TestSimplifyDOM_StripsNoise(t *testing.T) {
	input := `<html><head><style>.x{color:red}</style></head><body>
		<script>trackVisitor();</script>
		<svg viewBox="0 0 10 10"><path d="M0 0"/></svg>
		<table id="holdings"><tr><td>Bitcoin held</td><td>712,000</td></tr></table>
	</body></html>`

	out := SimplifyDOM(input)

	for _, gone := range []string{"<script", "<style", "<svg", "trackVisitor", "viewBox"} {
		if strings.Contains(out, gone) {
			t.Errorf("simplified DOM still contains %q", gone)
		}
	}
	for _, kept := range []string{`id="holdings"`, "Bitcoin held", "712,000"} {
		if !strings.Contains(out, kept) {
			t.Errorf("simplified DOM lost %q", kept)
		}
	}
}

func TestSimplifyDOM_ReturnsBodySubtree(t *testing.T) {
	out := SimplifyDOM(`<html><head><title>Fund</title></head><body><p>data</p></body></html>`)

	if !strings.HasPrefix(out, "<body") {
		t.Errorf("expected body subtree, got: %s", out)
	}
	if strings.Contains(out, "<title>") {
		t.Error("head content should not survive simplification")
	}
}

func TestSimplifyDOM_SparseContentSurvives(t *testing.T) {
	// A nearly-empty data region must not be pruned away.
	input := `<body><div class="figure"><span>1,234.5 BTC</span></div></body>`
	out := SimplifyDOM(input)

	if !strings.Contains(out, "1,234.5 BTC") {
		t.Errorf("sparse data region was lost: %s", out)
	}
}

func TestSimplifyDOM_EmptyInput(t *testing.T) {
	out := SimplifyDOM("")
	// html parsers synthesize an empty body; the call must not error or panic.
	if strings.Contains(out, "<script") {
		t.Errorf("unexpected output for empty input: %s", out)
	}
}
