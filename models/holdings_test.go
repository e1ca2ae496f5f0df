package models

import (
	"encoding/json"
	"testing"
)

func TestHoldingsRecord_Complete(t *testing.T) {
	qty := 712000.0

	tests := []struct {
		name string
		rec  HoldingsRecord
		want bool
	}{
		{"found with quantity", HoldingsRecord{DataFound: true, BitcoinQuantity: &qty}, true},
		{"found without quantity", HoldingsRecord{DataFound: true}, false},
		{"quantity without found", HoldingsRecord{BitcoinQuantity: &qty}, false},
		{"neither", HoldingsRecord{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Complete(); got != tt.want {
				t.Errorf("Complete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHoldingsRecord_NullQuantityInJSON(t *testing.T) {
	// A page that discloses nothing must serialise with an explicit null,
	// not a zero, so consumers can tell "none held" from "not disclosed".
	raw, err := json.Marshal(HoldingsRecord{Symbol: "BTCO", DataFound: false})
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	v, present := m["bitcoin_quantity"]
	if !present || v != nil {
		t.Errorf("bitcoin_quantity = %v (present=%v), want explicit null", v, present)
	}
}
