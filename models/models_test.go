package models

import (
	"encoding/json"
	"testing"
)

func TestLevelUnmarshalMixedForms(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  Level
	}{
		{"numbers", `[1000000, 0.5]`, Level{1000000, 0.5}},
		{"strings", `["1000000", "0.5"]`, Level{1000000, 0.5}},
		{"mixed", `[1000000, "0.5"]`, Level{1000000, 0.5}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var l Level
			if err := json.Unmarshal([]byte(c.input), &l); err != nil {
				t.Fatalf("unmarshal %s: %v", c.input, err)
			}
			if l != c.want {
				t.Errorf("got %v, want %v", l, c.want)
			}
		})
	}
}

func TestLevelUnmarshalRejectsBadShapes(t *testing.T) {
	for _, input := range []string{`[1000000]`, `"1000000"`, `[true, false]`, `["abc", "1"]`} {
		var l Level
		if err := json.Unmarshal([]byte(input), &l); err == nil {
			t.Errorf("expected error for %s", input)
		}
	}
}

func TestParseLevels(t *testing.T) {
	levels, err := ParseLevels(json.RawMessage(`[[100, "2"], ["99", 1]]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
	if levels[0].Price() != 100 || levels[0].Amount() != 2 {
		t.Errorf("unexpected first level: %v", levels[0])
	}

	if _, err := ParseLevels(nil); err == nil {
		t.Error("expected error for missing side")
	}
	if _, err := ParseLevels(json.RawMessage(`null`)); err == nil {
		t.Error("expected error for null side")
	}
	if _, err := ParseLevels(json.RawMessage(`{"a":1}`)); err == nil {
		t.Error("expected error for non-sequence side")
	}
}

func TestTickerUpdateWireFormat(t *testing.T) {
	upd := TickerUpdate{
		Symbol:           "BTC/IDR",
		Price:            110,
		HighPrice:        120,
		LowPrice:         100,
		PercentageChange: "10.00",
		Volume24h:        5000,
		OrderBook: OrderBook{
			BuyOrders:  []Level{{109, 1}},
			SellOrders: []Level{},
		},
		Timestamp: "2025-01-01T00:00:00Z",
	}
	data, err := json.Marshal(upd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"symbol", "price", "high_price", "low_price", "percentage_change", "volume_24h", "order_book", "timestamp"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing field %q in wire payload", key)
		}
	}
	book := decoded["order_book"].(map[string]interface{})
	if sells, ok := book["sell_orders"].([]interface{}); !ok || len(sells) != 0 {
		t.Errorf("empty sell side must serialize as [], got %v", book["sell_orders"])
	}
	if decoded["percentage_change"] != "10.00" {
		t.Errorf("percentage_change must be a string, got %v", decoded["percentage_change"])
	}
}
