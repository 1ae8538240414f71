package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// IndodaxTicker holds the numeric fields of an Indodax ticker response. All
// values arrive as stringified decimals; absent fields stay "".
type IndodaxTicker struct {
	High   string `json:"high"`
	Low    string `json:"low"`
	Last   string `json:"last"`
	VolIDR string `json:"vol_idr"`
	Volume string `json:"volume"`
	Buy    string `json:"buy"`
	Sell   string `json:"sell"`
}

// IndodaxTickerResponse is the envelope returned by the /ticker endpoint.
// A nil Ticker means the response was malformed.
type IndodaxTickerResponse struct {
	Ticker *IndodaxTicker `json:"ticker"`
}

// IndodaxDepthResponse is the raw /depth payload. The sides are kept raw so
// each can be parsed and degraded independently.
type IndodaxDepthResponse struct {
	Buy  json.RawMessage `json:"buy"`
	Sell json.RawMessage `json:"sell"`
}

// Level is one order book price level as a [price, amount] pair. Indodax
// depth arrays mix raw JSON numbers and stringified decimals, so both forms
// unmarshal; levels always marshal back as plain numbers.
type Level [2]float64

// Price returns the level's price.
func (l Level) Price() float64 { return l[0] }

// Amount returns the level's amount.
func (l Level) Amount() float64 { return l[1] }

func (l *Level) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("level needs price and amount, got %d elements", len(raw))
	}
	for i := 0; i < 2; i++ {
		v, err := coerceFloat(raw[i])
		if err != nil {
			return fmt.Errorf("level element %d: %w", i, err)
		}
		l[i] = v
	}
	return nil
}

func coerceFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}

// ParseLevels decodes one depth side. A missing side (nil or JSON null) and a
// side that is not a sequence of levels both yield an error so the caller can
// fall back to an empty book for that side only.
func ParseLevels(raw json.RawMessage) ([]Level, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("side is missing")
	}
	var levels []Level
	if err := json.Unmarshal(raw, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}
