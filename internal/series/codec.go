package series

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"kimchi-signal/internal/domain"
)

// MarshalDescending encodes a date-keyed map as a JSON object whose keys appear
// most recent first.
func MarshalDescending[V any](m map[string]V) ([]byte, error) {
	dates := make([]string, 0, len(m))
	for d := range m {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range dates {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m[d])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", d, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeSeries reads a stored series. Values may be plain numbers or candle-like
// objects carrying close, price or trade_price; nulls are dropped.
func DecodeSeries(data []byte) (domain.TimeSeries, error) {
	out := make(domain.TimeSeries)
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}
	for d, v := range raw {
		val, ok, err := decodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("decode series value for %s: %w", d, err)
		}
		if ok {
			out[d] = val
		}
	}
	return out, nil
}

func decodeValue(raw json.RawMessage) (float64, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return 0, false, nil
	}
	if trimmed[0] != '{' {
		var f float64
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return 0, false, err
		}
		return f, true, nil
	}

	var obj struct {
		Close      *float64 `json:"close"`
		Price      *float64 `json:"price"`
		TradePrice *float64 `json:"trade_price"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return 0, false, err
	}
	switch {
	case obj.Close != nil:
		return *obj.Close, true, nil
	case obj.Price != nil:
		return *obj.Price, true, nil
	case obj.TradePrice != nil:
		return *obj.TradePrice, true, nil
	}
	return 0, false, nil
}
