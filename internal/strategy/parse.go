package strategy

import (
	"encoding/json"
	"fmt"
	"strings"

	"kimchi-signal/internal/domain"
)

// ParseResult is either Parsed or Unparsed.
type ParseResult interface {
	isParseResult()
}

// Parsed holds a response that decoded into a strategy record.
type Parsed struct {
	Record domain.StrategyRecord
}

// Unparsed holds a response that was not a JSON strategy object.
type Unparsed struct {
	Raw string
	Err error
}

func (Parsed) isParseResult()   {}
func (Unparsed) isParseResult() {}

// ParseResponse decodes model output. A surrounding markdown code fence is ignored.
func ParseResponse(text string) ParseResult {
	body := stripCodeFence(text)
	if !strings.HasPrefix(body, "{") {
		return Unparsed{Raw: text, Err: fmt.Errorf("response is not a JSON object")}
	}
	var rec domain.StrategyRecord
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return Unparsed{Raw: text, Err: err}
	}
	return Parsed{Record: rec}
}

// RecordFrom turns either outcome into a storable record. Unparsed text becomes the summary.
func RecordFrom(result ParseResult) (domain.StrategyRecord, error) {
	switch r := result.(type) {
	case Parsed:
		return r.Record, nil
	case Unparsed:
		return domain.StrategyRecord{Summary: r.Raw}, nil
	default:
		return domain.StrategyRecord{}, fmt.Errorf("unknown parse result %T", result)
	}
}

func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the info string ("json")
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
