package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kimchi-signal/internal/domain"
)

// LLM turns a rendered prompt into free text.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Builder struct {
	llm LLM
	now func() time.Time
}

func NewBuilder(llm LLM, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{llm: llm, now: now}
}

// Outcome reports what BuildAndAppend did. History is the list to persist; it is
// the input unchanged when Skipped.
type Outcome struct {
	History []domain.StrategyRecord
	Record  *domain.StrategyRecord
	Result  ParseResult
	Today   string
	Skipped bool
}

// BuildAndAppend asks the model for today's record and puts it at the head of
// history. The analysis date is always today in the canonical zone. When the head
// is already dated today the call is a no-op unless force is set.
func (b *Builder) BuildAndAppend(ctx context.Context, history []domain.StrategyRecord, in PromptInputs, force bool) (Outcome, error) {
	today := domain.Today(b.now())

	if !force && len(history) > 0 && history[0].AnalysisDate == today {
		return Outcome{History: history, Today: today, Skipped: true}, nil
	}
	if b.llm == nil {
		return Outcome{}, errors.New("llm not configured")
	}

	prompt, err := RenderPrompt(in)
	if err != nil {
		return Outcome{}, err
	}

	text, err := b.llm.Complete(ctx, prompt)
	if err != nil {
		return Outcome{}, fmt.Errorf("request strategy: %w", err)
	}

	result := ParseResponse(text)
	rec, err := RecordFrom(result)
	if err != nil {
		return Outcome{}, err
	}
	rec.AnalysisDate = today

	next := make([]domain.StrategyRecord, 0, len(history)+1)
	next = append(next, rec)
	next = append(next, history...)

	return Outcome{
		History: Dedup(next),
		Record:  &rec,
		Result:  result,
		Today:   today,
	}, nil
}

// Dedup keeps the first record per analysis date, preserving order. Records
// without a date are dropped.
func Dedup(history []domain.StrategyRecord) []domain.StrategyRecord {
	seen := make(map[string]struct{}, len(history))
	out := make([]domain.StrategyRecord, 0, len(history))
	for _, r := range history {
		if r.AnalysisDate == "" {
			continue
		}
		if _, ok := seen[r.AnalysisDate]; ok {
			continue
		}
		seen[r.AnalysisDate] = struct{}{}
		out = append(out, r)
	}
	return out
}

// LatestByDate returns the record with the greatest analysis date.
func LatestByDate(history []domain.StrategyRecord) (domain.StrategyRecord, bool) {
	var best domain.StrategyRecord
	found := false
	for _, r := range history {
		if r.AnalysisDate == "" {
			continue
		}
		if !found || r.AnalysisDate > best.AnalysisDate {
			best, found = r, true
		}
	}
	return best, found
}
