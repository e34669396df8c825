package chart

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"kimchi-signal/internal/domain"
)

func TestRenderPremiumHTML(t *testing.T) {
	in := buildTestInput(30)
	delete(in.Thresholds, "2024-01-10")

	var buf bytes.Buffer
	if err := NewRenderer().RenderPremiumHTML(&buf, in); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	page := buf.String()
	for _, want := range []string{"echarts", "Kimchi Premium", "2024-01-01", "2024-01-30", "Premium", "Sell"} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestRenderPremiumHTMLRequiresHistory(t *testing.T) {
	var buf bytes.Buffer
	err := NewRenderer().RenderPremiumHTML(&buf, Input{Premium: domain.TimeSeries{"2024-01-01": 1}})
	if err == nil {
		t.Fatal("expected error for a single point")
	}
}

func TestLineDataLeavesGaps(t *testing.T) {
	data := lineData([]float64{1.234, math.NaN()})
	if data[0].Value != 1.23 {
		t.Fatalf("expected rounded value, got %v", data[0].Value)
	}
	if data[1].Value != nil {
		t.Fatalf("expected gap, got %v", data[1].Value)
	}
}
