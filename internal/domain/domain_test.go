package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimeSeriesDatesAndLatest(t *testing.T) {
	ts := TimeSeries{"2024-01-03": 3, "2024-01-01": 1, "2024-01-02": 2}
	dates := ts.Dates()
	if len(dates) != 3 || dates[0] != "2024-01-01" || dates[2] != "2024-01-03" {
		t.Fatalf("unexpected order: %+v", dates)
	}
	d, v, ok := ts.Latest()
	if !ok || d != "2024-01-03" || v != 3 {
		t.Fatalf("unexpected latest: %s %v %v", d, v, ok)
	}
	if _, _, ok := (TimeSeries{}).Latest(); ok {
		t.Fatal("expected no latest for empty series")
	}
	if got := ts.Since("2024-01-02"); len(got) != 2 {
		t.Fatalf("expected 2 entries since 01-02, got %+v", got)
	}
}

func TestThresholdRecordCrossed(t *testing.T) {
	if (ThresholdRecord{BuyThreshold: 0.5, SellThreshold: 2.5}).Crossed() {
		t.Fatal("normal band reported as crossed")
	}
	if !(ThresholdRecord{BuyThreshold: 2.5, SellThreshold: 2.5}).Crossed() {
		t.Fatal("equal band should be crossed")
	}
}

func TestStrategyRecordLenientDecode(t *testing.T) {
	raw := `{"analysis_date":"2024-01-02","buy_price":"1,380.5","sell_price":1420,"expected_return":"2.9%","summary":"wait","risk":"low"}`
	var rec StrategyRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.BuyPrice != 1380.5 || rec.SellPrice != 1420 || rec.ExpectedReturn != 2.9 {
		t.Fatalf("unexpected numbers: %+v", rec)
	}
	if string(rec.Extra["risk"]) != `"low"` {
		t.Fatalf("expected extra field preserved, got %+v", rec.Extra)
	}

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back["risk"] != "low" || back["analysis_date"] != "2024-01-02" {
		t.Fatalf("unexpected round trip: %+v", back)
	}
}

func TestStrategyRecordUnmarshal(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      StrategyRecord
		wantExtra map[string]string
		wantErr   bool
	}{
		{
			name: "plain numbers",
			raw:  `{"analysis_date":"2024-01-02","buy_price":1380,"sell_price":1420.5,"expected_return":2.9,"summary":"wait"}`,
			want: StrategyRecord{AnalysisDate: "2024-01-02", BuyPrice: 1380, SellPrice: 1420.5, ExpectedReturn: 2.9, Summary: "wait"},
		},
		{
			name: "numeric strings with units",
			raw:  `{"buy_price":"1,380원","sell_price":" 1,420 KRW ","expected_return":"3.1%"}`,
			want: StrategyRecord{BuyPrice: 1380, SellPrice: 1420, ExpectedReturn: 3.1},
		},
		{
			name: "nulls and empty strings",
			raw:  `{"analysis_date":null,"buy_price":null,"sell_price":"","summary":null}`,
			want: StrategyRecord{},
		},
		{
			name:      "unreadable number kept as extra",
			raw:       `{"analysis_date":"2024-01-03","buy_price":"soon","sell_price":1400}`,
			want:      StrategyRecord{AnalysisDate: "2024-01-03", SellPrice: 1400},
			wantExtra: map[string]string{"buy_price": `"soon"`},
		},
		{
			name:      "object summary kept as text",
			raw:       `{"summary":{"view":"flat"},"risk":"low"}`,
			want:      StrategyRecord{Summary: `{"view":"flat"}`},
			wantExtra: map[string]string{"risk": `"low"`},
		},
		{
			name:    "not an object",
			raw:     `[1,2]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec StrategyRecord
			err := json.Unmarshal([]byte(tt.raw), &rec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", rec)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.AnalysisDate != tt.want.AnalysisDate || rec.BuyPrice != tt.want.BuyPrice ||
				rec.SellPrice != tt.want.SellPrice || rec.ExpectedReturn != tt.want.ExpectedReturn ||
				rec.Summary != tt.want.Summary {
				t.Fatalf("got %+v, want %+v", rec, tt.want)
			}
			if len(rec.Extra) != len(tt.wantExtra) {
				t.Fatalf("unexpected extra fields %v", rec.Extra)
			}
			for k, v := range tt.wantExtra {
				if string(rec.Extra[k]) != v {
					t.Fatalf("extra %s = %s, want %s", k, rec.Extra[k], v)
				}
			}
		})
	}
}

func TestStrategyRecordWritesBackUnreadableNumber(t *testing.T) {
	var rec StrategyRecord
	if err := json.Unmarshal([]byte(`{"analysis_date":"2024-01-03","buy_price":"약 1,380"}`), &rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back["buy_price"] != "약 1,380" || back["sell_price"] != 0.0 {
		t.Fatalf("expected original buy_price text written back, got %v", back)
	}
}

func TestCanonicalDates(t *testing.T) {
	// 2024-01-01 20:00 UTC is already 2024-01-02 in Seoul.
	now := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	if got := Today(now); got != "2024-01-02" {
		t.Fatalf("expected 2024-01-02, got %s", got)
	}
	if got := DaysAgo(now, 2); got != "2023-12-31" {
		t.Fatalf("expected 2023-12-31, got %s", got)
	}

	dates, err := DateRange("2024-02-27", "2024-03-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}
	if len(dates) != len(want) {
		t.Fatalf("unexpected range: %+v", dates)
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("unexpected range: %+v", dates)
		}
	}
	if _, err := DateRange("bad", "2024-01-01"); err == nil {
		t.Fatal("expected parse error")
	}
}
