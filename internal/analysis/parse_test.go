package analysis

import (
	"encoding/json"
	"testing"
)

func TestExtractJSONPlain(t *testing.T) {
	raw := `{"items": [], "total_analyzed": 0}`
	var out map[string]any
	if err := json.Unmarshal(extractJSON(raw), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}

func TestExtractJSONFenced(t *testing.T) {
	raw := "```json\n{\"items\": [{\"index\": 1}]}\n```"
	var out struct {
		Items []Item `json:"items"`
	}
	if err := json.Unmarshal(extractJSON(raw), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Index != 1 {
		t.Fatalf("items=%v", out.Items)
	}
}

func TestExtractJSONBareFence(t *testing.T) {
	raw := "```\n{\"total_analyzed\": 3}\n```"
	var out struct {
		Total int `json:"total_analyzed"`
	}
	if err := json.Unmarshal(extractJSON(raw), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Total != 3 {
		t.Fatalf("total=%d want=3", out.Total)
	}
}

func TestExtractJSONSurroundingProse(t *testing.T) {
	raw := "Here is the analysis you asked for:\n{\"total_analyzed\": 2}\nLet me know if you need more."
	var out struct {
		Total int `json:"total_analyzed"`
	}
	if err := json.Unmarshal(extractJSON(raw), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Total != 2 {
		t.Fatalf("total=%d want=2", out.Total)
	}
}

func TestNormalizeDirection(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"bullish", "bullish"},
		{" Bearish ", "bearish"},
		{"NEUTRAL", "neutral"},
		{"positive", "neutral"},
		{"", "neutral"},
	}
	for _, tc := range cases {
		if got := normalizeDirection(tc.in); got != tc.want {
			t.Fatalf("normalizeDirection(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestClampMagnitude(t *testing.T) {
	if got := clampMagnitude(-3); got != 0 {
		t.Fatalf("got=%d want=0", got)
	}
	if got := clampMagnitude(15); got != 10 {
		t.Fatalf("got=%d want=10", got)
	}
	if got := clampMagnitude(7); got != 7 {
		t.Fatalf("got=%d want=7", got)
	}
}
