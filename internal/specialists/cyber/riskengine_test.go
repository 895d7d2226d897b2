package cyber

import (
	"context"
	"testing"
)

func TestToolScoreRiskRequiresCVSS(t *testing.T) {
	if _, err := toolScoreRisk(context.Background(), map[string]any{}); err == nil {
		t.Fatalf("expected error without cvss_base")
	}
}

func TestToolScoreRiskAppliesBonuses(t *testing.T) {
	tests := []struct {
		name         string
		args         map[string]any
		wantSeverity string
	}{
		{
			name:         "base cvss only",
			args:         map[string]any{"cvss_base": 3.0},
			wantSeverity: "Low",
		},
		{
			name: "kev listed pushes to critical",
			args: map[string]any{
				"cvss_base":  7.5,
				"kev_listed": "yes",
			},
			wantSeverity: "Critical",
		},
		{
			name: "capped at ten",
			args: map[string]any{
				"cvss_base":         9.8,
				"exploit_available": "yes",
				"kev_listed":        "yes",
				"internet_exposed":  true,
				"open_ports":        []any{float64(80), float64(443)},
			},
			wantSeverity: "Critical",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := toolScoreRisk(context.Background(), tt.args)
			if err != nil {
				t.Fatalf("toolScoreRisk: %v", err)
			}
			data, ok := result.(map[string]any)
			if !ok {
				t.Fatalf("expected map result, got %T", result)
			}
			if data["severity"] != tt.wantSeverity {
				t.Fatalf("severity = %v, want %v", data["severity"], tt.wantSeverity)
			}
			if score := data["risk_score"].(float64); score > 10.0 {
				t.Fatalf("risk_score %v exceeds cap", score)
			}
		})
	}
}

func TestSeverityForBands(t *testing.T) {
	cases := map[float64]string{
		1.0: "Low",
		5.0: "Medium",
		8.0: "High",
		9.5: "Critical",
	}
	for score, want := range cases {
		got, _ := severityFor(score)
		if got != want {
			t.Fatalf("severityFor(%v) = %v, want %v", score, got, want)
		}
	}
}
