package router

import "testing"

func TestDetectOrderedRules(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    Intent
	}{
		{"report", "Can you generate report for last week?", IntentReportGeneration},
		{"session analysis", "What's the highest risk issue in this session?", IntentSessionAnalysis},
		{"threat only no domain", "Is CVE-2024-1234 actively exploited?", IntentThreatOnly},
		{"risk assessment explicit", "Analyze risk for cve CVE-2024-1234 on example.com", IntentRiskAssessment},
		{"risk assessment implicit entities", "what about CVE-2024-1234 and example.com", IntentRiskAssessment},
		{"recon", "Run a port scan on example.com", IntentReconOnly},
		{"direct answer", "What is a buffer overflow?", IntentDirectAnswer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Detect(tc.message)
			if got.Intent != tc.want {
				t.Fatalf("Detect(%q).Intent = %v, want %v", tc.message, got.Intent, tc.want)
			}
		})
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	msg := "Analyze risk for CVE-2024-1234 on example.com, is it actively exploited?"
	first := Detect(msg)
	for i := 0; i < 5; i++ {
		if got := Detect(msg); got != first {
			t.Fatalf("Detect is not deterministic: %+v != %+v", got, first)
		}
	}
}

func TestExtractCVE(t *testing.T) {
	if got := ExtractCVE("affected by cve-2023-45678 apparently"); got != "CVE-2023-45678" {
		t.Fatalf("ExtractCVE = %q", got)
	}
	if got := ExtractCVE("no cve here"); got != "" {
		t.Fatalf("ExtractCVE = %q, want empty", got)
	}
}

func TestExtractDomainPrefersURL(t *testing.T) {
	if got := ExtractDomain("check https://sub.example.com/path and example.org"); got != "sub.example.com" {
		t.Fatalf("ExtractDomain = %q", got)
	}
}

func TestExtractRepo(t *testing.T) {
	if got := ExtractRepo("check https://github.com/acme/widgets for issues"); got != "acme/widgets" {
		t.Fatalf("ExtractRepo = %q", got)
	}
	if got := ExtractRepo("look at acme/widgets please"); got != "acme/widgets" {
		t.Fatalf("ExtractRepo = %q", got)
	}
}

func TestExtractIP(t *testing.T) {
	if got := ExtractIP("traffic from 10.0.0.42 looks odd"); got != "10.0.0.42" {
		t.Fatalf("ExtractIP = %q", got)
	}
}

func TestExtractGHSA(t *testing.T) {
	if got := ExtractGHSA("see ghsa-xxxx-yyyy-zzzz for details"); got != "GHSA-XXXX-YYYY-ZZZZ" {
		t.Fatalf("ExtractGHSA = %q", got)
	}
	if got := ExtractGHSA("no advisory id here"); got != "" {
		t.Fatalf("ExtractGHSA = %q, want empty", got)
	}
}

func TestDetectPopulatesGHSAEntity(t *testing.T) {
	match := Detect("is GHSA-jfh8-c2jp-5v3q actively exploited?")
	if match.Entities.GHSA != "GHSA-JFH8-C2JP-5V3Q" {
		t.Fatalf("Entities.GHSA = %q", match.Entities.GHSA)
	}
}
