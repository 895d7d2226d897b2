package orchestrator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fieldnotes-dev/agentmesh/internal/router"
	"github.com/fieldnotes-dev/agentmesh/internal/session"
)

// render produces the deterministic reply text for one intent given the
// step results gathered during Act. It never calls an LLM; it is the
// fallback summarize.OpenAISummarizer falls back to on any error.
func render(intent router.Intent, entities router.Entities, results []stepResult, artifacts []session.Artifact) string {
	switch intent {
	case router.IntentRiskAssessment:
		return renderRiskAssessment(entities, results)
	case router.IntentThreatOnly:
		return renderThreatOnly(entities, results)
	case router.IntentReconOnly:
		return renderReconOnly(entities, results)
	case router.IntentReportGeneration:
		return renderReportGeneration(results)
	case router.IntentSessionAnalysis:
		return renderSessionAnalysis(artifacts)
	default:
		return renderDirectAnswer()
	}
}

func renderRiskAssessment(e router.Entities, results []stepResult) string {
	score := findField(results, "riskengine", "risk_score")
	if score == nil {
		return fmt.Sprintf("Could not compute a risk score for %s affecting %s.", e.CVE, e.Domain)
	}
	return fmt.Sprintf("Risk score for %s affecting %s: %v.", e.CVE, e.Domain, score)
}

// renderThreatOnly reports a LOW/MEDIUM/HIGH severity label combining CISA
// KEV listing, public exploit availability, and EPSS probability, grounded
// on threat_intel/tools.py's signal set and scored via
// router.DefaultThreatThresholds.
func renderThreatOnly(e router.Entities, results []stepResult) string {
	kev := findField(results, "threatintel", "kev_listed")
	exploit := findField(results, "threatintel", "exploit_available")
	epss := findField(results, "threatintel", "epss")
	if kev == nil && exploit == nil && epss == nil {
		return fmt.Sprintf("No exploitation data available for %s.", e.CVE)
	}

	severity := router.DefaultThreatThresholds.Severity(truthy(kev), truthy(exploit), epssFloat(epss))
	return fmt.Sprintf("Threat severity for %s: %s.", e.CVE, severity)
}

// epssFloat parses an EPSS probability returned as a string (or
// "unavailable"), reporting 0 when it can't be parsed so an unavailable
// score never inflates severity.
func epssFloat(v any) float64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func renderReconOnly(e router.Entities, results []stepResult) string {
	var parts []string
	if ports := findField(results, "recon", "open_ports"); ports != nil {
		parts = append(parts, fmt.Sprintf("open ports: %v", ports))
	}
	if ip := findField(results, "recon", "resolved_ip"); ip != nil {
		parts = append(parts, fmt.Sprintf("resolved to %v", ip))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Recon for %s produced no results.", firstNonEmpty(e.Domain, e.IP))
	}
	return fmt.Sprintf("Recon for %s: %s.", firstNonEmpty(e.Domain, e.IP), strings.Join(parts, "; "))
}

func renderReportGeneration(results []stepResult) string {
	if url := findField(results, "reporting", "report_url"); url != nil {
		return fmt.Sprintf("Report generated: %v.", url)
	}
	return "Report generation did not complete."
}

// renderSessionAnalysis answers "what's the highest risk" by picking the
// artifact with the highest RiskScore, falling back to the
// highest-vulnerability-count dependency scan artifact when no risk
// artifact exists yet, mirroring session_graph.py.
func renderSessionAnalysis(artifacts []session.Artifact) string {
	var best session.Artifact
	haveRisk := false
	for _, a := range artifacts {
		if score, ok := a.RiskScore(); ok {
			if !haveRisk || score > mustRiskScore(best) {
				best = a
				haveRisk = true
			}
		}
	}
	if haveRisk {
		score, _ := best.RiskScore()
		return fmt.Sprintf("Highest priority finding: %s (risk score %.1f).", describeArtifact(best), score)
	}

	var bestDep session.Artifact
	haveDep := false
	for _, a := range artifacts {
		if count, ok := a.VulnerabilityCount(); ok {
			if !haveDep || count > mustVulnCount(bestDep) {
				bestDep = a
				haveDep = true
			}
		}
	}
	if haveDep {
		count, _ := bestDep.VulnerabilityCount()
		return fmt.Sprintf("No risk assessment yet; the dependency scan with the most findings reported %d vulnerabilities.", count)
	}

	return "No prior findings in this session to rank yet."
}

func renderDirectAnswer() string {
	return "I don't have a specific tool for that request; ask about a CVE, domain, or repository to get started."
}

func mustRiskScore(a session.Artifact) float64 {
	v, _ := a.RiskScore()
	return v
}

func mustVulnCount(a session.Artifact) int {
	v, _ := a.VulnerabilityCount()
	return v
}

func describeArtifact(a session.Artifact) string {
	if v, ok := a.Fields["cve"]; ok {
		return fmt.Sprintf("%v", v)
	}
	return a.Type
}

func findField(results []stepResult, server, field string) any {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Server != server {
			continue
		}
		if v, ok := results[i].Data[field]; ok {
			return v
		}
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true") || t == "yes"
	default:
		return false
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return "the target"
}

// sortStepResults orders results by their original step index, used only
// when results are gathered concurrently so trace order stays stable.
func sortStepResults(results []stepResult) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].index < results[j].index })
}
