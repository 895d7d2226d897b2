// Package router implements the mesh's deterministic intent classifier: a
// pure, keyword-and-regex-driven function from a user message to an Intent
// plus whatever entities (CVE, domain, repo, IP) it could extract. No LLM
// call is involved — same input always yields the same output, matching the
// cybersecurity bundle's original supervisor_intents.py rules.
package router

import (
	"net/url"
	"regexp"
	"strings"
)

// Intent names the fixed set of plans the orchestrator knows how to run.
type Intent string

const (
	IntentReportGeneration Intent = "report_generation"
	IntentSessionAnalysis  Intent = "session_analysis"
	IntentThreatOnly       Intent = "threat_only"
	IntentRiskAssessment   Intent = "risk_assessment"
	IntentReconOnly        Intent = "recon_only"
	IntentDirectAnswer     Intent = "direct_answer"
)

// Entities holds whatever the message's entities regexes matched.
type Entities struct {
	CVE    string
	GHSA   string
	Domain string
	Repo   string
	IP     string
}

// Match is the result of classifying one message.
type Match struct {
	Intent   Intent
	Entities Entities
}

var (
	cveRe    = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,7}\b`)
	ghsaRe   = regexp.MustCompile(`(?i)\bGHSA-[\da-z]{4}-[\da-z]{4}-[\da-z]{4}\b`)
	ipRe     = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	urlRe    = regexp.MustCompile(`(?i)https?://([^/\s]+)`)
	domainRe = regexp.MustCompile(`\b([a-z0-9-]+\.)+[a-z]{2,}\b`)
	repoRe   = regexp.MustCompile(`(?i)\b([\w.-]+/[\w.-]+)\b`)
	repoHost = regexp.MustCompile(`(?i)github\.com/([\w.-]+/[\w.-]+)`)
)

// ExtractCVE returns the first CVE id found in text, or "".
func ExtractCVE(text string) string {
	m := cveRe.FindString(text)
	return strings.ToUpper(m)
}

// ExtractGHSA returns the first GitHub Security Advisory id found in text
// (GHSA-xxxx-xxxx-xxxx), upper-cased, or "".
func ExtractGHSA(text string) string {
	m := ghsaRe.FindString(text)
	return strings.ToUpper(m)
}

// ExtractDomain returns a hostname found in text, preferring one found in a
// URL over a bare domain-looking token (mirrors the Python original's
// preference order).
func ExtractDomain(text string) string {
	if m := urlRe.FindStringSubmatch(text); m != nil {
		if u, err := url.Parse(strings.ToLower(m[0])); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
		return m[1]
	}
	if m := domainRe.FindString(text); m != "" {
		return strings.ToLower(m)
	}
	return ""
}

// ExtractIP returns the first IPv4-looking token found in text, or "".
func ExtractIP(text string) string {
	return ipRe.FindString(text)
}

// ExtractRepo returns a "owner/name" GitHub repo reference, preferring a
// github.com URL over a bare owner/name token.
func ExtractRepo(text string) string {
	if m := repoHost.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, tok := range strings.Fields(text) {
		if m := repoRe.FindString(tok); m != "" && strings.Count(m, "/") == 1 && !strings.Contains(m, "http") {
			return m
		}
	}
	return ""
}

func extractEntities(text string) Entities {
	return Entities{
		CVE:    ExtractCVE(text),
		GHSA:   ExtractGHSA(text),
		Domain: ExtractDomain(text),
		Repo:   ExtractRepo(text),
		IP:     ExtractIP(text),
	}
}

func hasAny(text string, phrases ...string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Detect classifies a message into an Intent using ordered, first-match
// rules, exactly mirroring the cybersecurity bundle's Python
// detect_intent(): report generation first, then session-wide analysis,
// then threat-only (must not require a domain), then risk assessment
// (explicit phrasing or both a CVE and a domain present), then recon-only,
// and finally a direct answer with no tool plan.
func Detect(message string) Match {
	entities := extractEntities(message)

	switch {
	case hasAny(message, "generate report", "create a report", "report generation", "write a report"):
		return Match{Intent: IntentReportGeneration, Entities: entities}

	case hasAny(message, "highest risk", "biggest risk", "fix first", "what should i fix", "priority issue"):
		return Match{Intent: IntentSessionAnalysis, Entities: entities}

	case hasAny(message, "actively exploited", "exploit available", "is this exploited", "being exploited"):
		return Match{Intent: IntentThreatOnly, Entities: entities}

	case hasAny(message, "analyze risk", "risk for cve", "affected by") ||
		(entities.CVE != "" && entities.Domain != ""):
		return Match{Intent: IntentRiskAssessment, Entities: entities}

	case hasAny(message, "scan ports", "port scan", "dns", "whois", "recon"):
		return Match{Intent: IntentReconOnly, Entities: entities}

	default:
		return Match{Intent: IntentDirectAnswer, Entities: entities}
	}
}
