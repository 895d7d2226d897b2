package cyber

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fieldnotes-dev/agentmesh/internal/mcpserver"
)

// RegisterReporting adds generate_report, grounded on
// reporting/tools_phase1.py's generate_session_report: a Markdown summary
// of assets scanned, vulnerabilities found, and the highest-risk issue
// seen in a session's artifacts. Where the Python tool pulled artifacts
// itself from Redis, here the caller (the supervisor orchestrator, which
// already holds the session's artifacts) passes them as structured
// arguments, keeping this specialist stateless like its recon/threatintel
// siblings.
func RegisterReporting(r *mcpserver.Registry) error {
	return r.Register(mcpserver.Tool{
		Name:        "generate_report",
		Description: "Render a Markdown security session report from a session's recorded artifacts.",
		Schema:      schemaGenerateReport,
		Handler:     toolGenerateReport,
	})
}

var schemaGenerateReport = []byte(`{
  "type": "object",
  "properties": {
    "session_id": {"type": "string"},
    "artifacts": {"type": "array"}
  },
  "required": ["session_id"]
}`)

func toolGenerateReport(ctx context.Context, args map[string]any) (any, error) {
	sessionID := strings.TrimSpace(argString(args, "session_id"))
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	artifacts, _ := args["artifacts"].([]any)

	assetSet := map[string]struct{}{}
	cveSet := map[string]struct{}{}
	var highest map[string]any
	var highestScore float64

	for _, raw := range artifacts {
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if domain, ok := fields["domain"].(string); ok && domain != "" {
			assetSet[domain] = struct{}{}
		}
		if cve, ok := fields["cve"].(string); ok && cve != "" {
			cveSet[cve] = struct{}{}
		}
		if fields["type"] == "risk" || fields["risk_score"] != nil {
			if score := argFloat(fields, "risk_score", -1); score >= 0 && score >= highestScore {
				highestScore = score
				highest = fields
			}
		}
	}

	var b strings.Builder
	b.WriteString("# Security Session Report\n\n")
	fmt.Fprintf(&b, "- Session ID: `%s`\n", sessionID)
	fmt.Fprintf(&b, "- Generated: %s\n\n", time.Now().UTC().Format("2006-01-02 15:04:05"))

	b.WriteString("## Assets Scanned\n")
	writeSortedBullets(&b, assetSet)
	b.WriteString("\n")

	b.WriteString("## Vulnerabilities Found\n")
	writeSortedBullets(&b, cveSet)
	b.WriteString("\n")

	b.WriteString("## Highest Risk Issue\n")
	if highest != nil {
		fmt.Fprintf(&b, "- CVE: %v\n", firstOf(highest["cve"], "(unknown)"))
		fmt.Fprintf(&b, "- Domain: %v\n", firstOf(highest["domain"], "(unknown)"))
		fmt.Fprintf(&b, "- Risk: **%v** (%v)\n", strings.ToUpper(fmt.Sprint(firstOf(highest["severity"], "(unknown)"))), highest["risk_score"])
	} else {
		b.WriteString("- (no risk assessments recorded)\n")
	}

	return map[string]any{
		"session_id":  sessionID,
		"report_url":  fmt.Sprintf("reports/%s.md", sessionID),
		"report_body": b.String(),
	}, nil
}

func writeSortedBullets(b *strings.Builder, set map[string]struct{}) {
	if len(set) == 0 {
		b.WriteString("- (none recorded)\n")
		return
	}
	items := make([]string, 0, len(set))
	for k := range set {
		items = append(items, k)
	}
	sort.Strings(items)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func firstOf(v any, fallback string) any {
	if v == nil {
		return fallback
	}
	if s, ok := v.(string); ok && s == "" {
		return fallback
	}
	return v
}
