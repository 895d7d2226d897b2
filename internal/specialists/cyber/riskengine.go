package cyber

import (
	"context"
	"fmt"

	"github.com/fieldnotes-dev/agentmesh/internal/mcpserver"
)

// RegisterRiskEngine adds score_risk, a direct Go port of
// risk_engine/tools.py's calculate_risk: a CVSS base score plus bonuses for
// EPSS probability, known exploit availability, CISA KEV listing, internet
// exposure, and open ports, capped at 10.0 and mapped to a severity band
// and recommended priority.
func RegisterRiskEngine(r *mcpserver.Registry) error {
	return r.Register(mcpserver.Tool{
		Name:        "score_risk",
		Description: "Combine CVSS, EPSS, exploit and exposure signals into an overall risk score.",
		Schema:      schemaScoreRisk,
		Handler:     toolScoreRisk,
	})
}

var schemaScoreRisk = []byte(`{
  "type": "object",
  "properties": {
    "cvss_base": {"type": "number"},
    "epss": {"type": "string"},
    "exploit_available": {"type": "string"},
    "kev_listed": {"type": "string"},
    "internet_exposed": {"type": "boolean"},
    "open_ports": {"type": "array"}
  },
  "required": ["cvss_base"]
}`)

func argFloat(args map[string]any, key string, def float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return def
}

func argBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func toolScoreRisk(ctx context.Context, args map[string]any) (any, error) {
	cvss := argFloat(args, "cvss_base", -1)
	if cvss < 0 {
		return nil, fmt.Errorf("cvss_base is required")
	}

	score := cvss
	var reasons []string

	if epss, ok := args["epss"].(string); ok {
		switch epss {
		case "unavailable":
		default:
			var epssVal float64
			if _, err := fmt.Sscanf(epss, "%f", &epssVal); err == nil && epssVal > 0.5 {
				score += 1.0
				reasons = append(reasons, "high EPSS probability")
			}
		}
	}

	if exploit, ok := args["exploit_available"].(string); ok && exploit == "yes" {
		score += 1.5
		reasons = append(reasons, "public exploit available")
	}

	if kev, ok := args["kev_listed"].(string); ok && kev == "yes" {
		score += 2.0
		reasons = append(reasons, "listed in CISA KEV catalog")
	}

	if argBool(args, "internet_exposed") {
		score += 1.0
		reasons = append(reasons, "internet exposed")
	}

	if ports, ok := args["open_ports"].([]any); ok && len(ports) > 0 {
		score += 0.5
		reasons = append(reasons, fmt.Sprintf("%d open port(s) observed", len(ports)))
	}

	if score > 10.0 {
		score = 10.0
	}

	severity, priority := severityFor(score)

	return map[string]any{
		"risk_score":           score,
		"severity":             severity,
		"recommended_priority": priority,
		"reasons":              reasons,
	}, nil
}

func severityFor(score float64) (severity, priority string) {
	switch {
	case score >= 9.0:
		return "Critical", "remediate immediately"
	case score >= 7.0:
		return "High", "remediate within 7 days"
	case score >= 4.0:
		return "Medium", "remediate within 30 days"
	default:
		return "Low", "track in backlog"
	}
}
