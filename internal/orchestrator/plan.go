package orchestrator

import "github.com/fieldnotes-dev/agentmesh/internal/router"

// Step is one tool call in a Plan: which specialist server and tool to
// call, how to build its arguments from the message's extracted entities
// and prior step results, and whether its failure should abort the plan.
type Step struct {
	Server   string
	Tool     string
	Critical bool
	// Sequential marks a step whose BuildArgs depends on every earlier
	// step's output, forcing act() to start a new dispatch batch here and
	// wait for the prior batch to finish first instead of racing it.
	Sequential bool
	// BuildArgs produces the call arguments from the detected entities and
	// whatever earlier steps in this plan have already produced.
	BuildArgs func(router.Entities, map[string]any) map[string]any
}

// Plan is the fixed, ordered tool-call sequence one intent runs.
type Plan struct {
	Intent Intent
	Steps  []Step
}

// Intent re-exports router.Intent so callers only import one package for
// orchestration concerns; router.IntentDirectAnswer has no entry in Plans
// since it runs no tools.
type Intent = router.Intent

func entityArgs(e router.Entities, extra map[string]any) map[string]any {
	args := map[string]any{}
	if e.CVE != "" {
		args["cve"] = e.CVE
	}
	if e.Domain != "" {
		args["domain"] = e.Domain
	}
	if e.Repo != "" {
		args["repo"] = e.Repo
	}
	if e.IP != "" {
		args["ip"] = e.IP
	}
	for k, v := range extra {
		args[k] = v
	}
	return args
}

// riskScoreArgs maps the real field names earlier risk-assessment steps
// produce (get_cvss's cvss_base, get_epss's epss, check_cisa_kev's
// kev_listed, check_exploit_available's exploit_available, scan_ports'
// reachable/open_ports) onto score_risk's argument names, grounded on
// risk_graph.py's run_risk_agent threading each tool's output into its
// final tool_calculate_risk call.
func riskScoreArgs(_ router.Entities, prior map[string]any) map[string]any {
	args := map[string]any{}
	if v, ok := prior["cvss_base"]; ok {
		args["cvss_base"] = v
	}
	if v, ok := prior["epss"]; ok {
		args["epss"] = v
	}
	if v, ok := prior["kev_listed"]; ok {
		args["kev_listed"] = v
	}
	if v, ok := prior["exploit_available"]; ok {
		args["exploit_available"] = v
	}
	if v, ok := prior["reachable"]; ok {
		args["internet_exposed"] = v
	}
	if v, ok := prior["open_ports"]; ok {
		args["open_ports"] = v
	}
	return args
}

// Plans is the static per-intent tool plan table (spec.md Scenario A/B):
// risk_assessment, threat_only, recon_only, session_analysis,
// report_generation. direct_answer has no plan entry — the orchestrator
// skips the Act stage entirely for it.
var Plans = map[router.Intent]Plan{
	// risk_assessment runs the same six-step sequence as risk_graph.py's
	// run_risk_agent: CVSS, EPSS, CISA KEV, public-exploit check, and a port
	// scan all run independently, then score_risk combines their output.
	router.IntentRiskAssessment: {
		Intent: router.IntentRiskAssessment,
		Steps: []Step{
			{Server: "threatintel", Tool: "get_cvss", Critical: true, BuildArgs: func(e router.Entities, _ map[string]any) map[string]any {
				return entityArgs(e, nil)
			}},
			{Server: "threatintel", Tool: "get_epss", Critical: false, BuildArgs: func(e router.Entities, _ map[string]any) map[string]any {
				return entityArgs(e, nil)
			}},
			{Server: "threatintel", Tool: "check_cisa_kev", Critical: false, BuildArgs: func(e router.Entities, _ map[string]any) map[string]any {
				return entityArgs(e, nil)
			}},
			{Server: "threatintel", Tool: "check_exploit_available", Critical: false, BuildArgs: func(e router.Entities, _ map[string]any) map[string]any {
				return entityArgs(e, nil)
			}},
			{Server: "recon", Tool: "scan_ports", Critical: false, BuildArgs: func(e router.Entities, _ map[string]any) map[string]any {
				return entityArgs(e, nil)
			}},
			{Server: "riskengine", Tool: "score_risk", Critical: true, Sequential: true, BuildArgs: riskScoreArgs},
		},
	},
	// threat_only skips the port scan and risk scoring, reporting exposure
	// signals straight from threat intel.
	router.IntentThreatOnly: {
		Intent: router.IntentThreatOnly,
		Steps: []Step{
			{Server: "threatintel", Tool: "get_epss", Critical: true, BuildArgs: func(e router.Entities, _ map[string]any) map[string]any {
				return entityArgs(e, nil)
			}},
			{Server: "threatintel", Tool: "check_cisa_kev", Critical: false, BuildArgs: func(e router.Entities, _ map[string]any) map[string]any {
				return entityArgs(e, nil)
			}},
			{Server: "threatintel", Tool: "check_exploit_available", Critical: false, BuildArgs: func(e router.Entities, _ map[string]any) map[string]any {
				return entityArgs(e, nil)
			}},
		},
	},
	router.IntentReconOnly: {
		Intent: router.IntentReconOnly,
		Steps: []Step{
			{Server: "recon", Tool: "scan_ports", Critical: true, BuildArgs: func(e router.Entities, _ map[string]any) map[string]any {
				return entityArgs(e, nil)
			}},
			{Server: "recon", Tool: "resolve_domain", Critical: false, BuildArgs: func(e router.Entities, _ map[string]any) map[string]any {
				return entityArgs(e, nil)
			}},
		},
	},
	router.IntentReportGeneration: {
		Intent: router.IntentReportGeneration,
		Steps: []Step{
			{Server: "reporting", Tool: "generate_report", Critical: true, BuildArgs: func(e router.Entities, _ map[string]any) map[string]any {
				return entityArgs(e, nil)
			}},
		},
	},
	router.IntentSessionAnalysis: {
		Intent: router.IntentSessionAnalysis,
		// session_analysis reads prior artifacts rather than calling tools;
		// its plan is empty and handled directly by render.go / Handle.
		Steps: nil,
	},
}
