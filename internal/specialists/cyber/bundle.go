package cyber

import "github.com/fieldnotes-dev/agentmesh/internal/mcpserver"

// RegisterAll wires every cybersecurity tool onto one registry, for bundles
// that run recon/threatintel/riskengine/reporting behind a single server
// rather than one process per concern.
func RegisterAll(r *mcpserver.Registry) error {
	for _, register := range []func(*mcpserver.Registry) error{
		RegisterRecon,
		RegisterThreatIntel,
		RegisterRiskEngine,
		RegisterReporting,
	} {
		if err := register(r); err != nil {
			return err
		}
	}
	return nil
}
