package cyber

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fieldnotes-dev/agentmesh/internal/mcpserver"
)

// RegisterThreatIntel adds get_cvss, get_epss, check_cisa_kev, and
// check_exploit_available, grounded on threat_intel/tools.py's
// get_epss/check_exploit_available/check_cisa_kev functions plus
// risk_graph.py's tool_get_cvss lookup. Network lookups (NVD, FIRST EPSS
// API, GitHub repository search, CISA KEV feed) degrade to "unavailable"
// on failure rather than failing the tool call, matching the original's
// try/except-around-each-source shape.
func RegisterThreatIntel(r *mcpserver.Registry) error {
	kev := newKEVCache(6 * time.Hour)
	tools := []mcpserver.Tool{
		{
			Name:        "get_cvss",
			Description: "Look up the published CVSS base score for a CVE.",
			Schema:      schemaCVE,
			Handler:     toolGetCVSS,
			CacheTTL:    time.Hour,
		},
		{
			Name:        "get_epss",
			Description: "Look up the EPSS exploitation-probability score and percentile for a CVE.",
			Schema:      schemaCVE,
			Handler:     toolGetEPSS,
			CacheTTL:    time.Hour,
		},
		{
			Name:        "check_cisa_kev",
			Description: "Check whether a CVE is listed in the CISA Known Exploited Vulnerabilities catalog.",
			Schema:      schemaCVE,
			Handler:     kev.toolCheckCISAKEV,
			CacheTTL:    30 * time.Minute,
		},
		{
			Name:        "check_exploit_available",
			Description: "Check public exploit/PoC availability for a CVE via GitHub repository search.",
			Schema:      schemaCVE,
			Handler:     toolCheckExploitAvailable,
			CacheTTL:    30 * time.Minute,
		},
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

var schemaCVE = []byte(`{
  "type": "object",
  "properties": {"cve": {"type": "string", "pattern": "^CVE-[0-9]{4}-[0-9]+$"}},
  "required": ["cve"]
}`)

var epssHTTPClient = &http.Client{Timeout: 5 * time.Second}
var nvdHTTPClient = &http.Client{Timeout: 8 * time.Second}

type epssAPIResponse struct {
	Data []struct {
		EPSS       string `json:"epss"`
		Percentile string `json:"percentile"`
	} `json:"data"`
}

// toolGetEPSS mirrors get_epss: query the FIRST EPSS API for a probability
// and percentile, falling back to "unavailable" on any network error so a
// flaky external dependency never aborts the risk-assessment plan.
func toolGetEPSS(ctx context.Context, args map[string]any) (any, error) {
	cve := argString(args, "cve")
	if cve == "" {
		return nil, fmt.Errorf("cve is required")
	}
	cve = strings.ToUpper(cve)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("https://api.first.org/data/v1/epss?cve=%s", cve), nil)
	if err != nil {
		return nil, err
	}
	resp, err := epssHTTPClient.Do(req)
	if err != nil {
		return map[string]any{"cve": cve, "epss": "unavailable", "percentile": "unavailable"}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return map[string]any{"cve": cve, "epss": "unavailable", "percentile": "unavailable"}, nil
	}

	var parsed epssAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || len(parsed.Data) == 0 {
		return map[string]any{"cve": cve, "epss": "unavailable", "percentile": "unavailable"}, nil
	}

	return map[string]any{
		"cve":        cve,
		"epss":       parsed.Data[0].EPSS,
		"percentile": parsed.Data[0].Percentile,
	}, nil
}

type nvdCVEResponse struct {
	Vulnerabilities []struct {
		CVE struct {
			Metrics struct {
				CvssMetricV31 []struct {
					CvssData struct {
						BaseScore float64 `json:"baseScore"`
					} `json:"cvssData"`
				} `json:"cvssMetricV31"`
				CvssMetricV30 []struct {
					CvssData struct {
						BaseScore float64 `json:"baseScore"`
					} `json:"cvssData"`
				} `json:"cvssMetricV30"`
				CvssMetricV2 []struct {
					CvssData struct {
						BaseScore float64 `json:"baseScore"`
					} `json:"cvssData"`
				} `json:"cvssMetricV2"`
			} `json:"metrics"`
		} `json:"cve"`
	} `json:"vulnerabilities"`
}

// toolGetCVSS mirrors risk_graph.py's tool_get_cvss lookup: query the NVD
// CVE API for the best-available CVSS base score (v3.1, else v3.0, else
// v2), falling back to the original's 5.0 default when the CVE has no
// published score yet or the lookup fails, so an NVD outage never aborts
// the risk-assessment plan.
func toolGetCVSS(ctx context.Context, args map[string]any) (any, error) {
	cve := argString(args, "cve")
	if cve == "" {
		return nil, fmt.Errorf("cve is required")
	}
	cve = strings.ToUpper(cve)

	unavailable := map[string]any{"cve": cve, "cvss_base": 5.0, "source": "unavailable"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("https://services.nvd.nist.gov/rest/json/cves/2.0?cveId=%s", cve), nil)
	if err != nil {
		return nil, err
	}
	resp, err := nvdHTTPClient.Do(req)
	if err != nil {
		return unavailable, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unavailable, nil
	}

	var parsed nvdCVEResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || len(parsed.Vulnerabilities) == 0 {
		return unavailable, nil
	}

	metrics := parsed.Vulnerabilities[0].CVE.Metrics
	switch {
	case len(metrics.CvssMetricV31) > 0:
		return map[string]any{"cve": cve, "cvss_base": metrics.CvssMetricV31[0].CvssData.BaseScore, "source": "cvssMetricV31"}, nil
	case len(metrics.CvssMetricV30) > 0:
		return map[string]any{"cve": cve, "cvss_base": metrics.CvssMetricV30[0].CvssData.BaseScore, "source": "cvssMetricV30"}, nil
	case len(metrics.CvssMetricV2) > 0:
		return map[string]any{"cve": cve, "cvss_base": metrics.CvssMetricV2[0].CvssData.BaseScore, "source": "cvssMetricV2"}, nil
	default:
		return unavailable, nil
	}
}

// kevCache caches the CISA Known Exploited Vulnerabilities catalog with a
// TTL, matching check_cisa_kev's module-level cache so every call doesn't
// refetch the whole feed.
type kevCache struct {
	ttl     time.Duration
	httpCli *http.Client

	mu        sync.Mutex
	cveSet    map[string]struct{}
	fetchedAt time.Time
	fetchErr  error
}

func newKEVCache(ttl time.Duration) *kevCache {
	return &kevCache{ttl: ttl, httpCli: &http.Client{Timeout: 10 * time.Second}}
}

const kevFeedURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

type kevFeed struct {
	Vulnerabilities []struct {
		CveID string `json:"cveID"`
	} `json:"vulnerabilities"`
}

func (k *kevCache) refresh(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if time.Since(k.fetchedAt) < k.ttl && k.cveSet != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, kevFeedURL, nil)
	if err != nil {
		k.fetchErr = err
		return
	}
	resp, err := k.httpCli.Do(req)
	if err != nil {
		k.fetchErr = err
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		k.fetchErr = fmt.Errorf("kev feed returned %d", resp.StatusCode)
		return
	}

	var feed kevFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		k.fetchErr = err
		return
	}

	set := make(map[string]struct{}, len(feed.Vulnerabilities))
	for _, v := range feed.Vulnerabilities {
		set[strings.ToUpper(v.CveID)] = struct{}{}
	}
	k.cveSet = set
	k.fetchedAt = time.Now()
	k.fetchErr = nil
}

func (k *kevCache) contains(cve string) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.cveSet == nil {
		return false, k.fetchErr
	}
	_, ok := k.cveSet[cve]
	return ok, nil
}

// toolCheckCISAKEV mirrors check_cisa_kev's catalog membership check.
func (k *kevCache) toolCheckCISAKEV(ctx context.Context, args map[string]any) (any, error) {
	cve := argString(args, "cve")
	if cve == "" {
		return nil, fmt.Errorf("cve is required")
	}
	cve = strings.ToUpper(cve)

	k.refresh(ctx)
	listed, err := k.contains(cve)
	status := "no"
	if listed {
		status = "yes"
	}
	if err != nil {
		status = "unavailable"
	}
	return map[string]any{"cve": cve, "kev_listed": status}, nil
}

// toolCheckExploitAvailable mirrors check_exploit_available's GitHub
// repository search for a public proof-of-concept.
func toolCheckExploitAvailable(ctx context.Context, args map[string]any) (any, error) {
	cve := argString(args, "cve")
	if cve == "" {
		return nil, fmt.Errorf("cve is required")
	}
	cve = strings.ToUpper(cve)

	status := "unavailable"
	if count, err := githubPocCount(ctx, cve); err == nil {
		if count > 0 {
			status = "yes"
		} else {
			status = "no"
		}
	}
	return map[string]any{"cve": cve, "exploit_available": status}, nil
}

type githubSearchResponse struct {
	TotalCount int `json:"total_count"`
}

func githubPocCount(ctx context.Context, cve string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("https://api.github.com/search/repositories?q=%s+poc+exploit", cve), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := epssHTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("github search returned %d", resp.StatusCode)
	}
	var parsed githubSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	return parsed.TotalCount, nil
}
