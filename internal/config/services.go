package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServiceEndpoint names one specialist's address for the MCP client and the
// launcher to agree on.
type ServiceEndpoint struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Port int    `yaml:"port"`
}

// ServiceList is the optional discovery file format, a small YAML list
// rather than the teacher's layered $include config system: this repo's
// specialist set is fixed per deployment, not something that needs file
// composition.
type ServiceList struct {
	Services []ServiceEndpoint `yaml:"services"`
}

// DefaultServices is used when no discovery file is configured: the two
// bundles this repository ships.
func DefaultServices() ServiceList {
	return ServiceList{Services: []ServiceEndpoint{
		{Name: "recon", URL: "http://localhost:8101"},
		{Name: "threatintel", URL: "http://localhost:8102"},
		{Name: "riskengine", URL: "http://localhost:8103"},
		{Name: "reporting", URL: "http://localhost:8104"},
		{Name: "github", URL: "http://localhost:8105"},
	}}
}

// LoadServices reads a YAML discovery file, falling back to DefaultServices
// when path is empty.
func LoadServices(path string) (ServiceList, error) {
	if path == "" {
		return DefaultServices(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ServiceList{}, fmt.Errorf("read services file %s: %w", path, err)
	}
	var list ServiceList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return ServiceList{}, fmt.Errorf("parse services file %s: %w", path, err)
	}
	return list, nil
}
