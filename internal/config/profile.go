package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Dataset formats understood by the engine bundles.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Profile is one configuration of the query table view: which dataset to load,
// how to reshape it, and which query to run.
type Profile struct {
	Name       string   `yaml:"name" json:"name"`
	Title      string   `yaml:"title" json:"title"`
	DatasetURL string   `yaml:"dataset_url" json:"dataset_url"`
	Format     string   `yaml:"format" json:"format"`
	FileName   string   `yaml:"file_name" json:"file_name"`
	Select     string   `yaml:"select" json:"select,omitempty"`
	Schema     string   `yaml:"schema" json:"schema,omitempty"`
	Setup      []string `yaml:"setup" json:"setup,omitempty"`
	Query      string   `yaml:"query" json:"query"`
	Editable   bool     `yaml:"editable" json:"editable"`
	AutoRun    bool     `yaml:"auto_run" json:"auto_run"`
}

type profilesFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// DefaultProfiles returns the built-in profiles: a fixed query over a reshaped
// JSON document, and a live editor over a sample CSV.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name:       "users",
			Title:      "Interactive Data Table",
			DatasetURL: "https://dummyjson.com/users",
			Format:     FormatJSON,
			FileName:   "res.json",
			Select:     "users",
			Query:      "SELECT * FROM 'res.json'",
		},
		{
			Name:       "sample-csv",
			Title:      "SQL Playground",
			DatasetURL: "https://duckdb.org/data/flights.csv",
			Format:     FormatCSV,
			FileName:   "sample.csv",
			Query:      "SELECT * FROM 'sample.csv' LIMIT 10",
			Editable:   true,
			AutoRun:    true,
		},
	}
}

// Normalize fills defaults and validates the profile.
func (p *Profile) Normalize() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if p.DatasetURL == "" {
		return fmt.Errorf("profile %q: dataset_url is required", p.Name)
	}
	if p.Format == "" {
		p.Format = FormatJSON
	}
	switch p.Format {
	case FormatJSON:
		if p.FileName == "" {
			p.FileName = "res.json"
		}
	case FormatCSV:
		if p.FileName == "" {
			p.FileName = "data.csv"
		}
		if p.Select != "" || p.Schema != "" {
			return fmt.Errorf("profile %q: select and schema apply to json datasets only", p.Name)
		}
	default:
		return fmt.Errorf("profile %q: unsupported format %q", p.Name, p.Format)
	}
	if p.Query == "" {
		return fmt.Errorf("profile %q: query is required", p.Name)
	}
	if p.Title == "" {
		p.Title = p.Name
	}
	return nil
}

// LoadProfiles returns the built-in profiles merged with the ones in the YAML
// file at path. A profile in the file replaces a built-in with the same name.
// An empty path yields the built-ins only. The result is sorted by name.
func LoadProfiles(path string) ([]Profile, error) {
	byName := make(map[string]Profile)
	for _, p := range DefaultProfiles() {
		byName[p.Name] = p
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profiles: %w", err)
		}
		var f profilesFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse profiles %s: %w", path, err)
		}
		for _, p := range f.Profiles {
			if err := p.Normalize(); err != nil {
				return nil, err
			}
			byName[p.Name] = p
		}
	}

	profiles := make([]Profile, 0, len(byName))
	for _, p := range byName {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})
	return profiles, nil
}
