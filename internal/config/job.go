package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/catchup/internal/record"
)

// Job describes one backfill crawl: the scope inputs plus invocation
// bounds. Jobs live in YAML files so a crawl is reproducible.
//
// Example:
//
//	country: de
//	catalogs: [netflix, prime]
//	params:
//	  show_type: movie
//	  order_by: popularity_1year
//	max_pages: 50
type Job struct {
	Country  string            `yaml:"country"`
	Catalogs []string          `yaml:"catalogs"`
	Params   map[string]string `yaml:"params"`
	MaxPages int               `yaml:"max_pages"`
}

// LoadJob reads and validates a job file.
func LoadJob(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read job file: %w", err)
	}

	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("parse job file %s: %w", path, err)
	}
	if err := job.Validate(); err != nil {
		return Job{}, fmt.Errorf("job file %s: %w", path, err)
	}
	return job, nil
}

// Validate checks the job for the fields a crawl cannot run without.
func (j Job) Validate() error {
	if j.Country == "" {
		return fmt.Errorf("country is required")
	}
	if len(j.Catalogs) == 0 {
		return fmt.Errorf("at least one catalog is required")
	}
	if j.MaxPages < 0 {
		return fmt.Errorf("max_pages must be >= 0, got %d", j.MaxPages)
	}
	return nil
}

// Scope derives the run scope this job crawls.
func (j Job) Scope() record.Scope {
	return record.NewScope(j.Country, j.Catalogs, j.Params)
}
