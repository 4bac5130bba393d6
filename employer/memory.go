package employer

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// MemoryDirectory is an in-process directory, usually seeded from a YAML file.
type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemoryDirectory(profiles ...Profile) *MemoryDirectory {
	d := &MemoryDirectory{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		d.profiles[p.ID] = p
	}
	return d
}

func (d *MemoryDirectory) GetByID(_ context.Context, id string) (Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (d *MemoryDirectory) List(_ context.Context, limit int) ([]Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	d.mu.RLock()
	out := make([]Profile, 0, len(d.profiles))
	for _, p := range d.profiles {
		out = append(out, p)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *MemoryDirectory) Upsert(_ context.Context, p Profile) error {
	d.mu.Lock()
	d.profiles[p.ID] = p
	d.mu.Unlock()
	return nil
}

type seedFile struct {
	Employers []Profile `yaml:"employers"`
}

// LoadSeed reads profiles from a YAML document of the form
//
//	employers:
//	  - id: EMP001
//	    name: Acme Industries
func LoadSeed(path string) ([]Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("employer: read seed: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes a seed document. Missing created_at values default to now.
func ParseSeed(raw []byte) ([]Profile, error) {
	var doc seedFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("employer: parse seed: %w", err)
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(doc.Employers))
	for i := range doc.Employers {
		p := &doc.Employers[i]
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" || strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("employer: seed entry %d needs id and name", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("employer: duplicate seed id %s", p.ID)
		}
		seen[p.ID] = true
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
	}
	return doc.Employers, nil
}

// DefaultProfiles is the directory used when no seed file is configured.
func DefaultProfiles() []Profile {
	now := time.Now().UTC()
	return []Profile{
		{ID: "EMP001", Name: "Acme Industries", Fein: "12-3456789", Verified: true, CreatedAt: now},
		{ID: "EMP002", Name: "TechCorp Inc", Fein: "98-7654321", Verified: true, CreatedAt: now},
	}
}
