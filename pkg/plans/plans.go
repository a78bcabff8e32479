// pkg/plans/plans.go
package plans

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan describes the limits and billing rate of a subscription tier.
// A nil MonthlyLimit means the tier has no monthly ceiling (enterprise).
type Plan struct {
	Name           string  `yaml:"name"`
	PerMinute      int     `yaml:"per_minute"`
	MonthlyLimit   *int64  `yaml:"monthly_limit"`
	PerRequestCost float64 `yaml:"per_request_cost"`
}

// Unlimited reports whether the plan has no monthly ceiling.
func (p Plan) Unlimited() bool { return p.MonthlyLimit == nil }

// Catalog maps plan names to their definitions.
type Catalog struct {
	byName map[string]Plan
}

func limit(n int64) *int64 { return &n }

// Defaults returns the compiled-in tier catalog.
func Defaults() *Catalog {
	return New([]Plan{
		{Name: "free", PerMinute: 10, MonthlyLimit: limit(500), PerRequestCost: 0},
		{Name: "starter", PerMinute: 50, MonthlyLimit: limit(10000), PerRequestCost: 0.002},
		{Name: "pro", PerMinute: 200, MonthlyLimit: limit(100000), PerRequestCost: 0.0015},
		{Name: "enterprise", PerMinute: 1000, MonthlyLimit: nil, PerRequestCost: 0.001},
	})
}

func New(list []Plan) *Catalog {
	c := &Catalog{byName: map[string]Plan{}}
	for _, p := range list {
		c.byName[p.Name] = p
	}
	return c
}

// LoadFile reads a YAML catalog. The file replaces the defaults wholesale so
// operators see exactly what they configured.
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}
	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}
	if len(doc.Plans) == 0 {
		return nil, fmt.Errorf("plan catalog %s defines no plans", path)
	}
	return New(doc.Plans), nil
}

// Load returns the catalog from path when set, else the defaults.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Defaults(), nil
	}
	return LoadFile(path)
}

// Lookup resolves a plan name, falling back to the free tier for unknown or
// empty names so a mis-provisioned tenant is throttled rather than unbounded.
func (c *Catalog) Lookup(name string) Plan {
	if p, ok := c.byName[name]; ok {
		return p
	}
	return c.byName["free"]
}

// Cost returns the billable cost of a single request on the plan.
func (c *Catalog) Cost(name string) float64 {
	return c.Lookup(name).PerRequestCost
}
