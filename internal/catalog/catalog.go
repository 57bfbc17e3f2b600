// Package catalog is the static list of healthcare applications and the
// endpoints that can be load tested.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embedded []byte

// Endpoint is one API operation of an application.
type Endpoint struct {
	ID          string `yaml:"id" json:"id"`
	Method      string `yaml:"method" json:"method"`
	Path        string `yaml:"path" json:"path"`
	Category    string `yaml:"category" json:"category"`
	Summary     string `yaml:"summary" json:"summary"`
	EstimatedMs int    `yaml:"estimatedMs" json:"estimatedMs"`
}

// Application is a catalog entry referenced by TestConfiguration.applicationId.
type Application struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	Icon        string     `yaml:"icon" json:"icon"`
	Color       string     `yaml:"color" json:"color"`
	Endpoints   []Endpoint `yaml:"endpoints" json:"endpoints"`
}

// Endpoint returns the endpoint with id.
func (a Application) Endpoint(id string) (Endpoint, bool) {
	for _, ep := range a.Endpoints {
		if ep.ID == id {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// EndpointIDs returns every endpoint id in catalog order.
func (a Application) EndpointIDs() []string {
	ids := make([]string, 0, len(a.Endpoints))
	for _, ep := range a.Endpoints {
		ids = append(ids, ep.ID)
	}
	return ids
}

// Catalog is an immutable, ordered set of applications.
type Catalog struct {
	apps []Application
	byID map[string]int
}

type document struct {
	Applications []Application `yaml:"applications"`
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Applications) == 0 {
		return nil, errors.New("catalog has no applications")
	}

	c := &Catalog{apps: doc.Applications, byID: make(map[string]int, len(doc.Applications))}
	for i, app := range doc.Applications {
		if err := validateApplication(app); err != nil {
			return nil, err
		}
		if _, dup := c.byID[app.ID]; dup {
			return nil, fmt.Errorf("duplicate application id %q", app.ID)
		}
		c.byID[app.ID] = i
	}
	return c, nil
}

func validateApplication(app Application) error {
	if app.ID == "" || app.Name == "" {
		return errors.New("application id and name are required")
	}
	if _, ok := icons[app.Icon]; !ok {
		return fmt.Errorf("application %q: unknown icon %q", app.ID, app.Icon)
	}
	if _, ok := colors[app.Color]; !ok {
		return fmt.Errorf("application %q: unknown color %q", app.ID, app.Color)
	}
	if len(app.Endpoints) == 0 {
		return fmt.Errorf("application %q has no endpoints", app.ID)
	}
	seen := make(map[string]struct{}, len(app.Endpoints))
	for _, ep := range app.Endpoints {
		if ep.ID == "" || ep.Path == "" {
			return fmt.Errorf("application %q: endpoint id and path are required", app.ID)
		}
		if _, dup := seen[ep.ID]; dup {
			return fmt.Errorf("application %q: duplicate endpoint id %q", app.ID, ep.ID)
		}
		seen[ep.ID] = struct{}{}
	}
	return nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog. The embedded file is covered by
// tests, so a parse failure here is a programming error.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embedded)
		if err != nil {
			panic(err)
		}
		defaultCat = c
	})
	return defaultCat
}

// Applications returns every application in catalog order.
func (c *Catalog) Applications() []Application {
	out := make([]Application, len(c.apps))
	copy(out, c.apps)
	return out
}

// Lookup returns the application with id.
func (c *Catalog) Lookup(id string) (Application, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Application{}, false
	}
	return c.apps[i], true
}

// Search returns applications whose name or description contains query,
// case-insensitively. An empty query matches everything.
func (c *Catalog) Search(query string) []Application {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return c.Applications()
	}
	var out []Application
	for _, app := range c.apps {
		if strings.Contains(strings.ToLower(app.Name), query) ||
			strings.Contains(strings.ToLower(app.Description), query) {
			out = append(out, app)
		}
	}
	return out
}
