package widgetinfo

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// WidgetType identifies a dashboard widget. One table serves every dashboard.
type WidgetType string

const (
	CFD                   WidgetType = "cfd"
	FlowEfficiency        WidgetType = "flow-efficiency"
	FlowOfDemands         WidgetType = "flow-of-demands"
	ClassOfService        WidgetType = "class-of-service"
	DemandDistribution    WidgetType = "demand-distribution"
	SourcesOfDelay        WidgetType = "sources-of-delay-and-waste"
	PerformanceCheckpoint WidgetType = "performance-checkpoint"
	Kanban                WidgetType = "kanban"
	Productivity          WidgetType = "productivity"
	ServiceLevel          WidgetType = "service-level"
	StaleWork             WidgetType = "stale-work"
	Blockers              WidgetType = "blockers"
	DiscardedBeforeStart  WidgetType = "discarded-before-start"
	DiscardedAfterStart   WidgetType = "discarded-after-start"
	DelayedItems          WidgetType = "delayed-items"
	WIPExcess             WidgetType = "wip-excess"
	FlowDebt              WidgetType = "flow-debt"
	DemandVsCapacity      WidgetType = "demand-vs-capacity"
)

// WidgetTypes lists every known widget.
var WidgetTypes = []WidgetType{
	CFD, FlowEfficiency, FlowOfDemands, ClassOfService, DemandDistribution, SourcesOfDelay,
	PerformanceCheckpoint, Kanban, Productivity, ServiceLevel, StaleWork, Blockers,
	DiscardedBeforeStart, DiscardedAfterStart, DelayedItems, WIPExcess, FlowDebt, DemandVsCapacity,
}

// ParseWidgetType matches s case-insensitively against the known widgets.
func ParseWidgetType(s string) (WidgetType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range WidgetTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Information is descriptive text attached unmodified to widget responses.
type Information struct {
	Type        WidgetType `yaml:"type" json:"type"`
	Name        string     `yaml:"name" json:"name"`
	WhatIsThis  string     `yaml:"whatIsThis" json:"whatIsThis,omitempty"`
	WhyIsThis   string     `yaml:"whyIsThis" json:"whyIsThis,omitempty"`
	HowToRead   string     `yaml:"howToRead" json:"howToRead,omitempty"`
	LearnMore   string     `yaml:"learnMore" json:"learnMore,omitempty"`
	Improvement string     `yaml:"improvement" json:"improvement,omitempty"`
}

//go:embed catalogue.yaml
var defaultCatalogue []byte

// Catalogue serves widget information from YAML documents.
type Catalogue struct {
	entries map[WidgetType][]Information
}

// Parse reads a YAML document holding a list of Information entries.
func Parse(data []byte) (*Catalogue, error) {
	c := &Catalogue{entries: make(map[WidgetType][]Information)}
	if err := c.merge(data); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns the built-in catalogue.
func Default() (*Catalogue, error) {
	return Parse(defaultCatalogue)
}

// Load returns the built-in catalogue overlaid with every *.yaml file in dir. A widget found in an
// override file replaces the built-in entries for that widget. An empty or missing dir is not an error.
func Load(dir string) (*Catalogue, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return c, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Debug().Err(err).Str("dir", dir).Msg("Widget information overrides not found")
		return c, nil
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := c.merge(data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return c, nil
}

func (c *Catalogue) merge(data []byte) error {
	var raw []Information
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	replaced := make(map[WidgetType]bool)
	for _, info := range raw {
		t, ok := ParseWidgetType(string(info.Type))
		if !ok {
			log.Warn().Str("type", string(info.Type)).Msg("Skipping widget information for unknown widget")
			continue
		}
		info.Type = t
		if !replaced[t] {
			c.entries[t] = nil
			replaced[t] = true
		}
		c.entries[t] = append(c.entries[t], info)
	}
	return nil
}

// GetWidgetInformation returns the entries for widget t; unknown widgets yield an empty list.
func (c *Catalogue) GetWidgetInformation(_ context.Context, t WidgetType) ([]Information, error) {
	out := make([]Information, len(c.entries[t]))
	copy(out, c.entries[t])
	return out, nil
}
