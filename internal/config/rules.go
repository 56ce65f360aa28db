package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/netvigil/vigil-core/internal/models"
)

// RuleSet is everything the engine loads from the rules file: ordered
// suppression rules, correlation rules, and per-severity escalation policies.
type RuleSet struct {
	SuppressionRules []models.AlertRule
	CorrelationRules []models.CorrelationRule
	Policies         []models.EscalationPolicy
}

// Duration lets the rules file spell delays as "5m" / "90s" instead of
// nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

type rulesFile struct {
	SuppressionRules []suppressionRuleYAML  `yaml:"suppression_rules"`
	CorrelationRules []correlationRuleYAML  `yaml:"correlation_rules"`
	Policies         []escalationPolicyYAML `yaml:"escalation_policies"`
}

type suppressionRuleYAML struct {
	Name       string            `yaml:"name"`
	Severities []string          `yaml:"severities"`
	Component  string            `yaml:"component"`
	Labels     map[string]string `yaml:"labels"`
	TimeWindow Duration          `yaml:"time_window"`
	Action     string            `yaml:"action"`
}

type correlationRuleYAML struct {
	Name            string   `yaml:"name"`
	MatchComponent  bool     `yaml:"match_component"`
	MatchLabels     []string `yaml:"match_labels"`
	TimeWindow      Duration `yaml:"time_window"`
	MaxCorrelations int      `yaml:"max_correlations"`
	Confidence      float64  `yaml:"confidence"`
}

type escalationPolicyYAML struct {
	Severity string                `yaml:"severity"`
	Levels   []escalationLevelYAML `yaml:"levels"`
}

type escalationLevelYAML struct {
	Level      int      `yaml:"level"`
	Delay      Duration `yaml:"delay"`
	Channels   []string `yaml:"channels"`
	Recipients []string `yaml:"recipients"`
}

// LoadRules reads and validates the rules file. A missing file is not an
// error: the engine runs with no rules (everything allowed, nothing
// correlated, no escalation) until a file appears.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RuleSet{}, nil
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes a YAML rules document.
func ParseRules(data []byte) (*RuleSet, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	rs := &RuleSet{}

	for i, r := range file.SuppressionRules {
		if r.Action != models.RuleActionSuppress && r.Action != models.RuleActionAllow && r.Action != "" {
			return nil, fmt.Errorf("suppression rule %d (%s): unknown action %q", i, r.Name, r.Action)
		}
		rs.SuppressionRules = append(rs.SuppressionRules, models.AlertRule{
			Name:       r.Name,
			Severities: r.Severities,
			Component:  r.Component,
			Labels:     r.Labels,
			TimeWindow: time.Duration(r.TimeWindow),
			Action:     r.Action,
		})
	}

	for i, r := range file.CorrelationRules {
		if !r.MatchComponent && len(r.MatchLabels) == 0 && r.TimeWindow == 0 {
			return nil, fmt.Errorf("correlation rule %d (%s): no match dimension configured", i, r.Name)
		}
		maxCorr := r.MaxCorrelations
		if maxCorr <= 0 {
			maxCorr = 10
		}
		rs.CorrelationRules = append(rs.CorrelationRules, models.CorrelationRule{
			Name:            r.Name,
			MatchComponent:  r.MatchComponent,
			MatchLabels:     r.MatchLabels,
			TimeWindow:      time.Duration(r.TimeWindow),
			MaxCorrelations: maxCorr,
			Confidence:      r.Confidence,
		})
	}

	for _, p := range file.Policies {
		policy := models.EscalationPolicy{Severity: p.Severity}
		for j, l := range p.Levels {
			level := l.Level
			if level == 0 {
				level = j + 1
			}
			if level != j+1 {
				return nil, fmt.Errorf("escalation policy %s: level %d out of order", p.Severity, level)
			}
			policy.Levels = append(policy.Levels, models.EscalationLevel{
				Level:      level,
				Delay:      time.Duration(l.Delay),
				Channels:   l.Channels,
				Recipients: l.Recipients,
			})
		}
		rs.Policies = append(rs.Policies, policy)
	}

	return rs, nil
}
