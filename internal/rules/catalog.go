// Package rules holds the detection rule catalog.
//
// The catalog is data: an ordered list of named, case-insensitive patterns
// with a threshold and alert severity. Patterns are compiled with RE2, so
// matching is linear in the input and cannot backtrack catastrophically.
package rules

import (
	_ "embed"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/logwatch/internal/model"
)

//go:embed rules.yaml
var builtinYAML []byte

// Rule names in the built-in catalog.
const (
	BruteForce          = "brute_force"
	PrivilegeEscalation = "privilege_escalation"
	FileDeletion        = "file_deletion"
	PortScan            = "port_scan"
	SuspiciousNetwork   = "suspicious_network"
	MalwareIndicator    = "malware_indicator"
	DataExfiltration    = "data_exfiltration"
	AfterHoursAccess    = "after_hours_access"
)

// TrackByIP groups matches per source address before the threshold applies.
const TrackByIP = "ip"

// Rule is one compiled detection rule.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Threshold   int
	Severity    string
	Description string
	// TrackBy names the per-key bucket gating the threshold. Rules without
	// one fire on every matching record and ignore Threshold.
	TrackBy string
}

// Matches reports whether the rule pattern occurs anywhere in message.
func (r *Rule) Matches(message string) bool {
	return r.Pattern.MatchString(message)
}

// Tracked reports whether the rule uses a per-key threshold.
func (r *Rule) Tracked() bool {
	return r.TrackBy != ""
}

// Catalog is an ordered, immutable set of rules.
type Catalog struct {
	rules  []*Rule
	byName map[string]*Rule
}

// Rules returns the rules in evaluation order. The slice must not be modified.
func (c *Catalog) Rules() []*Rule {
	return c.rules
}

// Len returns the number of rules.
func (c *Catalog) Len() int {
	return len(c.rules)
}

// Get returns the rule with the given name.
func (c *Catalog) Get(name string) (*Rule, bool) {
	r, ok := c.byName[name]
	return r, ok
}

type ruleSpec struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Threshold   int    `yaml:"threshold"`
	Severity    string `yaml:"severity"`
	Description string `yaml:"description"`
	TrackBy     string `yaml:"track_by"`
}

type catalogFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

var builtin *Catalog

func init() {
	c, err := Parse(builtinYAML)
	if err != nil {
		panic(fmt.Sprintf("rules: built-in catalog: %v", err))
	}
	builtin = c
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return builtin
}

// Load reads and validates a catalog from r.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("rules: read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("rules: decode catalog: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, &ValidationError{Reason: "catalog has no rules"}
	}

	c := &Catalog{
		rules:  make([]*Rule, 0, len(file.Rules)),
		byName: make(map[string]*Rule, len(file.Rules)),
	}
	for i, spec := range file.Rules {
		rule, err := compile(spec)
		if err != nil {
			if verr, ok := err.(*ValidationError); ok {
				verr.Index = i
			}
			return nil, err
		}
		if _, dup := c.byName[rule.Name]; dup {
			return nil, &ValidationError{Index: i, Rule: rule.Name, Reason: "duplicate rule name"}
		}
		c.rules = append(c.rules, rule)
		c.byName[rule.Name] = rule
	}
	return c, nil
}

func compile(spec ruleSpec) (*Rule, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, &ValidationError{Reason: "rule name is empty"}
	}
	if spec.Pattern == "" {
		return nil, &ValidationError{Rule: name, Reason: "pattern is empty"}
	}
	if spec.Threshold < 1 {
		return nil, &ValidationError{Rule: name, Reason: fmt.Sprintf("threshold %d is below 1", spec.Threshold)}
	}
	severity := strings.ToUpper(strings.TrimSpace(spec.Severity))
	switch severity {
	case model.AlertCritical, model.AlertHigh, model.AlertMedium, model.AlertLow:
	default:
		return nil, &ValidationError{Rule: name, Reason: fmt.Sprintf("unknown severity %q", spec.Severity)}
	}
	switch spec.TrackBy {
	case "", TrackByIP:
	default:
		return nil, &ValidationError{Rule: name, Reason: fmt.Sprintf("unknown track_by %q", spec.TrackBy)}
	}

	re, err := regexp.Compile("(?i)" + spec.Pattern)
	if err != nil {
		return nil, &ValidationError{Rule: name, Reason: "pattern does not compile", Err: err}
	}

	return &Rule{
		Name:        name,
		Pattern:     re,
		Threshold:   spec.Threshold,
		Severity:    severity,
		Description: spec.Description,
		TrackBy:     spec.TrackBy,
	}, nil
}
