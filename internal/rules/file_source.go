package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Rules []map[string]interface{} `yaml:"rules"`
}

// FileSource serves rules from a YAML document. The file is re-read when its modification
// time changes.
type FileSource struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	rules   []Rule
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) ListEnabled(ctx context.Context, scope Scope, limit int) ([]Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all, err := s.load()
	if err != nil {
		return nil, err
	}

	var out []Rule
	for _, r := range all {
		if !r.Enabled || r.OrganizationID != scope.OrganizationID {
			continue
		}
		if scope.ModuleName != "" && r.ModuleName != scope.ModuleName {
			continue
		}
		out = append(out, r)
	}

	sortByPriority(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FileSource) load() ([]Rule, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rules file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rules != nil && info.ModTime().Equal(s.modTime) {
		return s.rules, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	rules, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}

	s.rules = rules
	s.modTime = info.ModTime()
	return rules, nil
}

// ParseYAML decodes a rules document. Rules without an explicit enabled flag are enabled.
// A rule whose fields cannot be decoded is kept with its decode error so that only it is
// rejected; a document that is not valid YAML, or a rule without an id, fails as a whole.
func ParseYAML(data []byte) ([]Rule, error) {
	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid rules yaml: %w", err)
	}

	rules := make([]Rule, 0, len(doc.Rules))
	for i, raw := range doc.Rules {
		id, _ := raw["id"].(string)
		if id == "" {
			return nil, fmt.Errorf("rules[%d]: id is required", i)
		}
		if _, ok := raw["enabled"]; !ok {
			raw["enabled"] = true
		}

		rule, err := decodeFileRule(raw)
		if err != nil {
			rule = Rule{ID: id, decodeErr: err}
			rule.OrganizationID, _ = raw["organization_id"].(string)
			rule.ModuleName, _ = raw["module_name"].(string)
			rule.RuleName, _ = raw["rule_name"].(string)
			rule.Enabled, _ = raw["enabled"].(bool)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

// decodeFileRule re-encodes the YAML tree as JSON, since conditions carry JSON semantics.
func decodeFileRule(raw map[string]interface{}) (Rule, error) {
	parts := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		encoded, err := json.Marshal(v)
		if err != nil {
			return Rule{}, fmt.Errorf("field %s: %w", k, err)
		}
		parts[k] = encoded
	}

	conditions, actions, meta := parts["conditions"], parts["actions"], parts["metadata"]
	delete(parts, "conditions")
	delete(parts, "actions")
	delete(parts, "metadata")

	header, err := json.Marshal(parts)
	if err != nil {
		return Rule{}, err
	}
	var rule Rule
	if err := json.Unmarshal(header, &rule); err != nil {
		return Rule{}, err
	}

	if len(conditions) == 0 {
		conditions = json.RawMessage("{}")
	}
	decodeStored(&rule, conditions, actions, meta)
	return rule, nil
}
