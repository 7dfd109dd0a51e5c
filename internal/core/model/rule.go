package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// RuleKind is the wire tag of a rule.
type RuleKind string

const (
	KindBlockURL      RuleKind = "block-url"
	KindBlockCategory RuleKind = "block-category"
	KindLimitURL      RuleKind = "limit-url"
	KindLimitCategory RuleKind = "limit-category"
)

// ErrInvalidRule indicates a rule that cannot be decoded or violates its invariants.
var ErrInvalidRule = errors.New("invalid rule")

// Rule is a closed set of blocking and limiting rules. The unexported method
// keeps the set closed; RuleVisitor gives exhaustive dispatch over it.
type Rule interface {
	Kind() RuleKind
	Value() string
	Accept(visitor RuleVisitor)
	isRule()
}

// RuleVisitor must handle every rule kind.
type RuleVisitor interface {
	VisitBlockURL(rule BlockURL)
	VisitBlockCategory(rule BlockCategory)
	VisitLimitURL(rule LimitURL)
	VisitLimitCategory(rule LimitCategory)
}

// BlockURL blocks a domain pattern, optionally on a schedule.
type BlockURL struct {
	Pattern  string
	Schedule Schedule
}

// BlockCategory blocks every domain assigned to a category, optionally on a schedule.
type BlockCategory struct {
	Category string
	Schedule Schedule
}

// LimitURL caps daily time on a domain pattern.
type LimitURL struct {
	Pattern      string
	LimitSeconds int
}

// LimitCategory caps daily time on a category.
type LimitCategory struct {
	Category     string
	LimitSeconds int
}

func (rule BlockURL) Kind() RuleKind                  { return KindBlockURL }
func (rule BlockURL) Value() string                   { return rule.Pattern }
func (rule BlockURL) Accept(visitor RuleVisitor)      { visitor.VisitBlockURL(rule) }
func (BlockURL) isRule()                              {}
func (rule BlockCategory) Kind() RuleKind             { return KindBlockCategory }
func (rule BlockCategory) Value() string              { return rule.Category }
func (rule BlockCategory) Accept(visitor RuleVisitor) { visitor.VisitBlockCategory(rule) }
func (BlockCategory) isRule()                         {}
func (rule LimitURL) Kind() RuleKind                  { return KindLimitURL }
func (rule LimitURL) Value() string                   { return rule.Pattern }
func (rule LimitURL) Accept(visitor RuleVisitor)      { visitor.VisitLimitURL(rule) }
func (LimitURL) isRule()                              {}
func (rule LimitCategory) Kind() RuleKind             { return KindLimitCategory }
func (rule LimitCategory) Value() string              { return rule.Category }
func (rule LimitCategory) Accept(visitor RuleVisitor) { visitor.VisitLimitCategory(rule) }
func (LimitCategory) isRule()                         {}

// EphemeralBlock builds the rule injected while a Work phase blocks a category.
func EphemeralBlock(category string) Rule {
	return BlockCategory{Category: category}
}

// wireRule is the persisted JSON shape of every rule kind.
type wireRule struct {
	Type         RuleKind `json:"type"`
	Value        string   `json:"value"`
	LimitSeconds *int     `json:"limitSeconds,omitempty"`
	StartTime    string   `json:"startTime,omitempty"`
	EndTime      string   `json:"endTime,omitempty"`
	Days         []string `json:"days,omitempty"`
}

type wireEncoder struct{ out wireRule }

func (encoder *wireEncoder) VisitBlockURL(rule BlockURL) {
	encoder.out = scheduledWire(KindBlockURL, rule.Pattern, rule.Schedule)
}

func (encoder *wireEncoder) VisitBlockCategory(rule BlockCategory) {
	encoder.out = scheduledWire(KindBlockCategory, rule.Category, rule.Schedule)
}

func (encoder *wireEncoder) VisitLimitURL(rule LimitURL) {
	limit := rule.LimitSeconds
	encoder.out = wireRule{Type: KindLimitURL, Value: rule.Pattern, LimitSeconds: &limit}
}

func (encoder *wireEncoder) VisitLimitCategory(rule LimitCategory) {
	limit := rule.LimitSeconds
	encoder.out = wireRule{Type: KindLimitCategory, Value: rule.Category, LimitSeconds: &limit}
}

func scheduledWire(kind RuleKind, value string, schedule Schedule) wireRule {
	return wireRule{
		Type:      kind,
		Value:     value,
		StartTime: schedule.StartTime,
		EndTime:   schedule.EndTime,
		Days:      schedule.DayCodes(),
	}
}

// EncodeRule converts a rule to its wire shape.
func EncodeRule(rule Rule) ([]byte, error) {
	encoder := &wireEncoder{}
	rule.Accept(encoder)
	return json.Marshal(encoder.out)
}

// DecodeRule parses and validates a single wire rule.
func DecodeRule(raw []byte) (Rule, error) {
	var wire wireRule
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return wire.toRule()
}

func (wire wireRule) toRule() (Rule, error) {
	value := strings.TrimSpace(wire.Value)
	if value == "" {
		return nil, fmt.Errorf("%w: %s rule has empty value", ErrInvalidRule, wire.Type)
	}

	switch wire.Type {
	case KindBlockURL, KindBlockCategory:
		if wire.LimitSeconds != nil {
			return nil, fmt.Errorf("%w: %s rule cannot carry a limit", ErrInvalidRule, wire.Type)
		}
		days, err := ParseDays(wire.Days)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		schedule := Schedule{StartTime: wire.StartTime, EndTime: wire.EndTime, Days: days}
		if err := schedule.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		if wire.Type == KindBlockURL {
			return BlockURL{Pattern: value, Schedule: schedule}, nil
		}
		return BlockCategory{Category: value, Schedule: schedule}, nil
	case KindLimitURL, KindLimitCategory:
		if wire.LimitSeconds == nil || *wire.LimitSeconds <= 0 {
			return nil, fmt.Errorf("%w: %s rule needs a positive limitSeconds", ErrInvalidRule, wire.Type)
		}
		if wire.StartTime != "" || wire.EndTime != "" || len(wire.Days) > 0 {
			return nil, fmt.Errorf("%w: %s rule cannot carry a schedule", ErrInvalidRule, wire.Type)
		}
		if wire.Type == KindLimitURL {
			return LimitURL{Pattern: value, LimitSeconds: *wire.LimitSeconds}, nil
		}
		return LimitCategory{Category: value, LimitSeconds: *wire.LimitSeconds}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidRule, wire.Type)
	}
}

// Rules is an ordered rule list with a JSON array codec.
type Rules []Rule

// MarshalJSON encodes every rule in its wire shape.
func (rules Rules) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(rules))
	for _, rule := range rules {
		encoded, err := EncodeRule(rule)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded)
	}
	return json.Marshal(out)
}

// UnmarshalJSON is strict: any invalid element fails the whole list.
func (rules *Rules) UnmarshalJSON(data []byte) error {
	decoded, skipped, err := DecodeRules(data)
	if err != nil {
		return err
	}
	if len(skipped) > 0 {
		return skipped[0]
	}
	*rules = decoded
	return nil
}

// DecodeRules parses a JSON array of rules, keeping valid elements in order
// and reporting invalid ones separately. A malformed array is an error.
func DecodeRules(data []byte) (Rules, []error, error) {
	if len(data) == 0 || string(data) == "null" {
		return Rules{}, nil, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, fmt.Errorf("decode rule list: %w", err)
	}
	rules := make(Rules, 0, len(raws))
	var skipped []error
	for index, raw := range raws {
		rule, err := DecodeRule(raw)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("rule %d: %w", index, err))
			continue
		}
		rules = append(rules, rule)
	}
	return rules, skipped, nil
}
