package desensitize

import (
	"fmt"
	"regexp"
	"sync/atomic"
)

// Rule masks sensitive parts of a log line.
type Rule interface {
	Name() string
	Enabled() bool
	SetEnabled(enabled bool)
	Process(s string) string
}

// ContentRule replaces every match of a pattern anywhere in the line.
type ContentRule struct {
	name        string
	pattern     *regexp.Regexp
	replacement string
	enabled     atomic.Bool
}

func NewContentRule(name, pattern, replacement string) (*ContentRule, error) {
	if name == "" {
		return nil, fmt.Errorf("rule name cannot be empty")
	}
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
	}

	r := &ContentRule{name: name, pattern: regex, replacement: replacement}
	r.enabled.Store(true)
	return r, nil
}

func MustNewContentRule(name, pattern, replacement string) *ContentRule {
	rule, err := NewContentRule(name, pattern, replacement)
	if err != nil {
		panic(err)
	}
	return rule
}

func (r *ContentRule) Name() string            { return r.name }
func (r *ContentRule) Enabled() bool           { return r.enabled.Load() }
func (r *ContentRule) SetEnabled(enabled bool) { r.enabled.Store(enabled) }

func (r *ContentRule) Process(s string) string {
	if !r.Enabled() {
		return s
	}
	return r.pattern.ReplaceAllString(s, r.replacement)
}

// FieldRule replaces the string value of a JSON field. The field name match
// is case-insensitive so "refreshToken" and "refresh_token" style keys can
// share one rule each.
type FieldRule struct {
	name        string
	replacement string
	jsonPattern *regexp.Regexp
	enabled     atomic.Bool
}

func NewFieldRule(name, fieldName, replacement string) (*FieldRule, error) {
	if name == "" {
		return nil, fmt.Errorf("rule name cannot be empty")
	}
	if fieldName == "" {
		return nil, fmt.Errorf("field name cannot be empty")
	}

	jsonPattern, err := regexp.Compile(fmt.Sprintf(`(?i)("%s"\s*:\s*")(?:[^"\\]|\\.)*(")`, regexp.QuoteMeta(fieldName)))
	if err != nil {
		return nil, fmt.Errorf("failed to compile json pattern: %w", err)
	}

	r := &FieldRule{name: name, replacement: replacement, jsonPattern: jsonPattern}
	r.enabled.Store(true)
	return r, nil
}

func MustNewFieldRule(name, fieldName, replacement string) *FieldRule {
	rule, err := NewFieldRule(name, fieldName, replacement)
	if err != nil {
		panic(err)
	}
	return rule
}

func (r *FieldRule) Name() string            { return r.name }
func (r *FieldRule) Enabled() bool           { return r.enabled.Load() }
func (r *FieldRule) SetEnabled(enabled bool) { r.enabled.Store(enabled) }

func (r *FieldRule) Process(s string) string {
	if !r.Enabled() {
		return s
	}
	return r.jsonPattern.ReplaceAllString(s, "${1}"+r.replacement+"${2}")
}
