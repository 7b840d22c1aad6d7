package integration

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// ValidationRule
// ---------------------------------------------------------------------------

// RuleType is the value check of a validation rule
type RuleType string

const (
	RuleTypeEmail   RuleType = "email"
	RuleTypeURL     RuleType = "url"
	RuleTypePhone   RuleType = "phone"
	RuleTypeInteger RuleType = "integer"
)

// ValidationRule is the declarative rule set of one local field.
// Zero values disable the corresponding check.
type ValidationRule struct {
	Required  bool
	Type      RuleType
	Min       *decimal.Decimal
	Max       *decimal.Decimal
	MaxLength int
	Pattern   string
}

func (r ValidationRule) validate(field string) error {
	switch r.Type {
	case "", RuleTypeEmail, RuleTypeURL, RuleTypePhone, RuleTypeInteger:
	default:
		return fmt.Errorf("%w: %s: unknown type %q", ErrInvalidValidationRule, field, r.Type)
	}
	if r.Min != nil && r.Max != nil && r.Min.GreaterThan(*r.Max) {
		return fmt.Errorf("%w: %s: min exceeds max", ErrInvalidValidationRule, field)
	}
	if r.MaxLength < 0 {
		return fmt.Errorf("%w: %s: negative max length", ErrInvalidValidationRule, field)
	}
	if r.Pattern != "" {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidValidationRule, field, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// RemoteKind
// ---------------------------------------------------------------------------

// RemoteKind is the runtime kind diagnostics expects a remote field to carry.
type RemoteKind string

const (
	RemoteKindNumber  RemoteKind = "number"
	RemoteKindInteger RemoteKind = "integer"
	RemoteKindBoolean RemoteKind = "boolean"
	RemoteKindArray   RemoteKind = "array"
	// RemoteKindCodeString marks string codes (zip, MLS number) that lose
	// leading zeros when the remote column is redefined as a number
	RemoteKindCodeString RemoteKind = "code-string"
)

// ---------------------------------------------------------------------------
// EntityTypeProfile
// ---------------------------------------------------------------------------

// EntityTypeProfile is the immutable schema of one synchronized entity type.
type EntityTypeProfile struct {
	entityType string
	tableName  string
	mappings   []FieldMapping
	media      []MediaMapping
	rules      map[string]ValidationRule
	expected   map[string]RemoteKind
}

// ProfileOption configures optional parts of a profile
type ProfileOption func(*EntityTypeProfile)

// WithMediaMappings declares attachment fields
func WithMediaMappings(media ...MediaMapping) ProfileOption {
	return func(p *EntityTypeProfile) {
		p.media = append(p.media, media...)
	}
}

// WithValidationRules declares rules keyed by local field name
func WithValidationRules(rules map[string]ValidationRule) ProfileOption {
	return func(p *EntityTypeProfile) {
		for k, v := range rules {
			p.rules[k] = v
		}
	}
}

// WithExpectedKinds declares the remote kinds checked by diagnostics, keyed by remote field name
func WithExpectedKinds(kinds map[string]RemoteKind) ProfileOption {
	return func(p *EntityTypeProfile) {
		for k, v := range kinds {
			p.expected[k] = v
		}
	}
}

// NewEntityTypeProfile validates and copies mappings into a new profile
func NewEntityTypeProfile(entityType, tableName string, mappings []FieldMapping, opts ...ProfileOption) (*EntityTypeProfile, error) {
	if strings.TrimSpace(entityType) == "" {
		return nil, ErrInvalidEntityType
	}
	p := &EntityTypeProfile{
		entityType: entityType,
		tableName:  tableName,
		mappings:   make([]FieldMapping, 0, len(mappings)),
		rules:      make(map[string]ValidationRule),
		expected:   make(map[string]RemoteKind),
	}
	seen := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		m = m.clone()
		if m.Direction == "" {
			m.Direction = DirectionBoth
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if seen[m.LocalName] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFieldMapping, m.LocalName)
		}
		seen[m.LocalName] = true
		p.mappings = append(p.mappings, m)
	}
	for _, opt := range opts {
		opt(p)
	}
	for i, mm := range p.media {
		if mm.Direction == "" {
			p.media[i].Direction = DirectionBoth
		}
		if mm.LocalName == "" || mm.RemoteName == "" {
			return nil, fmt.Errorf("%w: media mapping needs local and remote names", ErrInvalidFieldMapping)
		}
		if seen[mm.LocalName] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFieldMapping, mm.LocalName)
		}
		seen[mm.LocalName] = true
	}
	for field, rule := range p.rules {
		if err := rule.validate(field); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// MustEntityTypeProfile is NewEntityTypeProfile for static declarations; it panics on error
func MustEntityTypeProfile(entityType, tableName string, mappings []FieldMapping, opts ...ProfileOption) *EntityTypeProfile {
	p, err := NewEntityTypeProfile(entityType, tableName, mappings, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// EntityType returns the profile's entity type name
func (p *EntityTypeProfile) EntityType() string { return p.entityType }

// TableName returns the default remote table of the entity type
func (p *EntityTypeProfile) TableName() string { return p.tableName }

// Mappings returns a copy of every field mapping in declaration order
func (p *EntityTypeProfile) Mappings() []FieldMapping {
	out := make([]FieldMapping, len(p.mappings))
	for i, m := range p.mappings {
		out[i] = m.clone()
	}
	return out
}

// Mapping returns the mapping of a local field
func (p *EntityTypeProfile) Mapping(localName string) (FieldMapping, bool) {
	for _, m := range p.mappings {
		if m.LocalName == localName {
			return m.clone(), true
		}
	}
	return FieldMapping{}, false
}

// PullMappings returns the mappings used by a pull pass
func (p *EntityTypeProfile) PullMappings() []FieldMapping {
	return p.filter(Direction.AppliesToPull)
}

// PushMappings returns the mappings used by a push pass
func (p *EntityTypeProfile) PushMappings() []FieldMapping {
	return p.filter(Direction.AppliesToPush)
}

func (p *EntityTypeProfile) filter(keep func(Direction) bool) []FieldMapping {
	out := make([]FieldMapping, 0, len(p.mappings))
	for _, m := range p.mappings {
		if keep(m.Direction) {
			out = append(out, m.clone())
		}
	}
	return out
}

// MediaMappings returns a copy of the attachment mappings
func (p *EntityTypeProfile) MediaMappings() []MediaMapping {
	out := make([]MediaMapping, len(p.media))
	copy(out, p.media)
	return out
}

// Rule returns the validation rule of a local field. Unknown fields have none.
func (p *EntityTypeProfile) Rule(field string) (ValidationRule, bool) {
	r, ok := p.rules[field]
	return r, ok
}

// ExpectedKinds returns a copy of the diagnostics table
func (p *EntityTypeProfile) ExpectedKinds() map[string]RemoteKind {
	out := make(map[string]RemoteKind, len(p.expected))
	for k, v := range p.expected {
		out[k] = v
	}
	return out
}
