package integration

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// ValueType
// ---------------------------------------------------------------------------

// ValueType is the declared type of a mapped field. It selects the conversion
// applied in each direction.
type ValueType string

const (
	ValueTypeText        ValueType = "text"
	ValueTypeNumber      ValueType = "number"
	ValueTypeSelect      ValueType = "select"
	ValueTypeMultiSelect ValueType = "multiselect"
	ValueTypeCheckbox    ValueType = "checkbox"
	ValueTypePhone       ValueType = "phone"
	ValueTypeEmail       ValueType = "email"
	ValueTypeURL         ValueType = "url"
	ValueTypeDate        ValueType = "date"
	ValueTypeTime        ValueType = "time"
	ValueTypeLookup      ValueType = "lookup"
	// ValueTypeAttachment is only used by media mappings
	ValueTypeAttachment ValueType = "attachment"
)

// IsValid returns true if the value type is known
func (t ValueType) IsValid() bool {
	switch t {
	case ValueTypeText, ValueTypeNumber, ValueTypeSelect, ValueTypeMultiSelect,
		ValueTypeCheckbox, ValueTypePhone, ValueTypeEmail, ValueTypeURL,
		ValueTypeDate, ValueTypeTime, ValueTypeLookup, ValueTypeAttachment:
		return true
	default:
		return false
	}
}

// String returns the string representation of ValueType
func (t ValueType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// Direction
// ---------------------------------------------------------------------------

// Direction constrains which sync passes touch a mapping.
type Direction string

const (
	DirectionToRemote   Direction = "to-remote"
	DirectionFromRemote Direction = "from-remote"
	DirectionBoth       Direction = "both"
)

// IsValid returns true if the direction is known
func (d Direction) IsValid() bool {
	switch d {
	case DirectionToRemote, DirectionFromRemote, DirectionBoth:
		return true
	default:
		return false
	}
}

// AppliesToPull reports whether a pull pass (remote -> local) uses the mapping
func (d Direction) AppliesToPull() bool {
	return d == DirectionFromRemote || d == DirectionBoth
}

// AppliesToPush reports whether a push pass (local -> remote) uses the mapping
func (d Direction) AppliesToPush() bool {
	return d == DirectionToRemote || d == DirectionBoth
}

// ---------------------------------------------------------------------------
// FieldMapping
// ---------------------------------------------------------------------------

// SelectOption pairs a local enumeration value with its remote display label.
type SelectOption struct {
	Value string
	Label string
}

// FieldMapping describes how one local attribute corresponds to one remote field.
type FieldMapping struct {
	// LocalName is the attribute name on the local entity (core names: title, body, status, id)
	LocalName string
	// RemoteName is the field name in the remote table
	RemoteName string
	// Type selects the value conversion
	Type ValueType
	// Direction limits the passes that use this mapping, defaults to both
	Direction Direction
	// Options is the ordered local value -> remote label table used by select fields
	Options []SelectOption
	// LookupEntityType is the referenced entity type of a lookup field
	LookupEntityType string
	// LookupDisplayField is the remote field shown for the referenced record
	LookupDisplayField string
}

// Validate checks the mapping is usable
func (m FieldMapping) Validate() error {
	if strings.TrimSpace(m.LocalName) == "" {
		return fmt.Errorf("%w: local name is required", ErrInvalidFieldMapping)
	}
	if strings.TrimSpace(m.RemoteName) == "" {
		return fmt.Errorf("%w: %s: remote name is required", ErrInvalidFieldMapping, m.LocalName)
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("%w: %s: unknown type %q", ErrInvalidFieldMapping, m.LocalName, m.Type)
	}
	if m.Type == ValueTypeAttachment {
		return fmt.Errorf("%w: %s: attachment fields belong in media mappings", ErrInvalidFieldMapping, m.LocalName)
	}
	if !m.Direction.IsValid() {
		return fmt.Errorf("%w: %s: unknown direction %q", ErrInvalidFieldMapping, m.LocalName, m.Direction)
	}
	if m.Type == ValueTypeSelect && len(m.Options) == 0 {
		return fmt.Errorf("%w: %s: select field needs options", ErrInvalidFieldMapping, m.LocalName)
	}
	if m.Type == ValueTypeLookup && m.LookupEntityType == "" {
		return fmt.Errorf("%w: %s: lookup field needs a target entity type", ErrInvalidFieldMapping, m.LocalName)
	}
	return nil
}

// LabelFor returns the remote label of a local option value
func (m FieldMapping) LabelFor(value string) (string, bool) {
	for _, o := range m.Options {
		if o.Value == value {
			return o.Label, true
		}
	}
	return "", false
}

// ValueFor returns the local option value of a remote label. An exact match
// wins over a case-insensitive one.
func (m FieldMapping) ValueFor(label string) (string, bool) {
	for _, o := range m.Options {
		if o.Label == label {
			return o.Value, true
		}
	}
	for _, o := range m.Options {
		if strings.EqualFold(o.Label, label) {
			return o.Value, true
		}
	}
	return "", false
}

// clone returns a deep copy so registered mappings cannot be mutated through aliases
func (m FieldMapping) clone() FieldMapping {
	if m.Options != nil {
		opts := make([]SelectOption, len(m.Options))
		copy(opts, m.Options)
		m.Options = opts
	}
	return m
}

// ---------------------------------------------------------------------------
// MediaMapping
// ---------------------------------------------------------------------------

// MediaMapping ties a local attachment attribute to a remote attachment field.
// The local attribute holds storage keys; the remote field holds attachment objects.
type MediaMapping struct {
	LocalName  string
	RemoteName string
	Direction  Direction
}

// AsFieldMapping exposes the media mapping to the conversion layer
func (m MediaMapping) AsFieldMapping() FieldMapping {
	return FieldMapping{
		LocalName:  m.LocalName,
		RemoteName: m.RemoteName,
		Type:       ValueTypeAttachment,
		Direction:  m.Direction,
	}
}
