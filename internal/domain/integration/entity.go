package integration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Core field names routed to LocalEntity's own attributes instead of Attributes
const (
	FieldID     = "id"
	FieldTitle  = "title"
	FieldBody   = "body"
	FieldStatus = "status"
)

// Entity types with dedicated profiles
const (
	EntityTypeListing   = "listing"
	EntityTypeAgent     = "agent"
	EntityTypeCommunity = "community"
	EntityTypeOpenHouse = "open_house"
)

// LocalEntity is a content item of the local store. ExternalRecordID is the
// correlation with a remote record; empty means unlinked.
type LocalEntity struct {
	ID               uuid.UUID
	EntityType       string
	Title            string
	Body             string
	Status           string
	Attributes       map[string]any
	Terms            map[string][]string
	ExternalRecordID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewLocalEntity creates an unlinked entity of the given type
func NewLocalEntity(entityType string) (*LocalEntity, error) {
	if entityType == "" {
		return nil, ErrInvalidEntityType
	}
	now := time.Now()
	return &LocalEntity{
		ID:         uuid.New(),
		EntityType: entityType,
		Status:     "draft",
		Attributes: make(map[string]any),
		Terms:      make(map[string][]string),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Field reads a core or custom attribute by local name
func (e *LocalEntity) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return e.ID.String(), true
	case FieldTitle:
		return e.Title, true
	case FieldBody:
		return e.Body, true
	case FieldStatus:
		return e.Status, true
	}
	v, ok := e.Attributes[name]
	return v, ok
}

// SetField writes a core or custom attribute by local name. A nil value
// removes a custom attribute.
func (e *LocalEntity) SetField(name string, value any) error {
	switch name {
	case FieldID:
		return fmt.Errorf("%w: %s", ErrReadOnlyField, name)
	case FieldTitle:
		e.Title = stringOf(value)
		return nil
	case FieldBody:
		e.Body = stringOf(value)
		return nil
	case FieldStatus:
		e.Status = stringOf(value)
		return nil
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	if value == nil {
		delete(e.Attributes, name)
		return nil
	}
	e.Attributes[name] = value
	return nil
}

// SetTerms replaces the terms of a taxonomy
func (e *LocalEntity) SetTerms(taxonomy string, terms ...string) {
	if e.Terms == nil {
		e.Terms = make(map[string][]string)
	}
	if len(terms) == 0 {
		delete(e.Terms, taxonomy)
		return
	}
	e.Terms[taxonomy] = append([]string(nil), terms...)
}

// IsLinked reports whether the entity is correlated with a remote record
func (e *LocalEntity) IsLinked() bool {
	return e.ExternalRecordID != ""
}

// Link records the correlation. A correlation is never regenerated: linking
// to the same record is a no-op, linking to a different one is a conflict.
func (e *LocalEntity) Link(recordID string) error {
	if recordID == "" {
		return ErrInvalidRecordID
	}
	if e.ExternalRecordID == recordID {
		return nil
	}
	if e.ExternalRecordID != "" {
		return fmt.Errorf("%w: %s is linked to %s", ErrCorrelationConflict, e.ID, e.ExternalRecordID)
	}
	e.ExternalRecordID = recordID
	return nil
}

// Touch marks the entity as modified
func (e *LocalEntity) Touch() {
	e.UpdatedAt = time.Now()
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// EntityFilter selects local entities for listing
type EntityFilter struct {
	EntityType string
	Page       int
	PageSize   int
}

// Offset returns the row offset of the page
func (f EntityFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}
