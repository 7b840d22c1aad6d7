package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// LocalEntityModel is the persistence model for integration.LocalEntity.
// Custom attributes and taxonomy terms are stored as JSON documents.
type LocalEntityModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key"`
	EntityType       string    `gorm:"type:varchar(50);not null;index:idx_local_entity_type_record,priority:1;index:idx_local_entity_type_created,priority:1"`
	Title            string    `gorm:"type:varchar(500);not null;default:''"`
	Body             string    `gorm:"type:text"`
	Status           string    `gorm:"type:varchar(20);not null;default:'draft'"`
	AttributesJSON   string    `gorm:"type:jsonb;column:attributes;not null;default:'{}'"`
	TermsJSON        string    `gorm:"type:jsonb;column:terms;not null;default:'{}'"`
	ExternalRecordID string    `gorm:"type:varchar(64);index:idx_local_entity_type_record,priority:2"`
	CreatedAt        time.Time `gorm:"not null;index:idx_local_entity_type_created,priority:2"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LocalEntityModel) TableName() string {
	return "local_entities"
}

// ToDomain converts the model to a domain entity. Malformed JSON documents
// decode as empty maps.
func (m *LocalEntityModel) ToDomain() *integration.LocalEntity {
	e := &integration.LocalEntity{
		ID:               m.ID,
		EntityType:       m.EntityType,
		Title:            m.Title,
		Body:             m.Body,
		Status:           m.Status,
		Attributes:       make(map[string]any),
		Terms:            make(map[string][]string),
		ExternalRecordID: m.ExternalRecordID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.AttributesJSON != "" {
		var attrs map[string]any
		if err := json.Unmarshal([]byte(m.AttributesJSON), &attrs); err == nil && attrs != nil {
			e.Attributes = attrs
		}
	}
	if m.TermsJSON != "" {
		var terms map[string][]string
		if err := json.Unmarshal([]byte(m.TermsJSON), &terms); err == nil && terms != nil {
			e.Terms = terms
		}
	}
	return e
}

// FromDomain populates the model from a domain entity
func (m *LocalEntityModel) FromDomain(e *integration.LocalEntity) error {
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	terms := e.Terms
	if terms == nil {
		terms = map[string][]string{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	termsJSON, err := json.Marshal(terms)
	if err != nil {
		return err
	}

	m.ID = e.ID
	m.EntityType = e.EntityType
	m.Title = e.Title
	m.Body = e.Body
	m.Status = e.Status
	m.AttributesJSON = string(attrsJSON)
	m.TermsJSON = string(termsJSON)
	m.ExternalRecordID = e.ExternalRecordID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
	return nil
}

// SyncRetryModel is the persistence model for integration.RetryItem
type SyncRetryModel struct {
	ID            uuid.UUID               `gorm:"type:uuid;primary_key"`
	EntityID      uuid.UUID               `gorm:"type:uuid;not null;index"`
	EntityType    string                  `gorm:"type:varchar(50);not null"`
	Status        integration.RetryStatus `gorm:"type:varchar(20);not null;index:idx_sync_retry_due,priority:1"`
	Attempts      int                     `gorm:"not null;default:0"`
	MaxAttempts   int                     `gorm:"not null"`
	LastError     string                  `gorm:"type:text"`
	NextAttemptAt time.Time               `gorm:"not null;index:idx_sync_retry_due,priority:2"`
	CreatedAt     time.Time               `gorm:"not null"`
	UpdatedAt     time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncRetryModel) TableName() string {
	return "sync_retries"
}

// ToDomain converts the model to a domain retry item
func (m *SyncRetryModel) ToDomain() integration.RetryItem {
	return integration.RetryItem{
		ID:            m.ID,
		EntityID:      m.EntityID,
		EntityType:    m.EntityType,
		Status:        m.Status,
		Attempts:      m.Attempts,
		MaxAttempts:   m.MaxAttempts,
		LastError:     m.LastError,
		NextAttemptAt: m.NextAttemptAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomain populates the model from a domain retry item
func (m *SyncRetryModel) FromDomain(item *integration.RetryItem) {
	m.ID = item.ID
	m.EntityID = item.EntityID
	m.EntityType = item.EntityType
	m.Status = item.Status
	m.Attempts = item.Attempts
	m.MaxAttempts = item.MaxAttempts
	m.LastError = item.LastError
	m.NextAttemptAt = item.NextAttemptAt
	m.CreatedAt = item.CreatedAt
	m.UpdatedAt = item.UpdatedAt
}

// DegradationEventModel is the persistence model for integration.DegradationEvent
type DegradationEventModel struct {
	ID          uuid.UUID                     `gorm:"type:uuid;primary_key"`
	EntityType  string                        `gorm:"type:varchar(50);not null;index:idx_degradation_type_time,priority:1"`
	EntityID    string                        `gorm:"type:varchar(64)"`
	RecordID    string                        `gorm:"type:varchar(64)"`
	LocalField  string                        `gorm:"type:varchar(100)"`
	RemoteField string                        `gorm:"type:varchar(100)"`
	ValueType   integration.ValueType         `gorm:"type:varchar(20);not null"`
	Direction   integration.SyncDirection     `gorm:"type:varchar(10);not null"`
	Value       string                        `gorm:"type:text"`
	Reason      integration.DegradationReason `gorm:"type:varchar(40);not null;index"`
	OccurredAt  time.Time                     `gorm:"not null;index:idx_degradation_type_time,priority:2"`
}

// TableName returns the table name for GORM
func (DegradationEventModel) TableName() string {
	return "sync_degradations"
}

// ToDomain converts the model to a domain event
func (m *DegradationEventModel) ToDomain() integration.DegradationEvent {
	return integration.DegradationEvent{
		ID:          m.ID,
		EntityType:  m.EntityType,
		EntityID:    m.EntityID,
		RecordID:    m.RecordID,
		LocalField:  m.LocalField,
		RemoteField: m.RemoteField,
		ValueType:   m.ValueType,
		Direction:   m.Direction,
		Value:       m.Value,
		Reason:      m.Reason,
		OccurredAt:  m.OccurredAt,
	}
}

// FromDomain populates the model from a domain event
func (m *DegradationEventModel) FromDomain(e integration.DegradationEvent) {
	m.ID = e.ID
	m.EntityType = e.EntityType
	m.EntityID = e.EntityID
	m.RecordID = e.RecordID
	m.LocalField = e.LocalField
	m.RemoteField = e.RemoteField
	m.ValueType = e.ValueType
	m.Direction = e.Direction
	m.Value = e.Value
	m.Reason = e.Reason
	m.OccurredAt = e.OccurredAt
}
