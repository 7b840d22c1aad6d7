package integration

import (
	"context"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// OpenHouseProfile returns the open house schema
func OpenHouseProfile() *integration.EntityTypeProfile {
	mappings := []integration.FieldMapping{
		{LocalName: integration.FieldTitle, RemoteName: "Name", Type: integration.ValueTypeText},
		{LocalName: integration.FieldBody, RemoteName: "Notes", Type: integration.ValueTypeText},
		{LocalName: "listing", RemoteName: "Listing", Type: integration.ValueTypeLookup, LookupEntityType: integration.EntityTypeListing, LookupDisplayField: "Address"},
		{LocalName: "hosting_agent", RemoteName: "Host Agent", Type: integration.ValueTypeLookup, LookupEntityType: integration.EntityTypeAgent, LookupDisplayField: "Name"},
		{LocalName: "event_date", RemoteName: "Date", Type: integration.ValueTypeDate},
		{LocalName: "start_time", RemoteName: "Start Time", Type: integration.ValueTypeTime},
		{LocalName: "end_time", RemoteName: "End Time", Type: integration.ValueTypeTime},
		{LocalName: "open_house_status", RemoteName: "Status", Type: integration.ValueTypeSelect, Options: []integration.SelectOption{
			{Value: "scheduled", Label: "Scheduled"},
			{Value: "cancelled", Label: "Cancelled"},
			{Value: "completed", Label: "Completed"},
		}},
		{LocalName: "virtual", RemoteName: "Virtual", Type: integration.ValueTypeCheckbox},
		{LocalName: "virtual_url", RemoteName: "Virtual Link", Type: integration.ValueTypeURL},
		{LocalName: "rsvp_count", RemoteName: "RSVP Count", Type: integration.ValueTypeNumber, Direction: integration.DirectionFromRemote},
	}

	return integration.MustEntityTypeProfile(integration.EntityTypeOpenHouse, "Open Houses", mappings,
		integration.WithValidationRules(map[string]integration.ValidationRule{
			"event_date":  {Required: true, Pattern: `^\d{4}-\d{2}-\d{2}$`},
			"virtual_url": {Type: integration.RuleTypeURL},
			"rsvp_count":  {Type: integration.RuleTypeInteger, Min: decimalPtr(0)},
		}),
		integration.WithExpectedKinds(map[string]integration.RemoteKind{
			"Listing":    integration.RemoteKindArray,
			"Host Agent": integration.RemoteKindArray,
			"Virtual":    integration.RemoteKindBoolean,
			"RSVP Count": integration.RemoteKindInteger,
		}),
	)
}

// OpenHouseMapper maps open house events
type OpenHouseMapper struct {
	profileMapper
}

// NewOpenHouseMapper creates a new OpenHouseMapper
func NewOpenHouseMapper(conv *Converter) *OpenHouseMapper {
	return &OpenHouseMapper{profileMapper: newProfileMapper(OpenHouseProfile(), conv)}
}

// SyncDeepFields implements integration.EntityMapper. Untitled events are
// named after their date.
func (m *OpenHouseMapper) SyncDeepFields(_ context.Context, entity *integration.LocalEntity, record integration.RemoteRecord) error {
	if entity.Title != "" {
		return nil
	}
	if date, ok := entity.Attributes["event_date"].(string); ok && date != "" {
		entity.Title = "Open House " + date
		return nil
	}
	entity.Title = "Open House " + record.ID
	return nil
}
