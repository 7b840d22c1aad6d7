package integration

import (
	"context"
	"math"
	"strings"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// AgentProfile returns the agent schema
func AgentProfile() *integration.EntityTypeProfile {
	mappings := []integration.FieldMapping{
		{LocalName: "first_name", RemoteName: "First Name", Type: integration.ValueTypeText},
		{LocalName: "last_name", RemoteName: "Last Name", Type: integration.ValueTypeText},
		{LocalName: integration.FieldBody, RemoteName: "Bio", Type: integration.ValueTypeText},
		{LocalName: "email", RemoteName: "Email", Type: integration.ValueTypeEmail},
		{LocalName: "phone", RemoteName: "Phone", Type: integration.ValueTypePhone},
		{LocalName: "mobile_phone", RemoteName: "Mobile", Type: integration.ValueTypePhone},
		{LocalName: "office_phone", RemoteName: "Office Phone", Type: integration.ValueTypePhone},
		{LocalName: "website", RemoteName: "Website", Type: integration.ValueTypeURL},
		{LocalName: "position", RemoteName: "Title", Type: integration.ValueTypeSelect, Options: []integration.SelectOption{
			{Value: "agent", Label: "Agent"},
			{Value: "broker", Label: "Broker"},
			{Value: "team_lead", Label: "Team Lead"},
			{Value: "associate", Label: "Associate"},
		}},
		{LocalName: "agent_status", RemoteName: "Status", Type: integration.ValueTypeSelect, Options: []integration.SelectOption{
			{Value: "active", Label: "Active"},
			{Value: "inactive", Label: "Inactive"},
		}},
		{LocalName: "license_number", RemoteName: "License Number", Type: integration.ValueTypeText},
		{LocalName: "license_state", RemoteName: "License State", Type: integration.ValueTypeText},
		{LocalName: "license_expiration", RemoteName: "License Expiration", Type: integration.ValueTypeDate},
		{LocalName: "years_experience", RemoteName: "Years Experience", Type: integration.ValueTypeNumber},
		{LocalName: "specialties", RemoteName: "Specialties", Type: integration.ValueTypeMultiSelect},
		{LocalName: "languages", RemoteName: "Languages", Type: integration.ValueTypeMultiSelect},
		{LocalName: "service_areas", RemoteName: "Service Areas", Type: integration.ValueTypeMultiSelect},
		{LocalName: "office", RemoteName: "Office", Type: integration.ValueTypeText},
		{LocalName: "featured", RemoteName: "Featured", Type: integration.ValueTypeCheckbox},
		{LocalName: "facebook_url", RemoteName: "Facebook", Type: integration.ValueTypeURL},
		{LocalName: "instagram_url", RemoteName: "Instagram", Type: integration.ValueTypeURL},
		{LocalName: "linkedin_url", RemoteName: "LinkedIn", Type: integration.ValueTypeURL},
		{LocalName: "listings", RemoteName: "Listings", Type: integration.ValueTypeLookup, LookupEntityType: integration.EntityTypeListing, LookupDisplayField: "Address"},
		{LocalName: "communities", RemoteName: "Communities", Type: integration.ValueTypeLookup, LookupEntityType: integration.EntityTypeCommunity, LookupDisplayField: "Name"},
	}

	return integration.MustEntityTypeProfile(integration.EntityTypeAgent, "Agents", mappings,
		integration.WithMediaMappings(integration.MediaMapping{LocalName: "headshot", RemoteName: "Headshot"}),
		integration.WithValidationRules(map[string]integration.ValidationRule{
			"first_name":       {Required: true, MaxLength: 100},
			"last_name":        {MaxLength: 100},
			"email":            {Required: true, Type: integration.RuleTypeEmail},
			"phone":            {Type: integration.RuleTypePhone},
			"mobile_phone":     {Type: integration.RuleTypePhone},
			"website":          {Type: integration.RuleTypeURL},
			"years_experience": {Type: integration.RuleTypeInteger, Min: decimalPtr(0), Max: decimalPtr(70)},
			"license_number":   {MaxLength: 32},
		}),
		integration.WithExpectedKinds(map[string]integration.RemoteKind{
			"Years Experience": integration.RemoteKindInteger,
			"Featured":         integration.RemoteKindBoolean,
			"Specialties":      integration.RemoteKindArray,
			"Languages":        integration.RemoteKindArray,
			"Listings":         integration.RemoteKindArray,
			"License Number":   integration.RemoteKindCodeString,
		}),
	)
}

// AgentMapper maps agents. Its deep sync builds the display name and
// canonicalizes contact fields.
type AgentMapper struct {
	profileMapper
}

// NewAgentMapper creates a new AgentMapper
func NewAgentMapper(conv *Converter) *AgentMapper {
	return &AgentMapper{profileMapper: newProfileMapper(AgentProfile(), conv)}
}

// ToRemote implements integration.EntityMapper, adding the listing count
func (m *AgentMapper) ToRemote(ctx context.Context, entity *integration.LocalEntity) (map[string]any, error) {
	out, err := m.profileMapper.ToRemote(ctx, entity)
	if err != nil {
		return nil, err
	}
	out["Listing Count"] = listLen(entity.Attributes["listings"])
	return out, nil
}

// SyncDeepFields implements integration.EntityMapper
func (m *AgentMapper) SyncDeepFields(_ context.Context, entity *integration.LocalEntity, record integration.RemoteRecord) error {
	first, _ := entity.Attributes["first_name"].(string)
	last, _ := entity.Attributes["last_name"].(string)
	name := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	if name == "" {
		if remoteName, ok := record.Fields["Name"].(string); ok {
			name = SanitizeText(remoteName)
		}
	}
	if name != "" {
		entity.Title = name
	} else if entity.Title == "" {
		entity.Title = "Agent " + record.ID
	}

	if email, ok := entity.Attributes["email"].(string); ok {
		entity.Attributes["email"] = strings.ToLower(strings.TrimSpace(email))
	}
	for _, field := range []string{"phone", "mobile_phone", "office_phone"} {
		if phone, ok := entity.Attributes[field].(string); ok {
			entity.Attributes[field] = FormatPhone(phone)
		}
	}

	normalizeDateAttr(entity, "license_expiration")

	if v, present := entity.Attributes["years_experience"]; present {
		years, ok := parseNumber(v)
		if !ok || years < 0 || years > 70 {
			delete(entity.Attributes, "years_experience")
		} else {
			entity.Attributes["years_experience"] = math.Round(years)
		}
	}
	return nil
}
