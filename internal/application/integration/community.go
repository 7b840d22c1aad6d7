package integration

import (
	"context"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// CommunityProfile returns the community schema
func CommunityProfile() *integration.EntityTypeProfile {
	mappings := []integration.FieldMapping{
		{LocalName: integration.FieldTitle, RemoteName: "Name", Type: integration.ValueTypeText},
		{LocalName: integration.FieldBody, RemoteName: "Description", Type: integration.ValueTypeText},
		{LocalName: "city", RemoteName: "City", Type: integration.ValueTypeText},
		{LocalName: "state", RemoteName: "State", Type: integration.ValueTypeText},
		{LocalName: "zip_code", RemoteName: "Zip Code", Type: integration.ValueTypeText},
		{LocalName: "community_type", RemoteName: "Type", Type: integration.ValueTypeSelect, Options: []integration.SelectOption{
			{Value: "master_planned", Label: "Master Planned"},
			{Value: "gated", Label: "Gated"},
			{Value: "golf", Label: "Golf"},
			{Value: "active_adult", Label: "55+ Active Adult"},
			{Value: "waterfront", Label: "Waterfront"},
		}},
		{LocalName: "hoa_fee", RemoteName: "HOA Fee", Type: integration.ValueTypeNumber},
		{LocalName: "price_range_min", RemoteName: "Min Price", Type: integration.ValueTypeNumber},
		{LocalName: "price_range_max", RemoteName: "Max Price", Type: integration.ValueTypeNumber},
		{LocalName: "amenities", RemoteName: "Amenities", Type: integration.ValueTypeMultiSelect},
		{LocalName: "school_district", RemoteName: "School District", Type: integration.ValueTypeText},
		{LocalName: "website", RemoteName: "Website", Type: integration.ValueTypeURL},
		{LocalName: "featured", RemoteName: "Featured", Type: integration.ValueTypeCheckbox},
		{LocalName: "latitude", RemoteName: "Latitude", Type: integration.ValueTypeNumber},
		{LocalName: "longitude", RemoteName: "Longitude", Type: integration.ValueTypeNumber},
		{LocalName: "listings", RemoteName: "Listings", Type: integration.ValueTypeLookup, LookupEntityType: integration.EntityTypeListing, LookupDisplayField: "Address"},
	}

	return integration.MustEntityTypeProfile(integration.EntityTypeCommunity, "Communities", mappings,
		integration.WithMediaMappings(integration.MediaMapping{LocalName: "community_image", RemoteName: "Image"}),
		integration.WithValidationRules(map[string]integration.ValidationRule{
			integration.FieldTitle: {Required: true, MaxLength: 200},
			"zip_code":             {Pattern: `^\d{5}(-\d{4})?$`},
			"hoa_fee":              {Min: decimalPtr(0)},
			"price_range_min":      {Min: decimalPtr(0)},
			"price_range_max":      {Min: decimalPtr(0)},
			"website":              {Type: integration.RuleTypeURL},
		}),
		integration.WithExpectedKinds(map[string]integration.RemoteKind{
			"HOA Fee":   integration.RemoteKindNumber,
			"Min Price": integration.RemoteKindNumber,
			"Max Price": integration.RemoteKindNumber,
			"Featured":  integration.RemoteKindBoolean,
			"Amenities": integration.RemoteKindArray,
			"Zip Code":  integration.RemoteKindCodeString,
		}),
	)
}

// CommunityMapper maps communities
type CommunityMapper struct {
	profileMapper
}

// NewCommunityMapper creates a new CommunityMapper
func NewCommunityMapper(conv *Converter) *CommunityMapper {
	return &CommunityMapper{profileMapper: newProfileMapper(CommunityProfile(), conv)}
}

// ToRemote implements integration.EntityMapper, adding the listing count
func (m *CommunityMapper) ToRemote(ctx context.Context, entity *integration.LocalEntity) (map[string]any, error) {
	out, err := m.profileMapper.ToRemote(ctx, entity)
	if err != nil {
		return nil, err
	}
	out["Listing Count"] = listLen(entity.Attributes["listings"])
	return out, nil
}
