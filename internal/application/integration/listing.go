package integration

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// ListingStatusTaxonomy mirrors the listing_status attribute as a taxonomy term
const ListingStatusTaxonomy = "listing_status"

var listingStatusOptions = []integration.SelectOption{
	{Value: "active", Label: "Active"},
	{Value: "pending", Label: "Pending"},
	{Value: "sold", Label: "Sold"},
	{Value: "coming_soon", Label: "Coming Soon"},
	{Value: "withdrawn", Label: "Withdrawn"},
	{Value: "off_market", Label: "Off Market"},
}

var propertyTypeOptions = []integration.SelectOption{
	{Value: "single_family", Label: "Single Family"},
	{Value: "condo", Label: "Condo"},
	{Value: "townhouse", Label: "Townhouse"},
	{Value: "multi_family", Label: "Multi-Family"},
	{Value: "land", Label: "Land"},
	{Value: "commercial", Label: "Commercial"},
}

// listingIntegerFields are stored as whole numbers after a pull
var listingIntegerFields = []string{
	"bedrooms", "bathrooms_full", "bathrooms_half", "square_feet",
	"garage_spaces", "stories", "year_built", "days_on_market", "tax_year",
}

// ListingProfile returns the exhaustive listing schema
func ListingProfile() *integration.EntityTypeProfile {
	text := func(local, remote string) integration.FieldMapping {
		return integration.FieldMapping{LocalName: local, RemoteName: remote, Type: integration.ValueTypeText}
	}
	number := func(local, remote string) integration.FieldMapping {
		return integration.FieldMapping{LocalName: local, RemoteName: remote, Type: integration.ValueTypeNumber}
	}
	checkbox := func(local, remote string) integration.FieldMapping {
		return integration.FieldMapping{LocalName: local, RemoteName: remote, Type: integration.ValueTypeCheckbox}
	}
	multi := func(local, remote string) integration.FieldMapping {
		return integration.FieldMapping{LocalName: local, RemoteName: remote, Type: integration.ValueTypeMultiSelect}
	}

	mappings := []integration.FieldMapping{
		// Address
		text("street_address", "Address"),
		text("unit_number", "Unit"),
		text("city", "City"),
		text("state", "State"),
		text("zip_code", "Zip Code"),
		text("county", "County"),
		text("neighborhood", "Neighborhood"),
		number("latitude", "Latitude"),
		number("longitude", "Longitude"),
		text("mls_number", "MLS Number"),
		text("parcel_number", "Parcel Number"),

		// Description and status
		text(integration.FieldBody, "Description"),
		{LocalName: "listing_status", RemoteName: "Status", Type: integration.ValueTypeSelect, Options: listingStatusOptions},
		{LocalName: "property_type", RemoteName: "Property Type", Type: integration.ValueTypeSelect, Options: propertyTypeOptions},
		text("property_style", "Style"),

		// Specs
		number("bedrooms", "Bedrooms"),
		number("bathrooms_full", "Full Baths"),
		number("bathrooms_half", "Half Baths"),
		number("square_feet", "Square Feet"),
		number("lot_size", "Lot Size (Acres)"),
		number("year_built", "Year Built"),
		number("garage_spaces", "Garage Spaces"),
		number("stories", "Stories"),

		// Financial
		number("price", "Price"),
		number("sold_price", "Sold Price"),
		number("hoa_fees", "HOA Fees"),
		number("property_taxes", "Property Taxes"),
		number("tax_year", "Tax Year"),
		number("commission_rate", "Commission Rate"),
		{LocalName: "listing_date", RemoteName: "List Date", Type: integration.ValueTypeDate},
		{LocalName: "sold_date", RemoteName: "Sold Date", Type: integration.ValueTypeDate},
		{LocalName: "days_on_market", RemoteName: "Days on Market", Type: integration.ValueTypeNumber, Direction: integration.DirectionFromRemote},

		// Amenities
		checkbox("has_pool", "Pool"),
		checkbox("has_spa", "Spa"),
		checkbox("waterfront", "Waterfront"),
		checkbox("gated_community", "Gated"),
		checkbox("fireplace", "Fireplace"),
		checkbox("central_air", "Central Air"),
		checkbox("basement", "Basement"),
		multi("interior_features", "Interior Features"),
		multi("exterior_features", "Exterior Features"),
		multi("appliances", "Appliances"),
		multi("flooring", "Flooring"),
		multi("views", "View"),
		text("heating", "Heating"),

		// Marketing
		checkbox("featured", "Featured"),
		{LocalName: "virtual_tour_url", RemoteName: "Virtual Tour", Type: integration.ValueTypeURL},
		{LocalName: "video_url", RemoteName: "Video URL", Type: integration.ValueTypeURL},
		{LocalName: "office_phone", RemoteName: "Office Phone", Type: integration.ValueTypePhone},
		{LocalName: "showing_time", RemoteName: "Showing Time", Type: integration.ValueTypeTime},
		text("showing_instructions", "Showing Instructions"),

		// Schools
		text("school_district", "School District"),
		text("elementary_school", "Elementary School"),
		text("middle_school", "Middle School"),
		text("high_school", "High School"),

		// Relationships
		{LocalName: "listing_agent", RemoteName: "Listing Agent", Type: integration.ValueTypeLookup, LookupEntityType: integration.EntityTypeAgent, LookupDisplayField: "Name"},
		{LocalName: "co_listing_agent", RemoteName: "Co-Listing Agent", Type: integration.ValueTypeLookup, LookupEntityType: integration.EntityTypeAgent, LookupDisplayField: "Name"},
		{LocalName: "community", RemoteName: "Community", Type: integration.ValueTypeLookup, LookupEntityType: integration.EntityTypeCommunity, LookupDisplayField: "Name"},
	}

	return integration.MustEntityTypeProfile(integration.EntityTypeListing, "Listings", mappings,
		integration.WithMediaMappings(
			integration.MediaMapping{LocalName: "gallery_images", RemoteName: "Photos"},
			integration.MediaMapping{LocalName: "featured_image", RemoteName: "Featured Photo"},
		),
		integration.WithValidationRules(map[string]integration.ValidationRule{
			"street_address":   {Required: true, MaxLength: 200},
			"zip_code":         {Pattern: `^\d{5}(-\d{4})?$`},
			"price":            {Min: decimalPtr(0)},
			"sold_price":       {Min: decimalPtr(0)},
			"bedrooms":         {Type: integration.RuleTypeInteger, Min: decimalPtr(0), Max: decimalPtr(50)},
			"bathrooms_full":   {Type: integration.RuleTypeInteger, Min: decimalPtr(0), Max: decimalPtr(50)},
			"square_feet":      {Min: decimalPtr(0)},
			"year_built":       {Type: integration.RuleTypeInteger, Min: decimalPtr(1800), Max: decimalPtr(2100)},
			"latitude":         {Min: decimalPtr(-90), Max: decimalPtr(90)},
			"longitude":        {Min: decimalPtr(-180), Max: decimalPtr(180)},
			"mls_number":       {MaxLength: 32},
			"virtual_tour_url": {Type: integration.RuleTypeURL},
			"video_url":        {Type: integration.RuleTypeURL},
			"office_phone":     {Type: integration.RuleTypePhone},
			"commission_rate":  {Min: decimalPtr(0), Max: decimalPtr(100)},
		}),
		integration.WithExpectedKinds(map[string]integration.RemoteKind{
			"Price":             integration.RemoteKindNumber,
			"Latitude":          integration.RemoteKindNumber,
			"Longitude":         integration.RemoteKindNumber,
			"Bedrooms":          integration.RemoteKindInteger,
			"Full Baths":        integration.RemoteKindInteger,
			"Square Feet":       integration.RemoteKindInteger,
			"Year Built":        integration.RemoteKindInteger,
			"Pool":              integration.RemoteKindBoolean,
			"Waterfront":        integration.RemoteKindBoolean,
			"Featured":          integration.RemoteKindBoolean,
			"Interior Features": integration.RemoteKindArray,
			"Listing Agent":     integration.RemoteKindArray,
			"Community":         integration.RemoteKindArray,
			"Zip Code":          integration.RemoteKindCodeString,
			"MLS Number":        integration.RemoteKindCodeString,
			"Parcel Number":     integration.RemoteKindCodeString,
		}),
	)
}

// ListingMapper maps listings. Its deep sync derives the title from the
// address, applies stricter numeric and date casts and mirrors the status
// into the listing_status taxonomy.
type ListingMapper struct {
	profileMapper
	now func() time.Time
}

// NewListingMapper creates a new ListingMapper
func NewListingMapper(conv *Converter) *ListingMapper {
	return &ListingMapper{profileMapper: newProfileMapper(ListingProfile(), conv), now: time.Now}
}

// ToRemote implements integration.EntityMapper, adding computed fields
func (m *ListingMapper) ToRemote(ctx context.Context, entity *integration.LocalEntity) (map[string]any, error) {
	out, err := m.profileMapper.ToRemote(ctx, entity)
	if err != nil {
		return nil, err
	}
	price, okPrice := parseNumber(entity.Attributes["price"])
	sqft, okSqft := parseNumber(entity.Attributes["square_feet"])
	if okPrice && okSqft && price > 0 && sqft > 0 {
		out["Price Per Sqft"] = decimal.NewFromFloat(price / sqft).Round(2).InexactFloat64()
	}
	if n := listLen(entity.Attributes["gallery_images"]); n > 0 {
		out["Photo Count"] = n
	}
	return out, nil
}

// SyncDeepFields implements integration.EntityMapper
func (m *ListingMapper) SyncDeepFields(_ context.Context, entity *integration.LocalEntity, record integration.RemoteRecord) error {
	if title := listingTitle(entity); title != "" {
		entity.Title = title
	} else if entity.Title == "" {
		entity.Title = "Listing " + record.ID
	}

	for _, field := range []string{"price", "sold_price", "hoa_fees", "property_taxes"} {
		if f, ok := parseNumber(entity.Attributes[field]); ok {
			entity.Attributes[field] = decimal.NewFromFloat(f).Round(2).InexactFloat64()
		}
	}

	for _, field := range listingIntegerFields {
		v, present := entity.Attributes[field]
		if !present {
			continue
		}
		if f, ok := parseNumber(v); ok {
			entity.Attributes[field] = math.Round(f)
		} else {
			delete(entity.Attributes, field)
		}
	}

	if y, ok := parseNumber(entity.Attributes["year_built"]); ok {
		if y < 1800 || y > float64(m.now().Year()+2) {
			delete(entity.Attributes, "year_built")
		}
	}

	for _, field := range []string{"listing_date", "sold_date"} {
		normalizeDateAttr(entity, field)
	}

	if status, ok := entity.Attributes["listing_status"].(string); ok && status != "" {
		entity.SetTerms(ListingStatusTaxonomy, status)
	}
	return nil
}

func listingTitle(entity *integration.LocalEntity) string {
	street, _ := entity.Attributes["street_address"].(string)
	street = strings.TrimSpace(street)
	if street == "" {
		return ""
	}
	if unit, _ := entity.Attributes["unit_number"].(string); strings.TrimSpace(unit) != "" {
		return street + " Unit " + strings.TrimSpace(unit)
	}
	return street
}

// normalizeDateAttr rewrites a date attribute as YYYY-MM-DD, removing it when unparsable
func normalizeDateAttr(entity *integration.LocalEntity, field string) {
	raw, ok := entity.Attributes[field].(string)
	if !ok {
		return
	}
	if raw == "" {
		delete(entity.Attributes, field)
		return
	}
	if t, ok := ParseDate(raw); ok {
		entity.Attributes[field] = t.Format("2006-01-02")
		return
	}
	delete(entity.Attributes, field)
}

func decimalPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
