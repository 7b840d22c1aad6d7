package integration

import (
	"context"
	"sort"
	"time"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// Synthetic fields appended to every push payload
const (
	RemoteFieldLocalID      = "Local ID"
	RemoteFieldLastModified = "Last Modified"
)

// profileMapper is the mapping pass shared by every entity type: it applies
// the Converter across the profile's mappings. Type specific mappers embed it
// and override SyncDeepFields or extend ToRemote.
type profileMapper struct {
	profile *integration.EntityTypeProfile
	conv    *Converter
}

func newProfileMapper(profile *integration.EntityTypeProfile, conv *Converter) profileMapper {
	return profileMapper{profile: profile, conv: conv}
}

// EntityType implements integration.EntityMapper
func (m *profileMapper) EntityType() string {
	return m.profile.EntityType()
}

// FieldMapping implements integration.EntityMapper
func (m *profileMapper) FieldMapping() *integration.EntityTypeProfile {
	return m.profile
}

// ToLocal implements integration.EntityMapper. Fields missing from the record
// are left out, except checkboxes: the remote store omits unchecked boxes.
func (m *profileMapper) ToLocal(ctx context.Context, record integration.RemoteRecord) (map[string]any, error) {
	ctx = withScope(ctx, conversionScope{entityType: m.EntityType(), recordID: record.ID})

	mappings := m.profile.PullMappings()
	for _, mm := range m.profile.MediaMappings() {
		if mm.Direction.AppliesToPull() {
			mappings = append(mappings, mm.AsFieldMapping())
		}
	}

	out := make(map[string]any, len(mappings))
	for _, fm := range mappings {
		raw, ok := record.Fields[fm.RemoteName]
		if !ok {
			if fm.Type == integration.ValueTypeCheckbox {
				out[fm.LocalName] = false
			}
			continue
		}
		v, err := m.conv.ToLocal(ctx, raw, fm)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		out[fm.LocalName] = v
	}
	return out, nil
}

// ToRemote implements integration.EntityMapper. Blank local values are skipped;
// the local ID and last-modified timestamp are always appended.
func (m *profileMapper) ToRemote(ctx context.Context, entity *integration.LocalEntity) (map[string]any, error) {
	ctx = withScope(ctx, conversionScope{
		entityType: m.EntityType(),
		entityID:   entity.ID.String(),
		recordID:   entity.ExternalRecordID,
	})

	mappings := m.profile.PushMappings()
	for _, mm := range m.profile.MediaMappings() {
		if mm.Direction.AppliesToPush() {
			mappings = append(mappings, mm.AsFieldMapping())
		}
	}

	out := make(map[string]any, len(mappings)+2)
	for _, fm := range mappings {
		local, ok := entity.Field(fm.LocalName)
		if !ok || isBlank(local) {
			continue
		}
		v, err := m.conv.ToRemote(ctx, local, fm)
		if err != nil {
			return nil, err
		}
		if isBlank(v) {
			continue
		}
		out[fm.RemoteName] = v
	}

	out[RemoteFieldLocalID] = entity.ID.String()
	out[RemoteFieldLastModified] = entity.UpdatedAt.UTC().Format(time.RFC3339)
	return out, nil
}

// SyncDeepFields implements integration.EntityMapper. The generic pass has no
// type specific casts.
func (m *profileMapper) SyncDeepFields(context.Context, *integration.LocalEntity, integration.RemoteRecord) error {
	return nil
}

// ---------------------------------------------------------------------------
// FallbackMapper
// ---------------------------------------------------------------------------

// FallbackMapper serves entity types without a dedicated profile: only the
// core title, body and status are exchanged.
type FallbackMapper struct {
	profileMapper
}

// NewFallbackMapper creates a mapper with the generic four-field profile
func NewFallbackMapper(entityType, table string, conv *Converter) (*FallbackMapper, error) {
	profile, err := integration.NewEntityTypeProfile(entityType, table, []integration.FieldMapping{
		{LocalName: integration.FieldTitle, RemoteName: "Name", Type: integration.ValueTypeText},
		{LocalName: integration.FieldBody, RemoteName: "Description", Type: integration.ValueTypeText},
		{LocalName: integration.FieldStatus, RemoteName: "Status", Type: integration.ValueTypeText},
		{LocalName: integration.FieldID, RemoteName: RemoteFieldLocalID, Type: integration.ValueTypeText, Direction: integration.DirectionToRemote},
	})
	if err != nil {
		return nil, err
	}
	return &FallbackMapper{profileMapper: newProfileMapper(profile, conv)}, nil
}

// ---------------------------------------------------------------------------
// helpers shared by deep field syncs
// ---------------------------------------------------------------------------

// listLen counts the entries of a list attribute
func listLen(value any) int {
	switch v := value.(type) {
	case []string:
		return len(v)
	case []any:
		return len(v)
	}
	return 0
}

// sortedKeys returns map keys in a stable order
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
