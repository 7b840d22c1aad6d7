package integration

import (
	"fmt"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// MapperRegistry resolves the EntityMapper of an entity type. It is built
// once at startup and read-only afterwards.
type MapperRegistry struct {
	mappers map[string]integration.EntityMapper
	order   []string
}

// NewMapperRegistry registers mappers in the given order, which is also the
// order PullAll visits them.
func NewMapperRegistry(mappers ...integration.EntityMapper) (*MapperRegistry, error) {
	r := &MapperRegistry{mappers: make(map[string]integration.EntityMapper, len(mappers))}
	for _, m := range mappers {
		t := m.EntityType()
		if _, exists := r.mappers[t]; exists {
			return nil, fmt.Errorf("integration: mapper for %q registered twice", t)
		}
		r.mappers[t] = m
		r.order = append(r.order, t)
	}
	return r, nil
}

// NewDefaultRegistry registers the built-in entity types in dependency order
// (agents and communities before the listings and open houses that reference
// them), then a fallback mapper for each extra type.
func NewDefaultRegistry(conv *Converter, extraTypes map[string]string) (*MapperRegistry, error) {
	mappers := []integration.EntityMapper{
		NewAgentMapper(conv),
		NewCommunityMapper(conv),
		NewListingMapper(conv),
		NewOpenHouseMapper(conv),
	}
	for _, t := range sortedKeys(extraTypes) {
		if isBuiltInType(t) {
			continue
		}
		fm, err := NewFallbackMapper(t, extraTypes[t], conv)
		if err != nil {
			return nil, err
		}
		mappers = append(mappers, fm)
	}
	return NewMapperRegistry(mappers...)
}

// Mapper returns the mapper of an entity type
func (r *MapperRegistry) Mapper(entityType string) (integration.EntityMapper, error) {
	m, ok := r.mappers[entityType]
	if !ok {
		return nil, &integration.UnknownEntityTypeError{EntityType: entityType}
	}
	return m, nil
}

// EntityTypes returns the registered types in registration order
func (r *MapperRegistry) EntityTypes() []string {
	return append([]string(nil), r.order...)
}

func isBuiltInType(t string) bool {
	switch t {
	case integration.EntityTypeListing, integration.EntityTypeAgent,
		integration.EntityTypeCommunity, integration.EntityTypeOpenHouse:
		return true
	}
	return false
}
