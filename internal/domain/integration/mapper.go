package integration

import "context"

// EntityMapper is the per-type capability set used by the reconciliation engine.
type EntityMapper interface {
	// EntityType returns the type this mapper serves
	EntityType() string
	// FieldMapping returns the profile of the type
	FieldMapping() *EntityTypeProfile
	// ToLocal converts a remote record into local field values keyed by local name
	ToLocal(ctx context.Context, record RemoteRecord) (map[string]any, error)
	// ToRemote builds the remote payload of an entity, synthetic fields included
	ToRemote(ctx context.Context, entity *LocalEntity) (map[string]any, error)
	// SyncDeepFields applies type-specific casts and derived fields after a pull
	SyncDeepFields(ctx context.Context, entity *LocalEntity, record RemoteRecord) error
}
