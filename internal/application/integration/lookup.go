package integration

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// LookupResolver translates references between entity types through stored
// correlations.
//
// Remote to local resolution uses the reverse correlation index: each remote
// record ID is looked up in the indexed external_record_id column of the
// referenced entity type. References to records not pulled yet stay
// unresolved until a later pass (see PullAll for the ordering that keeps
// this rare).
type LookupResolver struct {
	entities integration.EntityStore
	sink     integration.DegradationSink
}

// NewLookupResolver creates a new LookupResolver
func NewLookupResolver(entities integration.EntityStore, sink integration.DegradationSink) *LookupResolver {
	if sink == nil {
		sink = NopDegradationSink{}
	}
	return &LookupResolver{entities: entities, sink: sink}
}

// ToRemote accepts a local entity ID, an entity, or a sequence of either and
// returns the correlated remote record IDs. Unlinked references are dropped;
// an empty result is nil.
func (r *LookupResolver) ToRemote(ctx context.Context, value any) ([]string, error) {
	refs := flattenRefs(value)
	if len(refs) == 0 {
		return nil, nil
	}

	var ids []uuid.UUID
	for _, ref := range refs {
		if ref.entity == nil && ref.id != uuid.Nil {
			ids = append(ids, ref.id)
		}
	}
	byID := make(map[uuid.UUID]string, len(ids))
	if len(ids) > 0 {
		found, err := r.entities.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, e := range found {
			byID[e.ID] = e.ExternalRecordID
		}
	}

	var out []string
	for _, ref := range refs {
		var recordID string
		switch {
		case ref.entity != nil:
			recordID = ref.entity.ExternalRecordID
		case ref.id != uuid.Nil:
			recordID = byID[ref.id]
		}
		if recordID == "" {
			r.report(ctx, ref.raw, integration.SyncDirectionPush, integration.DegradationUnlinkedLookup)
			continue
		}
		out = append(out, recordID)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// ToLocal resolves remote record IDs of the mapping's lookup type into local
// entity IDs. Unresolved IDs are dropped and reported; an empty result is nil
// so the caller leaves the local value untouched.
func (r *LookupResolver) ToLocal(ctx context.Context, value any, m integration.FieldMapping) ([]string, error) {
	var recordIDs []string
	switch v := value.(type) {
	case string:
		if v != "" {
			recordIDs = []string{v}
		}
	default:
		recordIDs, _ = sequence(value)
	}

	var out []string
	for _, recordID := range recordIDs {
		if recordID == "" {
			continue
		}
		e, err := r.entities.FindByExternalRecordID(ctx, m.LookupEntityType, recordID)
		switch {
		case err == nil:
			out = append(out, e.ID.String())
		case errors.Is(err, integration.ErrEntityNotFound), errors.Is(err, integration.ErrCorrelationAmbiguous):
			r.reportField(ctx, m, recordID, integration.DegradationUnresolvedLookup)
		default:
			return nil, err
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (r *LookupResolver) report(ctx context.Context, raw string, dir integration.SyncDirection, reason integration.DegradationReason) {
	scope := scopeFrom(ctx)
	r.sink.Degraded(ctx, integration.DegradationEvent{
		ID:         uuid.New(),
		EntityType: scope.entityType,
		EntityID:   scope.entityID,
		RecordID:   scope.recordID,
		ValueType:  integration.ValueTypeLookup,
		Direction:  dir,
		Value:      raw,
		Reason:     reason,
		OccurredAt: timeNow(),
	})
}

func (r *LookupResolver) reportField(ctx context.Context, m integration.FieldMapping, raw string, reason integration.DegradationReason) {
	scope := scopeFrom(ctx)
	r.sink.Degraded(ctx, integration.DegradationEvent{
		ID:          uuid.New(),
		EntityType:  scope.entityType,
		EntityID:    scope.entityID,
		RecordID:    scope.recordID,
		LocalField:  m.LocalName,
		RemoteField: m.RemoteName,
		ValueType:   integration.ValueTypeLookup,
		Direction:   integration.SyncDirectionPull,
		Value:       raw,
		Reason:      reason,
		OccurredAt:  timeNow(),
	})
}

// entityRef is one reference found in a lookup value
type entityRef struct {
	id     uuid.UUID
	entity *integration.LocalEntity
	raw    string
}

func flattenRefs(value any) []entityRef {
	switch v := value.(type) {
	case nil:
		return nil
	case uuid.UUID:
		if v == uuid.Nil {
			return nil
		}
		return []entityRef{{id: v, raw: v.String()}}
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			if v == "" {
				return nil
			}
			return []entityRef{{raw: v}}
		}
		return []entityRef{{id: id, raw: v}}
	case *integration.LocalEntity:
		if v == nil {
			return nil
		}
		return []entityRef{{id: v.ID, entity: v, raw: v.ID.String()}}
	case integration.LocalEntity:
		return []entityRef{{id: v.ID, entity: &v, raw: v.ID.String()}}
	case []string:
		var out []entityRef
		for _, s := range v {
			out = append(out, flattenRefs(s)...)
		}
		return out
	case []uuid.UUID:
		var out []entityRef
		for _, id := range v {
			out = append(out, flattenRefs(id)...)
		}
		return out
	case []*integration.LocalEntity:
		var out []entityRef
		for _, e := range v {
			out = append(out, flattenRefs(e)...)
		}
		return out
	case []any:
		var out []entityRef
		for _, item := range v {
			out = append(out, flattenRefs(item)...)
		}
		return out
	}
	return nil
}
