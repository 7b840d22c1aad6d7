package integration

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// memEntityStore
// ---------------------------------------------------------------------------

type memEntityStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*integration.LocalEntity
	order   []uuid.UUID
	saveErr error
	linkErr error
}

func newMemEntityStore() *memEntityStore {
	return &memEntityStore{byID: make(map[uuid.UUID]*integration.LocalEntity)}
}

func cloneEntity(e *integration.LocalEntity) *integration.LocalEntity {
	c := *e
	c.Attributes = make(map[string]any, len(e.Attributes))
	for k, v := range e.Attributes {
		c.Attributes[k] = v
	}
	c.Terms = make(map[string][]string, len(e.Terms))
	for k, v := range e.Terms {
		c.Terms[k] = append([]string(nil), v...)
	}
	return &c
}

func (s *memEntityStore) FindByID(_ context.Context, id uuid.UUID) (*integration.LocalEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, integration.ErrEntityNotFound
	}
	return cloneEntity(e), nil
}

func (s *memEntityStore) FindByIDs(_ context.Context, ids []uuid.UUID) ([]integration.LocalEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []integration.LocalEntity
	for _, id := range ids {
		if e, ok := s.byID[id]; ok {
			out = append(out, *cloneEntity(e))
		}
	}
	return out, nil
}

func (s *memEntityStore) FindByExternalRecordID(_ context.Context, entityType, recordID string) (*integration.LocalEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []*integration.LocalEntity
	for _, id := range s.order {
		e := s.byID[id]
		if e.EntityType == entityType && e.ExternalRecordID == recordID {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return nil, integration.ErrEntityNotFound
	case 1:
		return cloneEntity(found[0]), nil
	default:
		return nil, integration.ErrCorrelationAmbiguous
	}
}

func (s *memEntityStore) List(_ context.Context, filter integration.EntityFilter) ([]integration.LocalEntity, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []integration.LocalEntity
	for _, id := range s.order {
		e := s.byID[id]
		if filter.EntityType == "" || e.EntityType == filter.EntityType {
			all = append(all, *cloneEntity(e))
		}
	}
	total := int64(len(all))
	start := filter.Offset()
	if start >= len(all) {
		return nil, total, nil
	}
	end := len(all)
	if filter.PageSize > 0 && start+filter.PageSize < end {
		end = start + filter.PageSize
	}
	return all[start:end], total, nil
}

func (s *memEntityStore) Save(_ context.Context, entity *integration.LocalEntity) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneEntity(entity)
	if existing, ok := s.byID[entity.ID]; ok {
		// correlation changes go through LinkRecord only
		stored.ExternalRecordID = existing.ExternalRecordID
	} else {
		s.order = append(s.order, entity.ID)
	}
	s.byID[entity.ID] = stored
	return nil
}

func (s *memEntityStore) LinkRecord(_ context.Context, entityID uuid.UUID, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linkErr != nil {
		return s.linkErr
	}
	e, ok := s.byID[entityID]
	if !ok {
		return integration.ErrEntityNotFound
	}
	if e.ExternalRecordID != "" && e.ExternalRecordID != recordID {
		return integration.ErrCorrelationConflict
	}
	e.ExternalRecordID = recordID
	return nil
}

func (s *memEntityStore) get(id uuid.UUID) *integration.LocalEntity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[id]; ok {
		return cloneEntity(e)
	}
	return nil
}

func (s *memEntityStore) byRecord(entityType, recordID string) *integration.LocalEntity {
	e, err := s.FindByExternalRecordID(context.Background(), entityType, recordID)
	if err != nil {
		return nil
	}
	return e
}

func (s *memEntityStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// ---------------------------------------------------------------------------
// memRecordStore
// ---------------------------------------------------------------------------

type recordCall struct {
	Table    string
	RecordID string
	Fields   map[string]any
}

type memRecordStore struct {
	mu      sync.Mutex
	tables  map[string][]integration.RemoteRecord
	nextID  int
	listed  []integration.ListRecordsRequest
	created []recordCall
	updated []recordCall

	listErr   error
	createErr error
	updateErr error
	// blockUpdates makes updates wait for their context to end
	blockUpdates bool
}

func newMemRecordStore() *memRecordStore {
	return &memRecordStore{tables: make(map[string][]integration.RemoteRecord)}
}

func (s *memRecordStore) add(table string, id string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], integration.RemoteRecord{ID: id, Fields: fields, CreatedTime: time.Now()})
}

func (s *memRecordStore) ListRecords(_ context.Context, req integration.ListRecordsRequest) (*integration.RecordPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listed = append(s.listed, req)
	if s.listErr != nil {
		return nil, s.listErr
	}
	rows := s.tables[req.Table]
	start := 0
	if req.Offset != "" {
		n, err := strconv.Atoi(req.Offset)
		if err != nil {
			return nil, &integration.TransportError{StatusCode: 422, Body: "bad offset", Err: integration.ErrRemoteRequestFailed}
		}
		start = n
	}
	size := req.PageSize
	if size <= 0 {
		size = integration.DefaultPageSize
	}
	end := start + size
	page := &integration.RecordPage{}
	if end < len(rows) {
		page.Offset = strconv.Itoa(end)
	} else {
		end = len(rows)
	}
	if start < end {
		page.Records = append(page.Records, rows[start:end]...)
	}
	return page, nil
}

func (s *memRecordStore) CreateRecord(_ context.Context, table string, fields map[string]any) (*integration.RemoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	rec := integration.RemoteRecord{ID: fmt.Sprintf("recNew%d", s.nextID), Fields: fields, CreatedTime: time.Now()}
	s.tables[table] = append(s.tables[table], rec)
	s.created = append(s.created, recordCall{Table: table, RecordID: rec.ID, Fields: fields})
	return &rec, nil
}

func (s *memRecordStore) UpdateRecord(ctx context.Context, table, recordID string, fields map[string]any) (*integration.RemoteRecord, error) {
	if s.blockUpdates {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.updated = append(s.updated, recordCall{Table: table, RecordID: recordID, Fields: fields})
	return &integration.RemoteRecord{ID: recordID, Fields: fields}, nil
}

func (s *memRecordStore) listCalls() []integration.ListRecordsRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]integration.ListRecordsRequest(nil), s.listed...)
}

// ---------------------------------------------------------------------------
// memRetryQueue
// ---------------------------------------------------------------------------

type memRetryQueue struct {
	mu    sync.Mutex
	items []integration.RetryItem
}

func (q *memRetryQueue) Enqueue(_ context.Context, item *integration.RetryItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].EntityID == item.EntityID && q.items[i].Status == integration.RetryStatusPending {
			q.items[i].LastError = item.LastError
			q.items[i].NextAttemptAt = item.NextAttemptAt
			return nil
		}
	}
	q.items = append(q.items, *item)
	return nil
}

func (q *memRetryQueue) Due(_ context.Context, now time.Time, limit int) ([]integration.RetryItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []integration.RetryItem
	for _, item := range q.items {
		if item.IsDue(now) && (limit <= 0 || len(out) < limit) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (q *memRetryQueue) Update(_ context.Context, item *integration.RetryItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].ID == item.ID {
			q.items[i] = *item
			return nil
		}
	}
	return integration.ErrRetryItemNotFound
}

func (q *memRetryQueue) Delete(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return integration.ErrRetryItemNotFound
}

func (q *memRetryQueue) List(_ context.Context, _ integration.RetryFilter) ([]integration.RetryItem, int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := append([]integration.RetryItem(nil), q.items...)
	return out, int64(len(out)), nil
}

func (q *memRetryQueue) snapshot() []integration.RetryItem {
	items, _, _ := q.List(context.Background(), integration.RetryFilter{})
	return items
}

// ---------------------------------------------------------------------------
// recordingSink
// ---------------------------------------------------------------------------

type recordingSink struct {
	mu     sync.Mutex
	events []integration.DegradationEvent
}

func (s *recordingSink) Degraded(_ context.Context, event integration.DegradationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) reasons() []integration.DegradationReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]integration.DegradationReason, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Reason)
	}
	return out
}

// ---------------------------------------------------------------------------
// fakeMedia
// ---------------------------------------------------------------------------

type fakeMedia map[string]string

func (m fakeMedia) ResolveURL(_ context.Context, key string) (string, error) {
	if u, ok := m[key]; ok {
		return u, nil
	}
	return "", fmt.Errorf("media key %q not found", key)
}
