// Package integration contains the Listing Sync bounded context.
// This context keeps locally managed content (listings, agents, communities,
// open houses) consistent with rows in an external tabular record store.
//
// Key concepts:
//   - FieldMapping: declarative rule tying one local attribute to one remote field
//   - EntityTypeProfile: the immutable mapping set, media mappings and validation rules of one entity type
//   - LocalEntity: content item with core attributes, typed custom attributes and taxonomy terms
//   - RemoteRecord: row of the external record store, keyed by remote field names
//   - Correlation: the ExternalRecordID stored on a LocalEntity, linking it to one RemoteRecord
//   - EntityMapper: per-type capability set used by the reconciliation engine
//
// Design Pattern: Ports & Adapters
//   - Ports (RecordStore, EntityStore, RetryQueue, DegradationSink, ...) are defined here
//   - Adapters (implementations) are in the infrastructure layer
package integration
