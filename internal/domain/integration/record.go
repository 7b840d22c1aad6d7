package integration

import "time"

// Page size limits of the remote list endpoint
const (
	DefaultPageSize = 100
	MaxPageSize     = 100
)

// RemoteRecord is one row of a remote table. Fields are keyed by remote field name.
type RemoteRecord struct {
	ID          string
	Fields      map[string]any
	CreatedTime time.Time
}

// RecordPage is one page of a list call. A non-empty Offset is the
// continuation token of the next page.
type RecordPage struct {
	Records []RemoteRecord
	Offset  string
}

// HasMore reports whether another page follows
func (p *RecordPage) HasMore() bool {
	return p != nil && p.Offset != ""
}

// ListRecordsRequest asks for one page of a remote table
type ListRecordsRequest struct {
	Table    string
	PageSize int
	Offset   string
}

// Validate validates the request and fills defaults
func (r *ListRecordsRequest) Validate() error {
	if r.Table == "" {
		return ErrTableNotConfigured
	}
	if r.PageSize <= 0 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
	return nil
}
