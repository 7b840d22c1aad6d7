package recordapi

import (
	"encoding/json"
	"time"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// wireRecord is a record as it appears on the wire
type wireRecord struct {
	ID          string         `json:"id"`
	Fields      map[string]any `json:"fields"`
	CreatedTime string         `json:"createdTime,omitempty"`
}

// listResponse is the body of a list call
type listResponse struct {
	Records []wireRecord `json:"records"`
	Offset  string       `json:"offset,omitempty"`
}

// writeRequest is the body of a create or update call
type writeRequest struct {
	Fields   map[string]any `json:"fields"`
	Typecast bool           `json:"typecast,omitempty"`
}

// errorResponse covers both error shapes the API uses:
// {"error":"NOT_FOUND"} and {"error":{"type":"...","message":"..."}}
type errorResponse struct {
	Error json.RawMessage `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e errorResponse) describe() string {
	if len(e.Error) == 0 {
		return ""
	}
	var detail errorDetail
	if err := json.Unmarshal(e.Error, &detail); err == nil && detail.Type != "" {
		if detail.Message == "" {
			return detail.Type
		}
		return detail.Type + ": " + detail.Message
	}
	var s string
	if err := json.Unmarshal(e.Error, &s); err == nil {
		return s
	}
	return string(e.Error)
}

func (w wireRecord) toDomain() integration.RemoteRecord {
	rec := integration.RemoteRecord{ID: w.ID, Fields: w.Fields}
	if rec.Fields == nil {
		rec.Fields = map[string]any{}
	}
	if t, err := time.Parse(time.RFC3339, w.CreatedTime); err == nil {
		rec.CreatedTime = t
	}
	return rec
}
