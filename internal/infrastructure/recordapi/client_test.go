package recordapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, retries int) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(Config{
		BaseURL:           server.URL + "/v0",
		BaseID:            "appTEST",
		APIToken:          "pat-secret",
		RequestsPerSecond: 1000,
		MaxRetries:        retries,
	}, nil)
	require.NoError(t, err)
	return c
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{name: "valid", config: Config{BaseID: "app1", APIToken: "t"}},
		{name: "missing base", config: Config{APIToken: "t"}, wantErr: ErrConfigMissingBaseID},
		{name: "missing token", config: Config{BaseID: "app1"}, wantErr: ErrConfigMissingToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultBaseURL, tt.config.BaseURL)
			assert.Equal(t, 30, tt.config.TimeoutSeconds)
			assert.Equal(t, 5.0, tt.config.RequestsPerSecond)
			assert.Equal(t, 3, tt.config.MaxRetries)
		})
	}
}

// ---------------------------------------------------------------------------
// ListRecords
// ---------------------------------------------------------------------------

func TestClient_ListRecords_Paginates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v0/appTEST/Open%20Houses", r.URL.EscapedPath())
		assert.Equal(t, "Bearer pat-secret", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("pageSize"))

		switch r.URL.Query().Get("offset") {
		case "":
			_, _ = w.Write([]byte(`{"records":[{"id":"rec1","createdTime":"2024-03-01T10:00:00.000Z","fields":{"Name":"A"}}],"offset":"itr2"}`))
		case "itr2":
			_, _ = w.Write([]byte(`{"records":[{"id":"rec2","fields":{}}]}`))
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	}, -1)

	ctx := context.Background()
	first, err := c.ListRecords(ctx, integration.ListRecordsRequest{Table: "Open Houses"})
	require.NoError(t, err)
	require.Len(t, first.Records, 1)
	assert.Equal(t, "rec1", first.Records[0].ID)
	assert.Equal(t, "A", first.Records[0].Fields["Name"])
	assert.Equal(t, 2024, first.Records[0].CreatedTime.Year())
	assert.True(t, first.HasMore())

	second, err := c.ListRecords(ctx, integration.ListRecordsRequest{Table: "Open Houses", Offset: first.Offset})
	require.NoError(t, err)
	assert.False(t, second.HasMore())
	assert.NotNil(t, second.Records[0].Fields)
}

func TestClient_ListRecords_RequiresTable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, -1)
	_, err := c.ListRecords(context.Background(), integration.ListRecordsRequest{})
	assert.ErrorIs(t, err, integration.ErrTableNotConfigured)
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

func TestClient_CreateRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v0/appTEST/Listings", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body writeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 460000.0, body.Fields["Price"])
		assert.True(t, body.Typecast)

		_, _ = w.Write([]byte(`{"id":"recNEW","fields":{"Price":460000}}`))
	}, -1)

	rec, err := c.CreateRecord(context.Background(), "Listings", map[string]any{"Price": 460000.0})
	require.NoError(t, err)
	assert.Equal(t, "recNEW", rec.ID)
}

func TestClient_UpdateRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v0/appTEST/Listings/rec1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"rec1","fields":{}}`))
	}, -1)

	rec, err := c.UpdateRecord(context.Background(), "Listings", "rec1", map[string]any{"Price": 1.0})
	require.NoError(t, err)
	assert.Equal(t, "rec1", rec.ID)

	_, err = c.UpdateRecord(context.Background(), "Listings", "", nil)
	assert.ErrorIs(t, err, integration.ErrInvalidRecordID)
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		text     string
	}{
		{"not found", http.StatusNotFound, `{"error":"NOT_FOUND"}`, integration.ErrRemoteRequestFailed, "NOT_FOUND"},
		{"unprocessable", http.StatusUnprocessableEntity, `{"error":{"type":"INVALID_VALUE_FOR_COLUMN","message":"Field \"Price\" cannot accept the provided value"}}`, integration.ErrRemoteRequestFailed, "INVALID_VALUE_FOR_COLUMN"},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"type":"AUTHENTICATION_REQUIRED"}}`, integration.ErrRemoteAuthFailed, "AUTHENTICATION_REQUIRED"},
		{"server error", http.StatusBadGateway, `upstream down`, integration.ErrRemoteUnavailable, "upstream down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, -1)

			_, err := c.ListRecords(context.Background(), integration.ListRecordsRequest{Table: "Listings"})
			require.Error(t, err)

			var te *integration.TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.status, te.StatusCode)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Contains(t, te.Body, tt.text)
		})
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}, -1)

	_, err := c.ListRecords(context.Background(), integration.ListRecordsRequest{Table: "Listings"})
	assert.ErrorIs(t, err, integration.ErrRemoteInvalidResponse)
	assert.True(t, integration.IsTransportError(err))
}

func TestClient_RetriesServiceUnavailable(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"records":[]}`))
	}, 2)

	page, err := c.ListRecords(context.Background(), integration.ListRecordsRequest{Table: "Listings"})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}, 3)

	_, err := c.CreateRecord(context.Background(), "Listings", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_CreateRetries(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
		wantErr   bool
	}{
		{name: "bad gateway is not retried", status: http.StatusBadGateway, wantCalls: 1, wantErr: true},
		{name: "gateway timeout is not retried", status: http.StatusGatewayTimeout, wantCalls: 1, wantErr: true},
		{name: "rate limited is retried", status: http.StatusTooManyRequests, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				if calls.Add(1) == 1 {
					w.WriteHeader(tt.status)
					return
				}
				_, _ = w.Write([]byte(`{"id":"recNew","fields":{}}`))
			}, 3)

			rec, err := c.CreateRecord(context.Background(), "Listings", map[string]any{"Street Address": "9 Elm St"})
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, integration.IsTransportError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "recNew", rec.ID)
		})
	}
}

func TestClient_UpdateRetriesBadGateway(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"rec1","fields":{}}`))
	}, 2)

	_, err := c.UpdateRecord(context.Background(), "Listings", "rec1", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DeadlineIsNotTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.UpdateRecord(ctx, "Listings", "rec1", map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, integration.IsTransportError(err))
}

func TestErrorResponse_Describe(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", errorResponse{Error: json.RawMessage(`"NOT_FOUND"`)}.describe())
	assert.Equal(t, "X: y", errorResponse{Error: json.RawMessage(`{"type":"X","message":"y"}`)}.describe())
	assert.Equal(t, "", errorResponse{}.describe())
}

func TestNewRecordStore(t *testing.T) {
	store, err := NewRecordStore(Config{BaseID: "appTEST"}, nil)
	require.NoError(t, err)
	assert.IsType(t, Unconfigured{}, store)

	_, err = store.ListRecords(context.Background(), integration.ListRecordsRequest{Table: "Listings"})
	assert.ErrorIs(t, err, integration.ErrRemoteNotConfigured)
	_, err = store.UpdateRecord(context.Background(), "Listings", "rec1", nil)
	assert.ErrorIs(t, err, integration.ErrRemoteNotConfigured)

	store, err = NewRecordStore(Config{BaseID: "appTEST", APIToken: "pat"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Client{}, store)
}
