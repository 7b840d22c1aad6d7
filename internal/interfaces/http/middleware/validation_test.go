package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/dto"
)

type pullRequest struct {
	EntityType string `json:"entity_type" binding:"required,oneof=listing agent"`
	PageSize   int    `json:"page_size" binding:"omitempty,min=1,max=100"`
}

func TestHandleValidationError(t *testing.T) {
	SetupValidator()

	r := gin.New()
	r.Use(RequestID())
	r.POST("/", func(c *gin.Context) {
		var req pullRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name      string
		body      string
		wantField string
		wantMsg   string
	}{
		{name: "required", body: `{}`, wantField: "entity_type", wantMsg: "This field is required"},
		{name: "oneof", body: `{"entity_type":"boat"}`, wantField: "entity_type", wantMsg: "Must be one of: listing agent"},
		{name: "max", body: `{"entity_type":"agent","page_size":500}`, wantField: "page_size", wantMsg: "Must be at most 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)))
			require.Equal(t, http.StatusBadRequest, w.Code)

			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
			require.Len(t, resp.Error.Details, 1)
			assert.Equal(t, tt.wantField, resp.Error.Details[0].Field)
			assert.Equal(t, tt.wantMsg, resp.Error.Details[0].Message)
		})
	}
}
