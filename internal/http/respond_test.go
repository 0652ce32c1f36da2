package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fjod/go_cart/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondJSON_EncodeFailureUsesHandlerLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "cart-checkout", "info")
	ctx := logger.WithRequestID(context.Background(), "req-42")

	rec := httptest.NewRecorder()
	respondJSON(ctx, rec, log, http.StatusOK, map[string]interface{}{"bad": make(chan int)})

	assert.Equal(t, http.StatusOK, rec.Code)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "failed to encode response", entry["msg"])
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "cart-checkout", entry["service"])
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"7", 7, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rec := httptest.NewRecorder()
			id, ok := parseID(context.Background(), rec, logger.Discard(), tt.raw, "product_id")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, id)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			}
		})
	}
}
