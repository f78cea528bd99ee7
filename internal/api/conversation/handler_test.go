package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"rag-chatbot/internal/database"
	"rag-chatbot/pkg/apperror"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHistory struct {
	rows  []database.Exchange
	err   error
	id    string
	limit int
}

func (s *stubHistory) Conversation(_ context.Context, id string, limit int) ([]database.Exchange, error) {
	s.id, s.limit = id, limit
	return s.rows, s.err
}

func get(t *testing.T, history History, target string) (int, []byte) {
	t.Helper()
	app := fiber.New()
	RegisterRoutes(app, NewHandler(history))
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	return resp.StatusCode, raw
}

func TestHandleGet(t *testing.T) {
	history := &stubHistory{rows: []database.Exchange{
		{ID: 1, Question: "What is Python?", Answer: "A language."},
		{ID: 2, Question: "And Go?", Answer: "Also a language."},
	}}

	code, raw := get(t, history, "/conversations/c-42?limit=10")

	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "c-42", history.id)
	assert.Equal(t, 10, history.limit)

	var body struct {
		Data conversationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "c-42", body.Data.ConversationID)
	require.Len(t, body.Data.Exchanges, 2)
	assert.Equal(t, "And Go?", body.Data.Exchanges[1].Question)
}

func TestHandleGet_Errors(t *testing.T) {
	tests := []struct {
		name     string
		history  History
		wantHTTP int
		wantCode string
	}{
		{name: "disabled", history: nil, wantHTTP: 503, wantCode: "AI-4500"},
		{name: "unknown", history: &stubHistory{}, wantHTTP: 404, wantCode: "AI-4000"},
		{name: "db error", history: &stubHistory{err: errors.New("gone")}, wantHTTP: 500, wantCode: "AI-4501"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, raw := get(t, tt.history, "/conversations/c-1")

			assert.Equal(t, tt.wantHTTP, code)
			var body apperror.ErrorResponse
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, tt.wantCode, body.ErrorCode)
		})
	}
}
