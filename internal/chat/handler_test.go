package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newChatRouter(ing Ingester) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/chat", WebhookHandler{Chat: ing}.HandleMessages)
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleMessages(t *testing.T) {
	repo := NewMemoryRepo()
	r := newChatRouter(NewService(repo))

	w := post(r, `{"messages":[{"messageId":"m1","channelId":"c","chatType":"whatsapp","chatId":"7916","dateTime":"2024-03-01T10:00:00.000Z","type":"text","status":"inbound","text":"hi"},`+
		`{"messageId":"m2","dateTime":"garbage"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success"}`, w.Body.String())

	_, ok := repo.Get("m1")
	assert.True(t, ok)
	_, ok = repo.Get("m2")
	assert.False(t, ok)
}

func TestHandleMessages_TestPing(t *testing.T) {
	r := newChatRouter(NewService(NewMemoryRepo()))
	w := post(r, `{"test":true}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleMessages_BadJSON(t *testing.T) {
	r := newChatRouter(NewService(NewMemoryRepo()))
	w := post(r, `{"messages":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleMessages_StoreFailure(t *testing.T) {
	r := newChatRouter(NewService(failingRepo{}))
	w := post(r, `{"messages":[{"messageId":"m1","dateTime":"2024-03-01T10:00:00Z"}]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleMessages_WrongTypedEntrySkipped(t *testing.T) {
	repo := NewMemoryRepo()
	r := newChatRouter(NewService(repo))

	w := post(r, `{"messages":[{"messageId":"m1","dateTime":"2024-03-01T10:00:00Z"},`+
		`{"messageId":"m2","dateTime":"2024-03-01T10:00:00Z","isEcho":"yes"},`+
		`"garbage",`+
		`{"messageId":"m3","dateTime":"2024-03-01T10:00:00Z","contact":{"name":"Anna"}}]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	_, ok := repo.Get("m1")
	assert.True(t, ok)
	_, ok = repo.Get("m2")
	assert.False(t, ok)
	_, ok = repo.Get("m3")
	assert.True(t, ok)
}

func TestHandleMessages_MessagesNotAnArray(t *testing.T) {
	repo := NewMemoryRepo()
	r := newChatRouter(NewService(repo))

	for _, body := range []string{`{"messages":{"messageId":"m1"}}`, `{"messages":"m1"}`, `{"messages":null}`} {
		w := post(r, body)
		assert.Equal(t, http.StatusOK, w.Code, body)
	}
	_, ok := repo.Get("m1")
	assert.False(t, ok)
}

func TestDecodeMessages(t *testing.T) {
	msgs, dropped, err := DecodeMessages([]byte(`[{"messageId":"a"},{"messageId":7},{"messageId":"b"}]`))
	assert.NoError(t, err)
	assert.Equal(t, 1, dropped)
	if assert.Len(t, msgs, 2) {
		assert.Equal(t, "a", msgs[0].MessageID)
		assert.Equal(t, "b", msgs[1].MessageID)
	}

	_, _, err = DecodeMessages([]byte(`{"messageId":"a"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}
