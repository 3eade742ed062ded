package pkg

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteResponseBytes(t *testing.T) {
	w := httptest.NewRecorder()
	WriteResponseBytes(w, ContentType.JSON, []byte(`{"ok":true}`), http.StatusCreated)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, w.Body.String())
}

func TestWriteTextResponseOK(t *testing.T) {
	w := httptest.NewRecorder()
	WriteTextResponseOK(w, "added")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, "added", w.Body.String())
}

func TestWriteResponse_NoContentType(t *testing.T) {
	w := httptest.NewRecorder()
	WriteResponse(w, "", "hello", http.StatusOK)
	assert.Empty(t, w.Header().Get("Content-Type"))
	assert.Equal(t, "hello", w.Body.String())
}
