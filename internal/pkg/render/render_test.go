package render

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChiErr(t *testing.T) {
	w := httptest.NewRecorder()
	ChiErr(w, http.StatusNotFound, "")

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	require.JSONEq(t, `{"error":"Not Found"}`, w.Body.String())
}

func TestChiJSON(t *testing.T) {
	w := httptest.NewRecorder()
	ChiJSON(w, http.StatusAccepted, map[string]any{"ok": true})

	require.Equal(t, http.StatusAccepted, w.Code)
	require.JSONEq(t, `{"ok":true}`, w.Body.String())
}
