package player

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServeHTTP(t *testing.T) {
	tests := []struct {
		name      string
		publicURL string
		target    string
		code      int
		source    string
	}{
		{"video", "", "/player/dQw4w9WgXcQ", http.StatusOK, `"/dQw4w9WgXcQ"`},
		{"handle behind public url", "https://relay.example/", "/player/@somechannel", http.StatusOK, `"https://relay.example/@somechannel"`},
		{"missing identifier", "", "/player/", http.StatusBadRequest, ""},
		{"invalid identifier", "", "/player/%22%3E", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			module := New("/player", &Config{PublicURL: tt.publicURL})

			w := httptest.NewRecorder()
			module.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.code, w.Code)
			if tt.source != "" {
				assert.Contains(t, w.Body.String(), "var source = "+tt.source+";")
				assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
			}
		})
	}
}
