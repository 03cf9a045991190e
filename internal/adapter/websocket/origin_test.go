package websocket

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/connection/websocket", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name          string
		appURL        string
		isDevelopment bool
		origin        string
		want          bool
	}{
		{name: "empty origin allowed", appURL: "https://app.example.com", origin: "", want: true},
		{name: "app origin allowed", appURL: "https://app.example.com", origin: "https://app.example.com", want: true},
		{name: "foreign origin rejected", appURL: "https://app.example.com", origin: "https://evil.example.com", want: false},
		{name: "localhost rejected in production", appURL: "https://app.example.com", origin: "http://localhost:3000", want: false},
		{name: "localhost allowed in development", appURL: "https://app.example.com", isDevelopment: true, origin: "http://localhost:3000", want: true},
		{name: "loopback ip allowed in development", appURL: "https://app.example.com", isDevelopment: true, origin: "http://127.0.0.1:3000", want: true},
		{name: "scheme mismatch rejected", appURL: "https://app.example.com", origin: "http://app.example.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewCheckOrigin(tt.appURL, tt.isDevelopment)
			assert.Equal(t, tt.want, check(requestWithOrigin(tt.origin)))
		})
	}
}
