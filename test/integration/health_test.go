package integration

import (
	"net/http"
	"strings"
	"testing"
)

func TestProbesWithoutAuth(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "ok"},
		{"/readyz", "ready"},
		{"/metrics", "askstream_"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := getURL(t, testEnv.BaseURL()+tt.path)
			if resp.StatusCode != http.StatusOK {
				t.Errorf("GET %s = %d, want 200", tt.path, resp.StatusCode)
			}
			if body := readBody(t, resp); !strings.Contains(body, tt.want) {
				t.Errorf("GET %s body does not contain %q", tt.path, tt.want)
			}
		})
	}
}

func TestMCPRequiresAuth(t *testing.T) {
	resp, err := http.Post(testEnv.BaseURL()+"/mcp", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /mcp: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("POST /mcp without key = %d, want 401", resp.StatusCode)
	}
}
