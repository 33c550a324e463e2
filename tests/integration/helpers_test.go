//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
)

type sessionInfo struct {
	ID    string
	Token string
	State map[string]interface{}
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func baseURL() string {
	return envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")
}

func createSession(t *testing.T, difficulty string) sessionInfo {
	t.Helper()

	var body io.Reader
	if difficulty != "" {
		raw, err := json.Marshal(map[string]string{"difficulty": difficulty})
		if err != nil {
			t.Fatalf("marshal session payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/sessions", baseURL()), "application/json", body)
	if err != nil {
		t.Fatalf("create session request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected create session status: %d", resp.StatusCode)
	}

	var out struct {
		SessionID string                 `json:"session_id"`
		Token     string                 `json:"token"`
		State     map[string]interface{} `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode session response failed: %v", err)
	}
	if out.Token == "" {
		t.Fatalf("empty token in session response")
	}

	return sessionInfo{ID: out.SessionID, Token: out.Token, State: out.State}
}

func makeAuthenticatedRequest(t *testing.T, method, url, token string, payload interface{}) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
}

func sessionURL(id, suffix string) string {
	return fmt.Sprintf("%s/v1/sessions/%s%s", baseURL(), id, suffix)
}
