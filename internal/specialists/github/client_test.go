package github

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := NewClient(token)
	client.baseURL = srv.URL
	client.http = srv.Client()
	return client, srv.Close
}

func TestRequestSetsAuthorizationAndAPIHeaders(t *testing.T) {
	var gotAuth, gotAccept, gotVersion string
	client, closeSrv := newTestClient(t, "gh-token-123", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotVersion = r.Header.Get("X-GitHub-Api-Version")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	})
	defer closeSrv()

	if _, err := client.request(context.Background(), http.MethodGet, "/repos/octocat/hello-world", nil, nil); err != nil {
		t.Fatalf("request: %v", err)
	}
	if gotAuth != "Bearer gh-token-123" {
		t.Errorf("Authorization = %q, want Bearer gh-token-123", gotAuth)
	}
	if gotAccept != "application/vnd.github+json" {
		t.Errorf("Accept = %q, want application/vnd.github+json", gotAccept)
	}
	if gotVersion != "2022-11-28" {
		t.Errorf("X-GitHub-Api-Version = %q, want 2022-11-28", gotVersion)
	}
}

func TestRequestOmitsAuthorizationHeaderWithEmptyToken(t *testing.T) {
	var gotAuth []string
	var sawHeader bool
	client, closeSrv := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		gotAuth, sawHeader = r.Header["Authorization"], r.Header["Authorization"] != nil
		_ = gotAuth
		w.Write([]byte(`{}`))
	})
	defer closeSrv()

	if _, err := client.request(context.Background(), http.MethodGet, "/rate_limit", nil, nil); err != nil {
		t.Fatalf("request: %v", err)
	}
	if sawHeader {
		t.Errorf("expected no Authorization header for an empty token")
	}
}

func TestRequestDecodesSuccessfulJSONBody(t *testing.T) {
	client, closeSrv := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"default_branch": "main"}`))
	})
	defer closeSrv()

	result, err := client.request(context.Background(), http.MethodGet, "/repos/octocat/hello-world", nil, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	data := result.(map[string]any)
	if data["default_branch"] != "main" {
		t.Errorf("default_branch = %v, want main", data["default_branch"])
	}
}

func TestRequestFailsImmediatelyOn404WithoutRetrying(t *testing.T) {
	attempts := 0
	client, closeSrv := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	})
	defer closeSrv()

	_, err := client.request(context.Background(), http.MethodGet, "/repos/octocat/nope", nil, nil)
	if err == nil {
		t.Fatalf("expected an error for a 404 response")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (404 must not retry)", attempts)
	}
}

func TestRequestFailsImmediatelyOn401WithoutRetrying(t *testing.T) {
	attempts := 0
	client, closeSrv := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer closeSrv()

	_, err := client.request(context.Background(), http.MethodGet, "/repos/octocat/hello-world", nil, nil)
	if err == nil {
		t.Fatalf("expected an error for a 401 response")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 401 {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (401 must not retry)", attempts)
	}
}

func TestRequestFailsImmediatelyOnGenericClientErrorWithoutRetrying(t *testing.T) {
	attempts := 0
	client, closeSrv := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("validation failed"))
	})
	defer closeSrv()

	_, err := client.request(context.Background(), http.MethodPost, "/repos/octocat/hello-world/dispatches", nil, map[string]any{"ref": "main"})
	if err == nil {
		t.Fatalf("expected an error for a 422 response")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (non-429 4xx must not retry)", attempts)
	}
}

func TestRequestSendsJSONBodyForWrites(t *testing.T) {
	var gotBody string
	client, closeSrv := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.WriteHeader(http.StatusNoContent)
	})
	defer closeSrv()

	_, err := client.request(context.Background(), http.MethodPost, "/repos/octocat/hello-world/dispatches", nil,
		map[string]any{"ref": "main", "workflow_id": "ci.yml"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if gotBody == "" {
		t.Errorf("expected a non-empty request body")
	}
}
