package shortener

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestShorten_PreservesIndexAlignment(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req shortenRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := shortenResponse{ShortURLs: make([]string, len(req.LongURLs))}
		for i, u := range req.LongURLs {
			resp.ShortURLs[i] = "https://short.ly/" + u[len(u)-1:]
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s, err := New(server.URL, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	urls := []string{"https://example.org/a", "https://example.org/b"}
	out, err := s.Shorten(context.Background(), urls)
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != "https://short.ly/a" || out[1] != "https://short.ly/b" {
		t.Fatalf("out = %v", out)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestShorten_CachesResults(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req shortenRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := shortenResponse{ShortURLs: make([]string, len(req.LongURLs))}
		for i := range req.LongURLs {
			resp.ShortURLs[i] = "https://short.ly/x"
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s, err := New(server.URL, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	url := "https://example.org/a"
	if _, err := s.Shorten(context.Background(), []string{url}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Shorten(context.Background(), []string{url}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (second call should hit cache)", calls)
	}
}

func TestTokensFromEnv(t *testing.T) {
	tokens := TokensFromEnv(" tok1, tok2 ,tok3")
	if len(tokens) != 3 || tokens[0] != "tok1" || tokens[2] != "tok3" {
		t.Fatalf("tokens = %v", tokens)
	}
	if TokensFromEnv("") != nil {
		t.Fatal("expected nil for empty string")
	}
}
