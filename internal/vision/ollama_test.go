package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func ollamaReply(t *testing.T, content string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"message": map[string]string{"role": "assistant", "content": content},
		"done":    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestOllamaAnalyze_InlinesPhotos(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/photos/"):
			if r.URL.Path == "/photos/missing.jpg" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte("jpeg:" + r.URL.Path))
		case r.URL.Path == "/api/chat":
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decoding request: %v", err)
			}
			w.Write(ollamaReply(t, modelJSON))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "llava:13b")
	photos := []string{srv.URL + "/photos/a.jpg", srv.URL + "/photos/missing.jpg", srv.URL + "/photos/b.jpg"}
	out, err := o.Analyze(context.Background(), photos)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if got.Model != "llava:13b" || got.Stream {
		t.Errorf("model = %q stream = %v", got.Model, got.Stream)
	}
	if got.Format == nil {
		t.Error("format schema should be sent")
	}
	if len(got.Messages) != 1 || len(got.Messages[0].Images) != 2 {
		t.Fatalf("messages = %+v, want one message with 2 images", got.Messages)
	}
	img, err := base64.StdEncoding.DecodeString(got.Messages[0].Images[0])
	if err != nil || string(img) != "jpeg:/photos/a.jpg" {
		t.Errorf("first image = %q, %v", img, err)
	}
	if !strings.Contains(got.Messages[0].Content, "these 2 listing photos") {
		t.Errorf("prompt should count the downloaded photos: %q", got.Messages[0].Content)
	}

	if out.OverallRenoLevel != "MAJOR" {
		t.Errorf("reno level = %q, want MAJOR", out.OverallRenoLevel)
	}
	if out.Source != "ollama_vision" {
		t.Errorf("source = %q", out.Source)
	}
}

func TestOllamaAnalyze_NoPhotoDownloads(t *testing.T) {
	chats := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/chat" {
			chats++
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "")
	if _, err := o.Analyze(context.Background(), []string{srv.URL + "/x.jpg"}); err == nil {
		t.Fatal("expected error when no photo downloads")
	}
	if chats != 0 {
		t.Errorf("chat should not be called, got %d calls", chats)
	}
}

func TestOllamaAnalyze_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/chat" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "").Analyze(context.Background(), []string{srv.URL + "/a.jpg"})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("err = %v, want status 500", err)
	}
}

func TestOllamaEnsureReady(t *testing.T) {
	tests := []struct {
		name     string
		models   []string
		wantPull bool
	}{
		{"present with tag", []string{"llava:latest"}, false},
		{"exact name", []string{"llava"}, false},
		{"missing", []string{"phi3.5:latest"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pulled := false
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/api/tags":
					var entries []map[string]string
					for _, m := range tt.models {
						entries = append(entries, map[string]string{"name": m})
					}
					json.NewEncoder(w).Encode(map[string]any{"models": entries})
				case "/api/pull":
					pulled = true
					fmt.Fprintln(w, `{"status":"pulling manifest"}`)
					fmt.Fprintln(w, `{"status":"downloading","total":100,"completed":50}`)
					fmt.Fprintln(w, `{"status":"success"}`)
				}
			}))
			defer srv.Close()

			var out bytes.Buffer
			if err := NewOllama(srv.URL, "llava").EnsureReady(context.Background(), &out); err != nil {
				t.Fatalf("EnsureReady: %v", err)
			}
			if pulled != tt.wantPull {
				t.Errorf("pulled = %v, want %v", pulled, tt.wantPull)
			}
			if tt.wantPull && !strings.Contains(out.String(), "downloading 50%") {
				t.Errorf("progress output = %q", out.String())
			}
		})
	}
}

func TestOllamaEnsureReady_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	var out bytes.Buffer
	err := NewOllama(srv.URL, "llava").EnsureReady(context.Background(), &out)
	if err == nil || !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("err = %v, want not reachable", err)
	}
}
