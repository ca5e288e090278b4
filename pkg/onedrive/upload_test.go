package onedrive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/telebridge/internal/apperr"
)

func TestCreateUploadSession(t *testing.T) {
	var gotPath, gotBehavior string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()

		var body struct {
			Item map[string]any `json:"item"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		gotBehavior, _ = body.Item["@microsoft.graph.conflictBehavior"].(string)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"uploadUrl":"https://upload.example.com/s/1","expirationDateTime":"2026-01-01T00:00:00Z"}`))
	}))
	defer server.Close()

	client := newTestClient(t, "", server.URL)

	session, err := client.CreateUploadSession(context.Background(), "at-1", "/Videos/my file.mp4")
	if err != nil {
		t.Fatalf("CreateUploadSession failed: %v", err)
	}

	if session.UploadURL != "https://upload.example.com/s/1" {
		t.Errorf("UploadURL = %q", session.UploadURL)
	}
	if want := "/me/drive/root:/Videos/my%20file.mp4:/createUploadSession"; gotPath != want {
		t.Errorf("request path = %q, want %q", gotPath, want)
	}
	if gotBehavior != "rename" {
		t.Errorf("conflictBehavior = %q, want rename", gotBehavior)
	}
}

func TestUploadPart(t *testing.T) {
	t.Run("intermediate part returns no item", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Content-Range"); got != "bytes 0-4/20" {
				t.Errorf("Content-Range = %q, want bytes 0-4/20", got)
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != "hello" {
				t.Errorf("body = %q, want hello", body)
			}

			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"nextExpectedRanges":["5-"]}`))
		}))
		defer server.Close()

		client := newTestClient(t, "", "")

		item, err := client.UploadPart(context.Background(), server.URL, []byte("hello"), 0, 20)
		if err != nil {
			t.Fatalf("UploadPart failed: %v", err)
		}
		if item != nil {
			t.Errorf("intermediate part returned item %+v", item)
		}
	})

	t.Run("final part returns the drive item", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Content-Range"); got != "bytes 15-19/20" {
				t.Errorf("Content-Range = %q, want bytes 15-19/20", got)
			}

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"item-1","name":"file 1.bin","size":20}`))
		}))
		defer server.Close()

		client := newTestClient(t, "", "")

		item, err := client.UploadPart(context.Background(), server.URL, []byte("tail!"), 15, 20)
		if err != nil {
			t.Fatalf("UploadPart failed: %v", err)
		}
		if item == nil {
			t.Fatal("final part returned no item")
		}
		if item.Name != "file 1.bin" {
			t.Errorf("item name = %q, want the drive's effective name", item.Name)
		}
	})

	t.Run("empty part is rejected", func(t *testing.T) {
		client := newTestClient(t, "", "")

		_, err := client.UploadPart(context.Background(), "https://upload.example.com/s/1", nil, 0, 20)
		if err == nil {
			t.Fatal("expected error for empty part")
		}
	})

	t.Run("graph error is classified", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"itemNotFound","message":"The upload session was not found."}}`))
		}))
		defer server.Close()

		client := newTestClient(t, "", "")

		_, err := client.UploadPart(context.Background(), server.URL, []byte("data"), 0, 4)
		if err == nil {
			t.Fatal("expected error for missing session")
		}
		if !apperr.IsKind(err, apperr.NotFound) {
			t.Errorf("error kind = %v, want not_found: %v", apperr.KindOf(err), err)
		}
	})
}

func TestSessionStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"expirationDateTime":"2026-01-01T00:00:00Z","nextExpectedRanges":["327680-"]}`))
	}))
	defer server.Close()

	client := newTestClient(t, "", "")

	session, err := client.SessionStatus(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("SessionStatus failed: %v", err)
	}
	if session.UploadURL != server.URL {
		t.Errorf("UploadURL = %q, want the queried URL carried over", session.UploadURL)
	}

	offset, err := session.NextOffset()
	if err != nil {
		t.Fatalf("NextOffset failed: %v", err)
	}
	if offset != 327680 {
		t.Errorf("NextOffset = %d, want 327680", offset)
	}
}

func TestNextOffset(t *testing.T) {
	tests := []struct {
		name    string
		ranges  []string
		want    int64
		wantErr bool
	}{
		{name: "open range", ranges: []string{"12345-"}, want: 12345},
		{name: "closed range", ranges: []string{"0-319999", "640000-"}, want: 0},
		{name: "no ranges", ranges: nil, wantErr: true},
		{name: "garbage", ranges: []string{"x-"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &UploadSession{NextExpectedRanges: tt.ranges}

			offset, err := session.NextOffset()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NextOffset failed: %v", err)
			}
			if offset != tt.want {
				t.Errorf("NextOffset = %d, want %d", offset, tt.want)
			}
		})
	}
}

func TestAbortUploadSession(t *testing.T) {
	var gotMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(t, "", "")

	if err := client.AbortUploadSession(context.Background(), server.URL); err != nil {
		t.Fatalf("AbortUploadSession failed: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", gotMethod)
	}
}

func TestValidateRootPath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{path: "/", wantErr: false},
		{path: "/Videos", wantErr: false},
		{path: "relative/path", wantErr: true},
		{path: "/drive/root:", wantErr: true},
		{path: "/drive/root:/Videos", wantErr: true},
		{path: "/drive/rooty", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidateRootPath(tt.path)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateRootPath(%q) = nil, want error", tt.path)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateRootPath(%q) = %v, want nil", tt.path, err)
			}
		})
	}
}
