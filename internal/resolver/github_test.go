package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const testProperties = `build_version=v2.1.0
jre_URL_Win64=https://cdn.example.com/jre-17.zip
jre_SHA256_Signature_Win64=abc123
jre_FolderName_Win64=jdk-17-jre
`

type requestLog struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (l *requestLog) add(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, r)
}

func (l *requestLog) all() []*http.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*http.Request(nil), l.requests...)
}

// newReleaseServer serves a latest release, its tag and the derived download paths.
func newReleaseServer(t *testing.T, releaseJSON string, properties string) (*httptest.Server, *requestLog) {
	t.Helper()
	requests := &requestLog{}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/isp/memate/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		requests.add(r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(releaseJSON))
	})
	mux.HandleFunc("/repos/isp/memate/releases/tags/v1.0.0", func(w http.ResponseWriter, r *http.Request) {
		requests.add(r)
		_, _ = w.Write([]byte(`{"tag_name":"v1.0.0"}`))
	})
	mux.HandleFunc("/isp/memate/releases/download/", func(w http.ResponseWriter, r *http.Request) {
		requests.add(r)
		if !strings.HasSuffix(r.URL.Path, "/"+PropertiesAsset) {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(properties))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, requests
}

func newTestResolver(server *httptest.Server) *GitHubResolver {
	return NewGitHubResolver("isp", "memate", "memate.exe").
		WithBaseURLs(server.URL, server.URL)
}

func TestNewGitHubResolver(t *testing.T) {
	r := NewGitHubResolver("isp-insoft-gmbh", "MeMate", "memate.exe")

	if r.owner != "isp-insoft-gmbh" {
		t.Errorf("owner = %s, want isp-insoft-gmbh", r.owner)
	}
	if r.release != LatestRelease {
		t.Errorf("release = %s, want %s", r.release, LatestRelease)
	}
	if r.apiBaseURL != "https://api.github.com" {
		t.Errorf("apiBaseURL = %s", r.apiBaseURL)
	}
	if r.client.Timeout == 0 {
		t.Error("metadata client should have a timeout")
	}
}

func TestResolveLatest_DerivedURLs(t *testing.T) {
	server, requests := newReleaseServer(t, `{"tag_name":"v2.1.0","assets":[]}`, testProperties)

	rel, err := newTestResolver(server).ResolveLatest(context.Background())
	if err != nil {
		t.Fatalf("ResolveLatest() error = %v", err)
	}

	if rel.Tag != "v2.1.0" {
		t.Errorf("Tag = %s, want v2.1.0", rel.Tag)
	}
	wantClient := server.URL + "/isp/memate/releases/download/v2.1.0/memate.exe"
	if rel.ClientURL != wantClient {
		t.Errorf("ClientURL = %s, want %s", rel.ClientURL, wantClient)
	}
	if rel.Descriptor.BuildVersion != "v2.1.0" || rel.Descriptor.RuntimeFolderName != "jdk-17-jre" {
		t.Errorf("Descriptor = %+v", rel.Descriptor)
	}

	if len(requests.all()) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests.all()))
	}
	if got := requests.all()[0].Header.Get("Accept"); got != "application/vnd.github+json" {
		t.Errorf("Accept = %q", got)
	}
	if got := requests.all()[0].Header.Get("User-Agent"); !strings.HasPrefix(got, "MeMate-Launcher/") {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestResolveLatest_PrefersListedAssets(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/isp/memate/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name":"v3","assets":[
			{"name":"memate.exe","browser_download_url":"%[1]s/assets/client"},
			{"name":"version.properties","browser_download_url":"%[1]s/assets/props"}
		]}`, server.URL)
	})
	mux.HandleFunc("/assets/props", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testProperties))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	rel, err := newTestResolver(server).ResolveLatest(context.Background())
	if err != nil {
		t.Fatalf("ResolveLatest() error = %v", err)
	}
	if rel.ClientURL != server.URL+"/assets/client" {
		t.Errorf("ClientURL = %s", rel.ClientURL)
	}
	if rel.PropertiesURL != server.URL+"/assets/props" {
		t.Errorf("PropertiesURL = %s", rel.PropertiesURL)
	}
}

func TestResolveLatest_PinnedRelease(t *testing.T) {
	server, requests := newReleaseServer(t, `{}`, testProperties)

	rel, err := newTestResolver(server).WithRelease("v1.0.0").ResolveLatest(context.Background())
	if err != nil {
		t.Fatalf("ResolveLatest() error = %v", err)
	}
	if rel.Tag != "v1.0.0" {
		t.Errorf("Tag = %s, want v1.0.0", rel.Tag)
	}
	if path := requests.all()[0].URL.Path; path != "/repos/isp/memate/releases/tags/v1.0.0" {
		t.Errorf("release path = %s", path)
	}
}

func TestResolveLatest_Token(t *testing.T) {
	server, requests := newReleaseServer(t, `{"tag_name":"v2.1.0"}`, testProperties)

	_, err := newTestResolver(server).WithToken("ghp_test123").ResolveLatest(context.Background())
	if err != nil {
		t.Fatalf("ResolveLatest() error = %v", err)
	}
	if got := requests.all()[0].Header.Get("Authorization"); got != "Bearer ghp_test123" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestResolveLatest_Errors(t *testing.T) {
	tests := []struct {
		name       string
		release    string
		properties string
		wantStage  Stage
	}{
		{
			name:      "malformed json",
			release:   `{"tag_name":`,
			wantStage: StageRelease,
		},
		{
			name:      "empty tag",
			release:   `{"tag_name":"  "}`,
			wantStage: StageRelease,
		},
		{
			name:       "incomplete descriptor",
			release:    `{"tag_name":"v2"}`,
			properties: "build_version=v2\n",
			wantStage:  StageDescriptor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newReleaseServer(t, tt.release, tt.properties)

			_, err := newTestResolver(server).ResolveLatest(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			var resErr *ResolutionError
			if !errors.As(err, &resErr) {
				t.Fatalf("error should be a ResolutionError, got %T: %v", err, err)
			}
			if resErr.Stage != tt.wantStage {
				t.Errorf("Stage = %s, want %s", resErr.Stage, tt.wantStage)
			}
		})
	}
}

func TestResolveLatest_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestResolver(server).ResolveLatest(context.Background())
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error should mention status, got %v", err)
	}
}

func TestResolveLatest_NetworkError(t *testing.T) {
	r := NewGitHubResolver("isp", "memate", "memate.exe").
		WithBaseURLs("http://127.0.0.1:1", "http://127.0.0.1:1")

	_, err := r.ResolveLatest(context.Background())
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
}
