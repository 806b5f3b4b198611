//go:build unit

package artifact_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmci/charmci/internal/artifact"
	"github.com/charmci/charmci/internal/gha"
	"github.com/charmci/charmci/internal/retry"
)

const artifactsPath = "/api/v3/repos/canonical/etcd-operator/actions/runs/88/artifacts"

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return buf.Bytes()
}

func newClient(t *testing.T, srv *httptest.Server) *artifact.Client {
	t.Helper()

	gh, err := gha.NewClient(srv.URL, "", "charmci-test/dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo := gha.Repository{Owner: "canonical", Name: "etcd-operator"}

	return artifact.NewClient(gh, repo).WithRetryPolicy(fastRetry())
}

func TestListPaginates(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc(artifactsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"total_count":2,"artifacts":[{"id":2,"name":"b__plan","size_in_bytes":10}]}`)

			return
		}

		w.Header().Set("Link", fmt.Sprintf(`<%s%s?page=2&per_page=100>; rel="next"`, srv.URL, artifactsPath))
		fmt.Fprint(w, `{"total_count":2,"artifacts":[{"id":1,"name":"a__plan","size_in_bytes":5,"expired":true}]}`)
	})

	infos, err := newClient(t, srv).List(context.Background(), 88)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(infos) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(infos))
	}
	if infos[0].Name != "a__plan" || !infos[0].Expired {
		t.Fatalf("unexpected first artifact: %+v", infos[0])
	}
	if infos[1].Name != "b__plan" || infos[1].ID != 2 {
		t.Fatalf("unexpected second artifact: %+v", infos[1])
	}
}

func TestDownloadExtracts(t *testing.T) {
	zipBytes := buildZip(t, map[string]string{
		"manifest.json":  `{"name":"etcd"}`,
		"nested/etcd.py": "pass\n",
	})

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/api/v3/repos/canonical/etcd-operator/actions/artifacts/5/zip", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/blob/5", http.StatusFound)
	})
	mux.HandleFunc("/blob/5", func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes)
	})

	destDir := t.TempDir()

	extracted, err := newClient(t, srv).Download(context.Background(), 5, destDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(extracted) != 2 {
		t.Fatalf("expected 2 extracted files, got %v", extracted)
	}

	manifest, err := os.ReadFile(filepath.Join(destDir, "manifest.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(manifest) != `{"name":"etcd"}` {
		t.Fatalf("unexpected manifest content: %s", manifest)
	}

	if _, err := os.Stat(filepath.Join(destDir, "nested", "etcd.py")); err != nil {
		t.Fatalf("expected the nested file to be extracted: %v", err)
	}
}

func TestDownloadRejectsEscapingPaths(t *testing.T) {
	zipBytes := buildZip(t, map[string]string{"../evil.txt": "nope"})

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/api/v3/repos/canonical/etcd-operator/actions/artifacts/6/zip", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/blob/6", http.StatusFound)
	})
	mux.HandleFunc("/blob/6", func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes)
	})

	destDir := t.TempDir()

	_, err := newClient(t, srv).Download(context.Background(), 6, destDir)
	if err == nil {
		t.Fatal("expected an error for an escaping archive entry")
	}
	if !strings.Contains(err.Error(), "escapes destination") {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, statErr := os.Stat(filepath.Join(filepath.Dir(destDir), "evil.txt")); statErr == nil {
		t.Fatal("expected no file outside the destination")
	}
}

func TestDownloadRecoversFromTransientFailure(t *testing.T) {
	zipBytes := buildZip(t, map[string]string{"manifest.json": "{}"})

	var attempts atomic.Int64

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/api/v3/repos/canonical/etcd-operator/actions/artifacts/7/zip", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		http.Redirect(w, r, srv.URL+"/blob/7", http.StatusFound)
	})
	mux.HandleFunc("/blob/7", func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes)
	})

	extracted, err := newClient(t, srv).Download(context.Background(), 7, t.TempDir())
	if err != nil {
		t.Fatalf("expected the retry to recover, got: %v", err)
	}
	if len(extracted) != 1 {
		t.Fatalf("expected 1 extracted file, got %v", extracted)
	}
	if attempts.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestDownloadNamed(t *testing.T) {
	zipBytes := buildZip(t, map[string]string{"etcd.charm": "charm-bytes"})

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc(artifactsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "1700-aaaa__build__output__charm__etcd" {
			fmt.Fprint(w, `{"total_count":0,"artifacts":[]}`)

			return
		}

		fmt.Fprint(w, `{"total_count":1,"artifacts":[{"id":9,"name":"1700-aaaa__build__output__charm__etcd"}]}`)
	})
	mux.HandleFunc("/api/v3/repos/canonical/etcd-operator/actions/artifacts/9/zip", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/blob/9", http.StatusFound)
	})
	mux.HandleFunc("/blob/9", func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes)
	})

	client := newClient(t, srv)

	extracted, err := client.DownloadNamed(
		context.Background(), 88, "1700-aaaa__build__output__charm__etcd", t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(extracted) != 1 || filepath.Base(extracted[0]) != "etcd.charm" {
		t.Fatalf("unexpected extraction: %v", extracted)
	}

	_, err = client.DownloadNamed(context.Background(), 88, "missing", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "artifact not found") {
		t.Fatalf("expected a not-found error, got: %v", err)
	}
}
