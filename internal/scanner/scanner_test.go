//go:build unit

package scanner_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/charmci/charmci/internal/artifact"
	"github.com/charmci/charmci/internal/gha"
	"github.com/charmci/charmci/internal/retry"
	"github.com/charmci/charmci/internal/scanner"
	"github.com/charmci/charmci/pkg/plan"
)

const buildRunID = int64(88)

type fixture struct {
	mux     *http.ServeMux
	srv     *httptest.Server
	scanner *scanner.Scanner

	ids    map[string]int64
	nextID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{mux: http.NewServeMux(), ids: map[string]int64{}}
	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)

	gh, err := gha.NewClient(f.srv.URL, "", "charmci-test/dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo := gha.Repository{Owner: "canonical", Name: "etcd-operator"}
	arts := artifact.NewClient(gh, repo).WithRetryPolicy(retry.Policy{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	})

	f.scanner = scanner.New(arts)

	f.mux.HandleFunc(
		fmt.Sprintf("/api/v3/repos/canonical/etcd-operator/actions/runs/%d/artifacts", buildRunID),
		func(w http.ResponseWriter, r *http.Request) {
			name := r.URL.Query().Get("name")
			id, ok := f.ids[name]
			if !ok {
				fmt.Fprint(w, `{"total_count":0,"artifacts":[]}`)

				return
			}

			fmt.Fprintf(w, `{"total_count":1,"artifacts":[{"id":%d,"name":%q}]}`, id, name)
		})

	return f
}

func (f *fixture) addManifest(t *testing.T, name, manifest string) {
	t.Helper()

	f.nextID++
	id := f.nextID
	f.ids[name] = id

	var buf bytes.Buffer

	w := zip.NewWriter(&buf)

	zf, err := w.Create("manifest.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := zf.Write([]byte(manifest)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	zipBytes := buf.Bytes()

	f.mux.HandleFunc(
		fmt.Sprintf("/api/v3/repos/canonical/etcd-operator/actions/artifacts/%d/zip", id),
		func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, f.srv.URL+fmt.Sprintf("/blob/%d", id), http.StatusFound)
		})
	f.mux.HandleFunc(fmt.Sprintf("/blob/%d", id), func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes)
	})
}

func containerEntry(buildType plan.BuildType, name, srcDir string, outputType plan.OutputType) plan.BuildEntry {
	return plan.BuildEntry{
		Type:            buildType,
		Name:            name,
		SourceFile:      srcDir + "/rockcraft.yaml",
		SourceDirectory: srcDir,
		OutputType:      outputType,
		Output:          "run__build__output__" + string(buildType) + "__" + name,
	}
}

func TestGenerateEmitsOneEntryPerManifestItem(t *testing.T) {
	f := newFixture(t)

	wd := t.TempDir()
	etcdDir := filepath.Join(wd, "rocks", "etcd")
	redisDir := filepath.Join(wd, "rocks", "redis")
	for _, dir := range []string{etcdDir, redisDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	registry := containerEntry(plan.TypeRock, "etcd", etcdDir, plan.OutputRegistry)
	archive := containerEntry(plan.TypeRock, "redis", redisDir, plan.OutputFile)

	f.addManifest(t, registry.Output, `{"name":"etcd","images":["localhost:32000/etcd:abc"]}`)
	f.addManifest(t, archive.Output,
		`{"name":"redis","files":["redis_1.0_amd64.rock","redis_1.0_arm64.rock"]}`)

	entries, err := f.scanner.Generate(context.Background(), scanner.Config{
		Plan: plan.Plan{
			WorkingDirectory: wd,
			Build: []plan.BuildEntry{
				{
					Type:            plan.TypeCharm,
					Name:            "etcd-operator",
					SourceFile:      wd + "/charmcraft.yaml",
					SourceDirectory: wd,
					OutputType:      plan.OutputFile,
					Output:          "run__build__output__charm__etcd-operator",
				},
				registry,
				archive,
			},
		},
		RunID: buildRunID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []plan.ScanEntry{
		{Artifact: registry.Output, Image: "localhost:32000/etcd:abc", Dir: etcdDir},
		{Artifact: archive.Output, File: "redis_1.0_amd64.rock", Dir: redisDir},
		{Artifact: archive.Output, File: "redis_1.0_arm64.rock", Dir: redisDir},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("expected %+v, got %+v", want, entries)
	}
}

func TestGenerateMergesSharedIgnores(t *testing.T) {
	f := newFixture(t)

	wd := t.TempDir()
	srcDir := filepath.Join(wd, "rocks", "etcd")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ignorePath := filepath.Join(srcDir, ".trivyignore")
	existing := "# known false positive\nCVE-2024-0001\n"
	if err := os.WriteFile(ignorePath, []byte(existing), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := containerEntry(plan.TypeRock, "etcd", srcDir, plan.OutputRegistry)
	f.addManifest(t, entry.Output, `{"name":"etcd","images":["localhost:32000/etcd:abc"]}`)

	entries, err := f.scanner.Generate(context.Background(), scanner.Config{
		Plan:          plan.Plan{WorkingDirectory: wd, Build: []plan.BuildEntry{entry}},
		RunID:         buildRunID,
		SharedIgnores: []string{"CVE-2024-0002", "CVE-2024-0001"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 1 || entries[0].CommonIgnores != ignorePath {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	merged, err := os.ReadFile(ignorePath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := existing + "CVE-2024-0002\n"
	if string(merged) != want {
		t.Fatalf("expected %q, got %q", want, string(merged))
	}
}

func TestGenerateFindsIgnoreFileUpTree(t *testing.T) {
	f := newFixture(t)

	wd := t.TempDir()
	srcDir := filepath.Join(wd, "rocks", "etcd")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ignorePath := filepath.Join(wd, ".trivyignore")
	if err := os.WriteFile(ignorePath, []byte("CVE-2024-0001\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := containerEntry(plan.TypeRock, "etcd", srcDir, plan.OutputRegistry)
	f.addManifest(t, entry.Output, `{"name":"etcd","images":["localhost:32000/etcd:abc"]}`)

	entries, err := f.scanner.Generate(context.Background(), scanner.Config{
		Plan:  plan.Plan{WorkingDirectory: wd, Build: []plan.BuildEntry{entry}},
		RunID: buildRunID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 1 || entries[0].CommonIgnores != ignorePath {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	// Nothing to merge, so the file is untouched.
	content, err := os.ReadFile(ignorePath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(content) != "CVE-2024-0001\n" {
		t.Fatalf("unexpected content: %q", string(content))
	}
}

func TestGenerateCreatesIgnoreFileFromSharedIds(t *testing.T) {
	f := newFixture(t)

	wd := t.TempDir()
	srcDir := filepath.Join(wd, "rocks", "etcd")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := containerEntry(plan.TypeRock, "etcd", srcDir, plan.OutputRegistry)
	f.addManifest(t, entry.Output, `{"name":"etcd","images":["localhost:32000/etcd:abc"]}`)

	entries, err := f.scanner.Generate(context.Background(), scanner.Config{
		Plan:          plan.Plan{WorkingDirectory: wd, Build: []plan.BuildEntry{entry}},
		RunID:         buildRunID,
		SharedIgnores: []string{"CVE-2024-0001", "CVE-2024-0002"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantPath := filepath.Join(srcDir, ".trivyignore")
	if len(entries) != 1 || entries[0].CommonIgnores != wantPath {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	content, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(content) != "CVE-2024-0001\nCVE-2024-0002\n" {
		t.Fatalf("unexpected content: %q", string(content))
	}
}

func TestGenerateWithoutIgnores(t *testing.T) {
	f := newFixture(t)

	wd := t.TempDir()
	srcDir := filepath.Join(wd, "rocks", "etcd")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := containerEntry(plan.TypeRock, "etcd", srcDir, plan.OutputRegistry)
	f.addManifest(t, entry.Output, `{"name":"etcd","images":["localhost:32000/etcd:abc"]}`)

	entries, err := f.scanner.Generate(context.Background(), scanner.Config{
		Plan:  plan.Plan{WorkingDirectory: wd, Build: []plan.BuildEntry{entry}},
		RunID: buildRunID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 1 || entries[0].CommonIgnores != "" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if _, err := os.Stat(filepath.Join(srcDir, ".trivyignore")); err == nil {
		t.Fatal("expected no ignore file to be created")
	}
}

func TestParseIgnores(t *testing.T) {
	for name, tc := range map[string]struct {
		raw  string
		want []string
	}{
		"empty":       {raw: "", want: []string{}},
		"commas":      {raw: "CVE-1,CVE-2", want: []string{"CVE-1", "CVE-2"}},
		"newlines":    {raw: "CVE-1\nCVE-2\n", want: []string{"CVE-1", "CVE-2"}},
		"mixed":       {raw: "CVE-1, CVE-2\r\nCVE-3", want: []string{"CVE-1", "CVE-2", "CVE-3"}},
		"blankFields": {raw: ",, \n,CVE-1,", want: []string{"CVE-1"}},
	} {
		t.Run(name, func(t *testing.T) {
			got := scanner.ParseIgnores(tc.raw)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestGenerateSkipsNonContainerEntries(t *testing.T) {
	f := newFixture(t)

	wd := t.TempDir()

	entries, err := f.scanner.Generate(context.Background(), scanner.Config{
		Plan: plan.Plan{
			WorkingDirectory: wd,
			Build: []plan.BuildEntry{
				{
					Type:            plan.TypeCharm,
					Name:            "etcd-operator",
					SourceFile:      wd + "/charmcraft.yaml",
					SourceDirectory: wd,
					OutputType:      plan.OutputFile,
					Output:          "run__build__output__charm__etcd-operator",
				},
				{
					Type:            plan.TypeFile,
					Name:            "config",
					SourceFile:      wd + "/charmcraft.yaml",
					SourceDirectory: wd,
					BuildTarget:     "config.yaml",
					OutputType:      plan.OutputFile,
					Output:          "run__build__output__file__config",
				},
			},
		},
		RunID: buildRunID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 0 {
		t.Fatalf("expected no scan entries, got %+v", entries)
	}
}
