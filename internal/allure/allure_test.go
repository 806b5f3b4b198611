//go:build unit

package allure_test

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/charmci/charmci/internal/allure"
)

func writeResult(t *testing.T, dir, name, testCaseID string) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	content := fmt.Sprintf(`{"testCaseId": %q, "status": "unknown"}`, testCaseID)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMergeMovesMissingDefaults(t *testing.T) {
	root := t.TempDir()
	actualDir := filepath.Join(root, "allure-results")
	defaultDir := filepath.Join(root, "allure-default-results")

	writeResult(t, actualDir, "aaa-result.json", "t1")
	writeResult(t, defaultDir, "bbb-result.json", "t1")
	writeResult(t, defaultDir, "ccc-result.json", "t2")

	moved, err := allure.Merge(actualDir, defaultDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := []string{"ccc-result.json"}; !reflect.DeepEqual(moved, want) {
		t.Fatalf("expected %v moved, got %v", want, moved)
	}

	if _, err := os.Stat(filepath.Join(actualDir, "ccc-result.json")); err != nil {
		t.Fatalf("expected default result in actual dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(defaultDir, "bbb-result.json")); err != nil {
		t.Fatalf("expected covered default result to stay put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(defaultDir, "ccc-result.json")); !os.IsNotExist(err) {
		t.Fatalf("expected moved default result to leave default dir, got %v", err)
	}
}

func TestMergeCreatesActualDir(t *testing.T) {
	root := t.TempDir()
	actualDir := filepath.Join(root, "allure-results")
	defaultDir := filepath.Join(root, "allure-default-results")

	writeResult(t, defaultDir, "aaa-result.json", "t1")

	moved, err := allure.Merge(actualDir, defaultDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := []string{"aaa-result.json"}; !reflect.DeepEqual(moved, want) {
		t.Fatalf("expected %v moved, got %v", want, moved)
	}
	if _, err := os.Stat(filepath.Join(actualDir, "aaa-result.json")); err != nil {
		t.Fatalf("expected result in created actual dir: %v", err)
	}
}

func TestMergeWithoutDefaults(t *testing.T) {
	root := t.TempDir()
	actualDir := filepath.Join(root, "allure-results")

	writeResult(t, actualDir, "aaa-result.json", "t1")

	moved, err := allure.Merge(actualDir, filepath.Join(root, "missing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(moved) != 0 {
		t.Fatalf("expected nothing moved, got %v", moved)
	}
}

func TestMergeRejectsResultWithoutTestCaseID(t *testing.T) {
	root := t.TempDir()
	actualDir := filepath.Join(root, "allure-results")
	defaultDir := filepath.Join(root, "allure-default-results")

	if err := os.MkdirAll(defaultDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(defaultDir, "aaa-result.json")
	if err := os.WriteFile(path, []byte(`{"status": "failed"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := allure.Merge(actualDir, defaultDir)
	if err == nil || !strings.Contains(err.Error(), "testCaseId") {
		t.Fatalf("expected missing testCaseId error, got %v", err)
	}
}
