// Package allure backfills an Allure results directory with collected
// default results. A test that never produced a result keeps its
// placeholder, so the report shows it as unknown instead of omitting
// it.
package allure

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// resultPattern matches Allure result files inside a results directory.
const resultPattern = "*-result.json"

var (
	errMergingResults = errors.New("merging allure results")
	errReadingResult  = errors.New("reading allure result")
)

// result is the subset of an Allure result file the merge keys on.
type result struct {
	TestCaseID string `json:"testCaseId"`
}

// Merge moves every default result whose test case has no actual
// result into actualDir, creating the directory when missing. It
// returns the names of the files moved.
func Merge(actualDir, defaultDir string) ([]string, error) {
	moved, err := merge(actualDir, defaultDir)
	if err != nil {
		return nil, errors.Join(err, errMergingResults)
	}

	return moved, nil
}

func merge(actualDir, defaultDir string) ([]string, error) {
	// i. Index the actual results by test case id.
	actual, err := indexResults(actualDir)
	if err != nil {
		return nil, err
	}

	defaults, err := resultFiles(defaultDir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(actualDir, 0o755); err != nil {
		return nil, err
	}

	// ii. Move over the default results no actual result covers.
	moved := []string{}

	for _, path := range defaults {
		id, err := testCaseID(path)
		if err != nil {
			return nil, err
		}

		if _, ok := actual[id]; ok {
			continue
		}

		name := filepath.Base(path)
		if err := os.Rename(path, filepath.Join(actualDir, name)); err != nil {
			return nil, err
		}

		moved = append(moved, name)
	}

	return moved, nil
}

func indexResults(dir string) (map[string]string, error) {
	paths, err := resultFiles(dir)
	if err != nil {
		return nil, err
	}

	index := map[string]string{}

	for _, path := range paths {
		id, err := testCaseID(path)
		if err != nil {
			return nil, err
		}

		index[id] = path
	}

	return index, nil
}

func resultFiles(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, resultPattern))
}

func testCaseID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var res result
	if err := json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("%w: %s: %v", errReadingResult, path, err)
	}

	if res.TestCaseID == "" {
		return "", fmt.Errorf("%w: %s carries no testCaseId", errReadingResult, path)
	}

	return res.TestCaseID, nil
}
