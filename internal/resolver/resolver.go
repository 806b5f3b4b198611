// Package resolver finds the build plan a finished workflow run produced
// for the current source tree, so follow-up jobs can consume artifacts
// from a run they were not part of.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-github/v66/github"

	"github.com/charmci/charmci/internal/artifact"
	"github.com/charmci/charmci/internal/gha"
	"github.com/charmci/charmci/internal/gitutil"
	"github.com/charmci/charmci/pkg/plan"
)

const (
	runPageSize = 100
	// maxRunLookback bounds how many successful runs are compared against
	// the local tree before giving up.
	maxRunLookback = 300
)

var (
	errResolvingPlan  = errors.New("resolving plan")
	errNoMatchingRun  = errors.New("no successful workflow run matches the local tree")
	errNoPlanArtifact = errors.New("no plan artifact matches")
)

// Config selects which plan to resolve.
type Config struct {
	// WorkingDirectory the plan must cover. Defaults to ".".
	WorkingDirectory string
	// Identifier filters plan artifacts when set.
	Identifier string
	// RunID pins an explicit run; 0 resolves by tree identity.
	RunID int64
}

// Resolver looks up runs and their plan artifacts.
type Resolver struct {
	gh        *github.Client
	repo      gha.Repository
	artifacts *artifact.Client
	git       *gitutil.Git
}

func New(gh *github.Client, repo gha.Repository, artifacts *artifact.Client, git *gitutil.Git) *Resolver {
	return &Resolver{gh: gh, repo: repo, artifacts: artifacts, git: git}
}

// Result is the resolved plan and the run that produced it.
type Result struct {
	Plan  plan.Plan
	RunID int64
}

// Resolve finds the newest plan covering the working directory: an
// explicit run when pinned, otherwise the most recent successful run
// whose commit has the same tree identity as the local checkout.
func (r *Resolver) Resolve(ctx context.Context, cfg Config) (Result, error) {
	wd := cfg.WorkingDirectory
	if wd == "" {
		wd = "."
	}

	runID := cfg.RunID
	if runID == 0 {
		var err error

		runID, err = r.findRun(ctx, wd)
		if err != nil {
			return Result{}, err
		}
	}

	found, err := r.findPlan(ctx, runID, wd, cfg.Identifier)
	if err != nil {
		return Result{}, err
	}

	return Result{Plan: found, RunID: runID}, nil
}

// findRun walks recent successful runs, newest first, and returns the
// first whose head commit matches the local tree identity for wd.
func (r *Resolver) findRun(ctx context.Context, wd string) (int64, error) {
	localTree, err := r.git.TreeID(ctx, wd)
	if err != nil {
		return 0, errors.Join(err, errResolvingPlan)
	}

	root := gitutil.IsRoot(wd)

	opts := &github.ListWorkflowRunsOptions{
		Status:      "success",
		ListOptions: github.ListOptions{PerPage: runPageSize},
	}

	seen := 0

	for seen < maxRunLookback {
		runs, resp, err := r.gh.Actions.ListRepositoryWorkflowRuns(
			ctx, r.repo.Owner, r.repo.Name, opts)
		if err != nil {
			return 0, errors.Join(err, errResolvingPlan)
		}

		for _, run := range runs.WorkflowRuns {
			if seen >= maxRunLookback {
				break
			}
			seen++

			if r.runMatches(ctx, run, wd, root, localTree) {
				return run.GetID(), nil
			}
		}

		if resp.NextPage == 0 || len(runs.WorkflowRuns) == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	return 0, fmt.Errorf(
		"%w: checked %d successful runs for %q; if this branch is stale, rebase it so a recent run shares its tree",
		errNoMatchingRun, seen, wd)
}

// runMatches compares tree identities. For the repository root the API
// already reports the commit's tree id; for a subdirectory the commit
// must exist locally so its subtree id can be computed. Any failure reads
// as a non-match, since shallow checkouts legitimately lack old commits.
func (r *Resolver) runMatches(ctx context.Context, run *github.WorkflowRun, wd string, root bool, localTree string) bool {
	if root {
		return run.GetHeadCommit().GetTreeID() == localTree
	}

	sha := run.GetHeadSHA()
	if sha == "" || !r.git.HasCommit(ctx, sha) {
		return false
	}

	remoteTree, err := r.git.TreeIDAt(ctx, sha, wd)
	if err != nil {
		return false
	}

	return remoteTree == localTree
}

// findPlan downloads plan artifact candidates, newest first, and returns
// the first valid plan covering wd.
func (r *Resolver) findPlan(ctx context.Context, runID int64, wd, identifier string) (plan.Plan, error) {
	infos, err := r.artifacts.List(ctx, runID)
	if err != nil {
		return plan.Plan{}, errors.Join(err, errResolvingPlan)
	}

	var candidates []artifact.Info

	for _, info := range infos {
		if info.Expired {
			continue
		}
		if plan.IsPlanArtifactName(info.Name, identifier) {
			candidates = append(candidates, info)
		}
	}

	// Generated ids are timestamp prefixed, so reverse lexicographic
	// order is newest first.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Name > candidates[j].Name
	})

	for _, candidate := range candidates {
		data, err := r.downloadPlan(ctx, candidate)
		if err != nil {
			return plan.Plan{}, errors.Join(err, errResolvingPlan)
		}

		decoded, err := plan.Decode(data)
		if err != nil {
			// A malformed candidate never matches; an older one may.
			continue
		}

		if covers(wd, decoded.WorkingDirectory) {
			return decoded, nil
		}
	}

	suffix := ""
	if identifier != "" {
		suffix = fmt.Sprintf(" and identifier %q", identifier)
	}

	return plan.Plan{}, fmt.Errorf("%w: run %d has no plan for %q%s",
		errNoPlanArtifact, runID, wd, suffix)
}

func (r *Resolver) downloadPlan(ctx context.Context, info artifact.Info) ([]byte, error) {
	dir, err := os.MkdirTemp("", "charmci-plan-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	files, err := r.artifacts.Download(ctx, info.ID, dir)
	if err != nil {
		return nil, err
	}

	for _, f := range files {
		if filepath.Base(f) == plan.PlanFileName {
			return os.ReadFile(f)
		}
	}

	return nil, fmt.Errorf("artifact %s carries no %s", info.Name, plan.PlanFileName)
}

// covers reports whether a plan generated in planWD serves a request for
// requestedWD: the request names the same directory or an ancestor.
func covers(requestedWD, planWD string) bool {
	req := path.Clean(filepath.ToSlash(requestedWD))
	planned := path.Clean(filepath.ToSlash(planWD))

	if req == "." {
		return true
	}

	return planned == req || strings.HasPrefix(planned, req+"/")
}
