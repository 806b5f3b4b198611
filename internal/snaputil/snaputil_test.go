//go:build unit

package snaputil_test

import (
	"context"
	"errors"
	"testing"

	"github.com/charmci/charmci/internal/snaputil"
	"github.com/charmci/charmci/internal/testutil"
)

func TestInstall(t *testing.T) {
	runner := testutil.NewFakeRunner()

	err := snaputil.Install(context.Background(), runner, snaputil.Charmcraft, "3.x/stable")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"sudo snap install charmcraft --classic --channel=3.x/stable"}
	got := runner.CommandLines()
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestInstallWithoutChannel(t *testing.T) {
	runner := testutil.NewFakeRunner()

	err := snaputil.Install(context.Background(), runner, snaputil.Rockcraft, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := runner.CommandLines()
	if len(got) != 1 || got[0] != "sudo snap install rockcraft --classic" {
		t.Fatalf("unexpected commands: %v", got)
	}
}

func TestInstallRefreshesWhenPreinstalled(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.StubError("sudo snap install", errors.New(`snap "charmcraft" is already installed`))

	err := snaputil.Install(context.Background(), runner, snaputil.Charmcraft, "3.x/stable")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := runner.CommandLines()
	if len(got) != 2 || got[1] != "sudo snap refresh charmcraft --classic --channel=3.x/stable" {
		t.Fatalf("expected a refresh fallback, got %v", got)
	}
}

func TestInstallFailure(t *testing.T) {
	runner := testutil.NewFakeRunner()
	runner.StubError("sudo snap install", errors.New("store unreachable"))

	err := snaputil.Install(context.Background(), runner, snaputil.Rockcraft, "")
	if err == nil {
		t.Fatal("expected an error")
	}

	if len(runner.Calls()) != 1 {
		t.Fatalf("expected no refresh after an unrelated failure, got %v", runner.CommandLines())
	}
}
