//go:build unit

package gha_test

import (
	"strings"
	"testing"

	"github.com/charmci/charmci/internal/gha"
)

func TestParseRepository(t *testing.T) {
	for name, tc := range map[string]struct {
		input   string
		want    gha.Repository
		wantErr bool
	}{
		"owner and name": {
			input: "canonical/etcd-operator",
			want:  gha.Repository{Owner: "canonical", Name: "etcd-operator"},
		},
		"missing separator": {input: "canonical", wantErr: true},
		"empty owner":       {input: "/etcd-operator", wantErr: true},
		"empty name":        {input: "canonical/", wantErr: true},
		"extra separator":   {input: "canonical/etcd/operator", wantErr: true},
		"empty":             {input: "", wantErr: true},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := gha.ParseRepository(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error for %q", tc.input)
				}

				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
			if got.String() != tc.input {
				t.Fatalf("expected String to round-trip, got %q", got.String())
			}
		})
	}
}

func TestNewClientPublic(t *testing.T) {
	client, err := gha.NewClient("https://api.github.com", "token", "charmci-get-plan/dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.BaseURL.Host != "api.github.com" {
		t.Fatalf("expected the public api host, got %s", client.BaseURL.Host)
	}
	if client.UserAgent != "charmci-get-plan/dev" {
		t.Fatalf("unexpected user agent: %s", client.UserAgent)
	}
}

func TestNewClientEnterprise(t *testing.T) {
	client, err := gha.NewClient("https://github.internal.example", "token", "charmci-get-plan/dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(client.BaseURL.Path, "/api/v3/") {
		t.Fatalf("expected an enterprise api path, got %s", client.BaseURL.String())
	}
}
