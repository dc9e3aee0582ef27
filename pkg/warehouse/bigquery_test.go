package warehouse

import (
	"context"
	"strings"
	"testing"

	"github.com/datablock-dev/dbt-ci/pkg/manifest"
)

func testProfiles() manifest.Profiles {
	return manifest.Profiles{
		"myproj": {
			Target: "dev",
			Outputs: map[string]manifest.Output{
				"dev":      {Type: "bigquery", Project: "gcp-dev", Location: "EU"},
				"postgres": {Type: "postgres", Project: "ignored"},
				"broken":   {Type: "bigquery"},
			},
		},
	}
}

func TestBigQueryClientRejectsUnknownProfile(t *testing.T) {
	if _, err := BigQueryClient(context.Background(), testProfiles(), "other", ""); err == nil {
		t.Fatal("expected an error for an unknown profile")
	}
}

func TestBigQueryClientRejectsWrongAdapter(t *testing.T) {
	_, err := BigQueryClient(context.Background(), testProfiles(), "myproj", "postgres")
	if err == nil {
		t.Fatal("expected an error for a non-bigquery adapter")
	}
	if !strings.Contains(err.Error(), "not bigquery") {
		t.Errorf("err = %v", err)
	}
}

func TestBigQueryClientRequiresProject(t *testing.T) {
	_, err := BigQueryClient(context.Background(), testProfiles(), "myproj", "broken")
	if err == nil {
		t.Fatal("expected an error when the output has no project")
	}
	if !strings.Contains(err.Error(), "no project configured") {
		t.Errorf("err = %v", err)
	}
}
