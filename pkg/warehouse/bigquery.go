// Package warehouse constructs cloud warehouse clients from the dbt
// profile's connection settings. Credentials stay with the environment's
// application-default mechanism.
package warehouse

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/datablock-dev/dbt-ci/pkg/manifest"
)

// BigQueryClient builds a BigQuery client from the profile output selected
// by profile name and target.
func BigQueryClient(ctx context.Context, profiles manifest.Profiles, profile, target string) (*bigquery.Client, error) {
	out, err := profiles.Output(profile, target)
	if err != nil {
		return nil, err
	}
	if out.Type != "" && out.Type != "bigquery" {
		return nil, fmt.Errorf("target %q uses adapter %q, not bigquery", target, out.Type)
	}
	if out.Project == "" {
		return nil, fmt.Errorf("profile %q target %q has no project configured", profile, target)
	}

	client, err := bigquery.NewClient(ctx, out.Project)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	if out.Location != "" {
		client.Location = out.Location
	}
	return client, nil
}
