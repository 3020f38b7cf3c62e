// Package audit is a CommitListener that streams one row per completed
// commit to BigQuery for compliance reporting, grounded on the teacher's
// pkg/infra/bq client construction but using bigquery.Inserter's simpler
// streaming-insert API instead of the managed-writer/protobuf path, since
// an audit row has no dynamic schema to adapt at runtime.
package audit

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/bqs"
	"github.com/m-mizutani/goerr/v2"
	"github.com/xiashuijun/elasticvc/pkg/domain/interfaces"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
)

// Row is the BigQuery wire representation of one completed commit.
// bqs infers the table schema from this struct, mirroring how the teacher
// keeps its BigQuery row shape next to the client that writes it.
type Row struct {
	Path       string    `bigquery:"path"`
	Type       string    `bigquery:"type"`
	Timepoint  time.Time `bigquery:"timepoint"`
	SourcePath string    `bigquery:"source_path"`
}

type Listener struct {
	inserter *bigquery.Inserter
}

var _ interfaces.CommitListener = (*Listener)(nil)

// New opens (creating if absent) dataset.table and returns a Listener that
// writes an audit row there for every commit it is asked to precommit.
func New(ctx context.Context, client *bigquery.Client, dataset, table string) (*Listener, error) {
	schema, err := bqs.Infer(Row{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to infer audit row schema")
	}

	tableRef := client.Dataset(dataset).Table(table)
	if _, err := tableRef.Metadata(ctx); err != nil {
		if err := tableRef.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
			return nil, goerr.Wrap(err, "failed to create audit table", goerr.V("dataset", dataset), goerr.V("table", table))
		}
	}

	return &Listener{inserter: tableRef.Inserter()}, nil
}

// PreCommitCompletion implements interfaces.CommitListener. It runs before
// any branch record of commit is written (spec.md §4.6); a failed insert
// aborts the commit, leaving it open for the caller to roll back.
func (l *Listener) PreCommitCompletion(ctx context.Context, commit *model.Commit) error {
	row := Row{
		Path:       string(commit.Branch.Path),
		Type:       string(commit.Type),
		Timepoint:  commit.Timepoint,
		SourcePath: string(commit.SourcePath),
	}
	if err := l.inserter.Put(ctx, row); err != nil {
		return goerr.Wrap(err, "failed to insert audit row", goerr.V("path", commit.Branch.Path))
	}
	return nil
}
