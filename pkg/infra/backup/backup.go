// Package backup exports the current set of branch timespans to a GCS
// object as newline-delimited JSON, for the admin "backup" CLI command.
package backup

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/xiashuijun/elasticvc/pkg/domain/interfaces"
)

type Exporter struct {
	client *storage.Client
	bucket string
}

func New(client *storage.Client, bucket string) *Exporter {
	return &Exporter{client: client, bucket: bucket}
}

// Export writes uc.FindAll()'s current result set to object as
// newline-delimited JSON, one branch timespan per line.
func (x *Exporter) Export(ctx context.Context, uc interfaces.UseCase, object string) error {
	branches, err := uc.FindAll(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load branches for backup")
	}

	w := x.client.Bucket(x.bucket).Object(object).NewWriter(ctx)
	enc := json.NewEncoder(w)

	for _, b := range branches {
		if err := enc.Encode(b); err != nil {
			_ = w.Close()
			return goerr.Wrap(err, "failed to encode branch", goerr.V("path", b.Path))
		}
	}

	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to upload backup object", goerr.V("bucket", x.bucket), goerr.V("object", object))
	}
	return nil
}
