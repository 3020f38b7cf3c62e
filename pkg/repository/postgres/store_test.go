package postgres_test

import (
	"database/sql"
	"testing"

	_ "github.com/lib/pq"
	"github.com/m-mizutani/gt"
	"github.com/xiashuijun/elasticvc/pkg/repository/postgres"
	"github.com/xiashuijun/elasticvc/pkg/repository/testhelper"
	"github.com/xiashuijun/elasticvc/pkg/utils/testutil"
)

func TestStore(t *testing.T) {
	dsn := testutil.GetEnvOrSkip(t, "ELASTICVC_PG_DSN")

	db, err := sql.Open("postgres", dsn)
	gt.NoError(t, err)
	defer db.Close()

	store, err := postgres.New(db)
	gt.NoError(t, err)

	testhelper.TestAll(t, store)
}
