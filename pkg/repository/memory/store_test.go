package memory_test

import (
	"testing"

	"github.com/xiashuijun/elasticvc/pkg/repository/memory"
	"github.com/xiashuijun/elasticvc/pkg/repository/testhelper"
)

func TestStore(t *testing.T) {
	testhelper.TestAll(t, memory.New())
}
