package sqldb

import (
	"testing"

	"github.com/gamemixer/gamemixer-api/internal/repos"
	"github.com/gamemixer/gamemixer-api/internal/repos/recordtest"
	"github.com/gamemixer/gamemixer-api/internal/repos/sqltest"
)

func TestRecordRepo(t *testing.T) {
	recordtest.Run(t, func(t *testing.T) repos.RecordRepo {
		r := New(sqltest.Open(t), sqltest.Logger())
		r.now = recordtest.Clock()
		return r
	})
}
