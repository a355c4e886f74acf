// internal/dispatcher/quota_test.go
package dispatcher

import (
	"context"
	"fmt"
	"testing"

	stderrors "autoapply/internal/common/errors"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaReserve_RollsBackOverLimitClaim(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	q := NewQuotaReserver(rdb)

	// Fourth claim against a limit of 3: the INCR lands, then is undone.
	key := q.key("user-1")
	mock.ExpectIncr(key).SetVal(4)
	mock.ExpectDecr(key).SetVal(3)

	err := q.Reserve(context.Background(), "user-1", 3)
	require.Error(t, err)
	assert.True(t, stderrors.IsQuotaExceeded(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaReserve_RedisFailureSurfaces(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	q := NewQuotaReserver(rdb)

	mock.ExpectIncr(q.key("user-1")).SetErr(fmt.Errorf("connection refused"))

	err := q.Reserve(context.Background(), "user-1", 3)
	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeDatabaseQueryFailed))
	assert.False(t, stderrors.IsQuotaExceeded(err))
}
