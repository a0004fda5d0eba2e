package application

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkwithmentor/service/domain"
	"linkwithmentor/service/metrics"
)

func TestDispatch_RoutesByOp(t *testing.T) {
	h := newHarness(t, 100, time.Minute)
	ctx := context.Background()

	out, err := h.orch.Dispatch(ctx, userMD, domain.OpCreateUser, json.RawMessage(`{"external_uid":"u1","email":"u1@x.com"}`))
	require.NoError(t, err)
	u, ok := out.(domain.User)
	require.True(t, ok, "expected domain.User, got %T", out)
	assert.Equal(t, "u1", u.ExternalUID)

	out, err = h.orch.Dispatch(ctx, domain.Metadata{}, domain.OpPing, json.RawMessage(`{"message":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.PingResponse{Message: "Pong: x"}, out)

	out, err = h.orch.Dispatch(ctx, domain.Metadata{}, domain.OpMetrics, nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.Report{}, out)
}

func TestDispatch_RejectsBadInputBeforePipeline(t *testing.T) {
	h := newHarness(t, 100, time.Minute)
	ctx := context.Background()

	_, err := h.orch.Dispatch(ctx, userMD, domain.OpCreateUser, json.RawMessage(`{"external_uid":`))
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))

	_, err = h.orch.Dispatch(ctx, userMD, domain.Op("DropTables"), nil)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	assert.Equal(t, uint64(0), h.orch.Metrics().Snapshot().TotalRequests)
}

func TestDispatch_EmptyPayloadReachesValidation(t *testing.T) {
	h := newHarness(t, 100, time.Minute)

	_, err := h.orch.Dispatch(context.Background(), userMD, domain.OpGetUser, nil)
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
	assert.Equal(t, uint64(1), h.orch.Metrics().Snapshot().FailedRequests)
}
