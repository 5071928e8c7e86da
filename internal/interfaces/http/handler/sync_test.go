package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/liberta/backend/internal/domain/order"
	"github.com/liberta/backend/internal/infrastructure/cache"
	"github.com/liberta/backend/internal/infrastructure/scheduler"
	"github.com/liberta/backend/internal/interfaces/http/dto"
)

type memRunStore struct {
	mu   sync.Mutex
	runs []order.SyncRun
}

func (s *memRunStore) Save(_ context.Context, run *order.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == run.ID {
			s.runs[i] = *run
			return nil
		}
	}
	s.runs = append(s.runs, *run)
	return nil
}

func (s *memRunStore) FindRecent(_ context.Context, jobType string, limit int) ([]order.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []order.SyncRun
	for i := len(s.runs) - 1; i >= 0; i-- {
		if jobType != "" && s.runs[i].JobType != jobType {
			continue
		}
		out = append(out, s.runs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func setupSyncTest(t *testing.T, runs *memRunStore) (*SyncHandler, *scheduler.SyncScheduler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := scheduler.DefaultConfig()
	cfg.CheckInterval = time.Hour
	sched, err := scheduler.NewSyncScheduler(cfg, cache.NewInMemoryThrottleFlags(time.Minute), nil, runs, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })

	return NewSyncHandler(sched, runs), sched
}

func doRequest(h gin.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(method, target, nil)
	h(c)
	return w
}

func TestSyncHandler_ListRuns(t *testing.T) {
	runs := &memRunStore{}
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, runs.Save(context.Background(), &order.SyncRun{
			ID:        uuid.New(),
			JobType:   "INGEST",
			StartedAt: now.Add(time.Duration(i) * time.Minute),
			Result:    order.RunResultSuccess,
			Created:   i,
		}))
	}
	h, _ := setupSyncTest(t, runs)

	w := doRequest(h.ListRuns, http.MethodGet, "/api/v1/sync/runs?limit=2")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Data, 2)

	w = doRequest(h.ListRuns, http.MethodGet, "/api/v1/sync/runs?job_type=COMPACT")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(h.ListRuns, http.MethodGet, "/api/v1/sync/runs?limit=0")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncHandler_TriggerConflict(t *testing.T) {
	runs := &memRunStore{}
	h, sched := setupSyncTest(t, runs)

	started := make(chan struct{})
	release := make(chan struct{})
	sched.Register(scheduler.JobTypeIngest, func(ctx context.Context) (scheduler.RunStats, error) {
		close(started)
		<-release
		return scheduler.RunStats{}, nil
	})

	w := doRequest(h.TriggerIngest, http.MethodPost, "/api/v1/sync/ingest")
	assert.Equal(t, http.StatusAccepted, w.Code)
	<-started

	// A second trigger while the first run is in flight is rejected
	w = doRequest(h.TriggerIngest, http.MethodPost, "/api/v1/sync/ingest")
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ALREADY_RUNNING", resp.Error.Code)

	close(release)
}
