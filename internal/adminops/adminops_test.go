package adminops

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anwrG-p/EPL-Predictor/internal/config"
	"github.com/anwrG-p/EPL-Predictor/internal/gateway"
	"github.com/anwrG-p/EPL-Predictor/internal/logging"
	"github.com/anwrG-p/EPL-Predictor/internal/session"
)

func newGateway(t *testing.T, baseURL string, requestTimeout time.Duration) *gateway.Client {
	t.Helper()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set("admin-token", session.RoleAdmin))

	cfg := &config.Config{
		BaseURL:        baseURL,
		RequestTimeout: requestTimeout,
		RetrainTimeout: 10 * time.Second,
	}
	gw, err := gateway.New(cfg, store, gateway.WithLogger(logging.Discard()))
	require.NoError(t, err)
	return gw
}

func TestCheckHealth_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/health", r.URL.Path)
		w.Write([]byte(`{"status":"OK"}`))
	}))
	defer ts.Close()

	w := NewWorkflow(newGateway(t, ts.URL, 2*time.Second), 5*time.Second)

	assert.Equal(t, "OK", w.CheckHealth(context.Background()))
	assert.Equal(t, "OK", w.Health())
}

func TestCheckHealth_AllFailuresCollapse(t *testing.T) {
	// Every failure kind collapses into the single operator message:
	// probe granularity is not actionable by the admin.
	statuses := []int{401, 403, 500, 502}
	for _, status := range statuses {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		w := NewWorkflow(newGateway(t, ts.URL, 2*time.Second), 5*time.Second)
		assert.Equal(t, MsgHealthDown, w.CheckHealth(context.Background()), "status %d", status)

		ts.Close()
	}

	// Unreachable backend too.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()
	w := NewWorkflow(newGateway(t, dead.URL, 200*time.Millisecond), 5*time.Second)
	assert.Equal(t, MsgHealthDown, w.CheckHealth(context.Background()))
}

func TestRetrain_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/retrain", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"message":"Model retrained"}`))
	}))
	defer ts.Close()

	w := NewWorkflow(newGateway(t, ts.URL, 2*time.Second), 5*time.Second)

	msg, err := w.Retrain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Model retrained", msg)

	state, got := w.RetrainStatus()
	assert.Equal(t, RetrainComplete, state)
	assert.Equal(t, "Model retrained", got)
}

func TestRetrain_InFlightGate(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Write([]byte(`{"message":"Model retrained"}`))
	}))
	defer ts.Close()

	w := NewWorkflow(newGateway(t, ts.URL, 5*time.Second), 5*time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := w.Retrain(context.Background())
		done <- err
	}()

	// Wait until the first retrain is actually in flight.
	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	state, _ := w.RetrainStatus()
	assert.Equal(t, RetrainTraining, state)

	// Second invocation is rejected locally, no second request.
	_, err := w.Retrain(context.Background())
	assert.ErrorIs(t, err, ErrRetrainInFlight)
	assert.Equal(t, int64(1), calls.Load())

	close(release)
	require.NoError(t, <-done)

	state, _ = w.RetrainStatus()
	assert.Equal(t, RetrainComplete, state)
}

func TestRetrain_ExtendedTimeoutHonored(t *testing.T) {
	// The server is slower than the default timeout but faster than the
	// retrain override: the call must complete, not report Timeout.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		w.Write([]byte(`{"message":"Model retrained"}`))
	}))
	defer ts.Close()

	gw := newGateway(t, ts.URL, 30*time.Millisecond)
	w := NewWorkflow(gw, 2*time.Second)

	msg, err := w.Retrain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Model retrained", msg)

	state, _ := w.RetrainStatus()
	assert.Equal(t, RetrainComplete, state)
}

func TestRetrain_FailureCarriesDetail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"training data unavailable"}`))
	}))
	defer ts.Close()

	w := NewWorkflow(newGateway(t, ts.URL, 2*time.Second), 5*time.Second)

	_, err := w.Retrain(context.Background())
	require.ErrorIs(t, err, ErrRetrainFailed)
	assert.Contains(t, err.Error(), "training data unavailable")

	state, msg := w.RetrainStatus()
	assert.Equal(t, RetrainFailed, state)
	assert.Equal(t, "training data unavailable", msg)
}

func TestRetrain_FailureWithoutDetailIsGeneric(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	w := NewWorkflow(newGateway(t, ts.URL, 2*time.Second), 5*time.Second)

	_, err := w.Retrain(context.Background())
	require.Error(t, err)

	_, msg := w.RetrainStatus()
	assert.Equal(t, MsgRetrainFailed, msg)
}

func TestRetrain_AllowedAgainAfterFailure(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"message":"Model retrained"}`))
	}))
	defer ts.Close()

	w := NewWorkflow(newGateway(t, ts.URL, 2*time.Second), 5*time.Second)

	_, err := w.Retrain(context.Background())
	require.Error(t, err)

	msg, err := w.Retrain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Model retrained", msg)
}

func TestStats(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/stats", r.URL.Path)
		w.Write([]byte(`{"total_predictions":1234}`))
	}))
	defer ts.Close()

	w := NewWorkflow(newGateway(t, ts.URL, 2*time.Second), 5*time.Second)

	s, err := w.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1234, s.TotalPredictions)
}

func TestSimulateSeason_RoundsValidatedLocally(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	w := NewWorkflow(newGateway(t, ts.URL, 2*time.Second), 5*time.Second)

	for _, rounds := range []int{0, -1, 501} {
		_, err := w.SimulateSeason(context.Background(), rounds)
		assert.ErrorIs(t, err, ErrInvalidRounds, "rounds %d", rounds)
	}
	assert.Zero(t, calls.Load())
}

func TestSimulateSeason(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/simulate-season", r.URL.Path)
		require.Equal(t, "500", r.URL.Query().Get("rounds"))
		w.Write([]byte(`[{"Team":"Man City","Avg_Final_Rank":1.4},{"Team":"Arsenal","Avg_Final_Rank":2.1}]`))
	}))
	defer ts.Close()

	w := NewWorkflow(newGateway(t, ts.URL, 2*time.Second), 5*time.Second)

	rows, err := w.SimulateSeason(context.Background(), 500)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Man City", rows[0].Team)
	assert.InDelta(t, 1.4, rows[0].AvgFinalRank, 1e-9)
}

func TestPoller_ProbesOnCadence(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"status":"OK"}`))
	}))
	defer ts.Close()

	w := NewWorkflow(newGateway(t, ts.URL, 2*time.Second), 5*time.Second)
	p := NewPoller(w, 20*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	// One immediate probe plus at least one tick.
	require.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, "OK", w.Health())
}
