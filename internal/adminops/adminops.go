// Package adminops drives the administrative surface: the recurring
// health probe, usage stats, season simulation, and the long-running
// model retrain.
//
// Retrain is the one call in the system that addresses a job measured in
// minutes. It runs under an extended timeout and behind an in-flight
// gate: one retrain per client at a time, no queuing, no automatic
// retry. There is no job handle; a client restarted mid-training loses
// observability into that job.
package adminops

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/anwrG-p/EPL-Predictor/internal/gateway"
	"github.com/anwrG-p/EPL-Predictor/internal/metrics"
)

// Errors
var (
	ErrRetrainInFlight = errors.New("adminops: retrain already in progress")
	ErrInvalidRounds   = errors.New("adminops: rounds must be between 1 and 500")
	ErrRetrainFailed   = errors.New("adminops: retrain failed")
	ErrUnavailable     = errors.New("adminops: admin endpoint unavailable")
)

// MsgHealthDown is the single collapsed operator-facing message for any
// failed health probe. Probe granularity is not actionable by the admin.
const MsgHealthDown = "System Down or Unauthorized"

// MsgRetrainFailed is shown when the server supplies no detail.
const MsgRetrainFailed = "Failed to retrain model. Check backend logs."

// MaxSeasonRounds mirrors the server's cap on season simulation rounds.
const MaxSeasonRounds = 500

// RetrainState is the retrain job's client-side state.
type RetrainState int

const (
	RetrainIdle RetrainState = iota
	RetrainTraining
	RetrainComplete
	RetrainFailed
)

func (s RetrainState) String() string {
	switch s {
	case RetrainIdle:
		return "idle"
	case RetrainTraining:
		return "training"
	case RetrainComplete:
		return "complete"
	case RetrainFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats is the admin usage summary.
type Stats struct {
	TotalPredictions int `json:"total_predictions"`
}

// SeasonRow is one club's result from a season simulation.
type SeasonRow struct {
	Team         string  `json:"Team"`
	AvgFinalRank float64 `json:"Avg_Final_Rank"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type retrainResponse struct {
	Message string `json:"message"`
}

// Workflow owns the admin operations and their in-flight state.
type Workflow struct {
	gw             *gateway.Client
	retrainTimeout time.Duration

	mu           sync.Mutex
	health       string
	retrainState RetrainState
	retrainMsg   string
}

// NewWorkflow creates the admin workflow. retrainTimeout is the extended
// per-call override used only by Retrain.
func NewWorkflow(gw *gateway.Client, retrainTimeout time.Duration) *Workflow {
	return &Workflow{
		gw:             gw,
		retrainTimeout: retrainTimeout,
		retrainState:   RetrainIdle,
	}
}

// CheckHealth probes the backend under the standard timeout and records a
// display string. All failure kinds collapse into MsgHealthDown.
func (w *Workflow) CheckHealth(ctx context.Context) string {
	out := w.gw.Get(ctx, "/admin/health")

	status := MsgHealthDown
	result := "down"
	if out.Success() {
		var hr healthResponse
		if err := out.Decode(&hr); err == nil && hr.Status != "" {
			status = hr.Status
			result = "ok"
		}
	}
	metrics.HealthProbesTotal.WithLabelValues(result).Inc()

	w.mu.Lock()
	w.health = status
	w.mu.Unlock()
	return status
}

// Health returns the last recorded probe result, or empty before the
// first probe.
func (w *Workflow) Health() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.health
}

// Retrain triggers a full model retrain under the extended timeout.
// A call while one is already training is rejected locally with
// ErrRetrainInFlight and issues no network request.
func (w *Workflow) Retrain(ctx context.Context) (string, error) {
	w.mu.Lock()
	if w.retrainState == RetrainTraining {
		w.mu.Unlock()
		return "", ErrRetrainInFlight
	}
	w.retrainState = RetrainTraining
	w.retrainMsg = ""
	w.mu.Unlock()

	out := w.gw.PostJSON(ctx, "/admin/retrain", nil, gateway.WithTimeout(w.retrainTimeout))

	w.mu.Lock()
	defer w.mu.Unlock()

	if out.Success() {
		var rr retrainResponse
		msg := "Model retrained"
		if err := out.Decode(&rr); err == nil && rr.Message != "" {
			msg = rr.Message
		}
		w.retrainState = RetrainComplete
		w.retrainMsg = msg
		metrics.RetrainsTotal.WithLabelValues("complete").Inc()
		return msg, nil
	}

	msg := out.Detail
	if msg == "" {
		msg = MsgRetrainFailed
	}
	w.retrainState = RetrainFailed
	w.retrainMsg = msg
	metrics.RetrainsTotal.WithLabelValues("failed").Inc()
	return "", fmt.Errorf("%w: %s", ErrRetrainFailed, msg)
}

// RetrainStatus returns the job state and its outcome message.
func (w *Workflow) RetrainStatus() (RetrainState, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.retrainState, w.retrainMsg
}

// Stats fetches the admin usage summary.
func (w *Workflow) Stats(ctx context.Context) (Stats, error) {
	out := w.gw.Get(ctx, "/admin/stats")
	if !out.Success() {
		return Stats{}, ErrUnavailable
	}
	var s Stats
	if err := out.Decode(&s); err != nil {
		return Stats{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return s, nil
}

// SimulateSeason runs a Monte Carlo season simulation. rounds is checked
// locally against the server's cap before spending a round-trip.
func (w *Workflow) SimulateSeason(ctx context.Context, rounds int) ([]SeasonRow, error) {
	if rounds < 1 || rounds > MaxSeasonRounds {
		return nil, ErrInvalidRounds
	}

	q := url.Values{"rounds": {strconv.Itoa(rounds)}}
	out := w.gw.Get(ctx, "/simulate-season", gateway.WithQuery(q))
	if !out.Success() {
		return nil, ErrUnavailable
	}

	var rows []SeasonRow
	if err := out.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return rows, nil
}
