// Package predict issues match-outcome prediction requests.
//
// Rate-limit responses are a first-class outcome here: the product
// throttles per-user usage, and the caller must be able to tell "quota
// exhausted, wait for tomorrow" apart from "something broke, retry".
// Successive calls may complete out of order; only the result of the
// newest issued request is ever retained.
package predict

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/anwrG-p/EPL-Predictor/internal/gateway"
	"github.com/anwrG-p/EPL-Predictor/internal/session"
)

// Errors
var (
	ErrNotAuthenticated = errors.New("predict: not signed in")
	ErrDailyLimit       = errors.New("predict: daily prediction limit reached")
	ErrUnavailable      = errors.New("predict: prediction unavailable")
)

// Message renders a workflow error as the user-facing string.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDailyLimit):
		return "Daily limit reached!"
	case errors.Is(err, ErrNotAuthenticated):
		return "Please sign in to request predictions."
	default:
		return "Prediction failed. Check team names or server."
	}
}

// Team is a Premier League club name as the backend knows it.
type Team string

// Teams is the canonical club list offered by the client. The server is
// authoritative; an unknown name comes back as a client error.
var Teams = []Team{
	"Arsenal", "Aston Villa", "Bournemouth", "Brentford", "Brighton",
	"Burnley", "Chelsea", "Crystal Palace", "Everton", "Fulham",
	"Liverpool", "Luton", "Man City", "Man United", "Newcastle",
	"Nott'm Forest", "Sheffield United", "Tottenham", "West Ham", "Wolves",
}

// Known reports whether t is in the canonical list.
func Known(t Team) bool {
	for _, k := range Teams {
		if k == t {
			return true
		}
	}
	return false
}

// Request names the fixture to predict. home != away is expected but not
// enforced locally; the server decides.
type Request struct {
	HomeTeam Team `json:"home_team"`
	AwayTeam Team `json:"away_team"`
}

// Probs holds the three outcome probabilities, each in [0,1]. They come
// from the server and are not renormalized locally.
type Probs struct {
	Home float64 `json:"Home"`
	Draw float64 `json:"Draw"`
	Away float64 `json:"Away"`
}

func (p Probs) valid() bool {
	for _, v := range []float64{p.Home, p.Draw, p.Away} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// Result is a completed prediction. ShapURL is absolutized against the
// backend origin.
type Result struct {
	Probs   Probs  `json:"probs"`
	ShapURL string `json:"shap_url"`
}

// SimResult is a completed Monte Carlo match simulation.
type SimResult struct {
	HomeTeam Team  `json:"home_team"`
	AwayTeam Team  `json:"away_team"`
	SimProbs Probs `json:"sim_probs"`
}

// Workflow issues prediction requests through the gateway.
type Workflow struct {
	gw       *gateway.Client
	sessions session.Store

	mu        sync.Mutex
	issued    uint64 // sequence of the newest issued request
	latestSeq uint64 // sequence of the retained result
	latest    *Result
}

// NewWorkflow creates the prediction workflow.
func NewWorkflow(gw *gateway.Client, store session.Store) *Workflow {
	return &Workflow{gw: gw, sessions: store}
}

// Predict requests outcome probabilities for one fixture. It returns the
// result directly and also records it as Latest, unless a newer request
// was issued while this one was in flight (the late result is discarded).
func (w *Workflow) Predict(ctx context.Context, req Request) (*Result, error) {
	if !w.sessions.Get().Authenticated() {
		// No wasted round-trip: the server would only say 401 anyway.
		return nil, ErrNotAuthenticated
	}

	seq := w.nextSeq()
	out := w.gw.PostJSON(ctx, "/predict", req)

	switch out.Kind {
	case gateway.KindSuccess:
		var r Result
		if err := out.Decode(&r); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if !r.Probs.valid() {
			return nil, fmt.Errorf("%w: probabilities out of range", ErrUnavailable)
		}
		r.ShapURL = w.gw.Resolve(r.ShapURL)
		w.commit(seq, &r)
		return &r, nil

	case gateway.KindRateLimited:
		return nil, ErrDailyLimit

	default:
		return nil, ErrUnavailable
	}
}

// SimulateMatch runs the backend's repeated-simulation variant of a single
// fixture. Same quota rules as Predict.
func (w *Workflow) SimulateMatch(ctx context.Context, req Request) (*SimResult, error) {
	if !w.sessions.Get().Authenticated() {
		return nil, ErrNotAuthenticated
	}

	out := w.gw.PostJSON(ctx, "/simulate-match", req)

	switch out.Kind {
	case gateway.KindSuccess:
		var r SimResult
		if err := out.Decode(&r); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return &r, nil
	case gateway.KindRateLimited:
		return nil, ErrDailyLimit
	default:
		return nil, ErrUnavailable
	}
}

// Latest returns the retained result of the newest completed request.
func (w *Workflow) Latest() (*Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest, w.latest != nil
}

func (w *Workflow) nextSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.issued++
	return w.issued
}

// commit retains r unless a newer request was issued after seq. Last
// issued wins, regardless of arrival order.
func (w *Workflow) commit(seq uint64, r *Result) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if seq < w.issued || seq <= w.latestSeq {
		return false
	}
	w.latestSeq = seq
	w.latest = r
	return true
}
