// Package auth drives the login, registration, and logout sequences.
//
// A submission moves Idle -> Submitting -> {Authenticated, Failed} and
// always settles back to a stable state so the user can retry. Credentials
// are transient: they live for the duration of one submission and are
// never persisted or logged.
package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/anwrG-p/EPL-Predictor/internal/gateway"
	"github.com/anwrG-p/EPL-Predictor/internal/logging"
	"github.com/anwrG-p/EPL-Predictor/internal/metrics"
	"github.com/anwrG-p/EPL-Predictor/internal/session"
)

// Errors
var (
	ErrPasswordMismatch = errors.New("auth: passwords do not match")
	ErrSubmitInFlight   = errors.New("auth: a submission is already in progress")
)

// User-facing messages. Login failures are deliberately generic so the
// response never reveals whether the email or the password was wrong.
const (
	MsgInvalidCredentials   = "Invalid email or password"
	MsgLoginRetry           = "Login failed. Please try again later."
	MsgPasswordMismatch     = "Passwords do not match"
	MsgRegistrationFailed   = "Registration failed. Please try again."
	MsgRegistrationComplete = "Registration successful! Please login."
)

// State is the workflow's submission state.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Credentials are held only for the duration of a submission.
type Credentials struct {
	Email    string
	Password string
}

// Result is the settled outcome of a submission.
type Result struct {
	State   State
	Message string
}

// tokenResponse is the token-exchange payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Workflow owns the submission state machine.
type Workflow struct {
	gw         *gateway.Client
	sessions   session.Store
	adminEmail string

	mu       sync.Mutex
	state    State
	inFlight bool
}

// NewWorkflow creates the auth workflow. adminEmail is the allow-listed
// identity granted admin privilege on login.
func NewWorkflow(gw *gateway.Client, store session.Store, adminEmail string) *Workflow {
	return &Workflow{
		gw:         gw,
		sessions:   store,
		adminEmail: adminEmail,
		state:      StateIdle,
	}
}

// State returns the current submission state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// begin flips to Submitting, rejecting a concurrent submission.
func (w *Workflow) begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight {
		return ErrSubmitInFlight
	}
	w.inFlight = true
	w.state = StateSubmitting
	return nil
}

// settle records the final state and releases the gate.
func (w *Workflow) settle(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight = false
	w.state = s
}

// Login exchanges credentials for a token. On success the session store
// is populated with the token and the derived role; on any failure the
// store is untouched (the gateway may still clear a stale token on 401).
func (w *Workflow) Login(ctx context.Context, creds Credentials) (Result, error) {
	if err := w.begin(); err != nil {
		return Result{State: w.State(), Message: MsgLoginRetry}, err
	}

	form := url.Values{
		"username": {creds.Email},
		"password": {creds.Password},
	}
	out := w.gw.PostForm(ctx, "/token", form)

	switch out.Kind {
	case gateway.KindSuccess:
		var tok tokenResponse
		if err := out.Decode(&tok); err != nil || tok.AccessToken == "" {
			w.settle(StateFailed)
			logging.L(ctx).Error("token exchange returned malformed payload", "error", err)
			return Result{State: StateFailed, Message: MsgLoginRetry}, nil
		}

		role := w.roleFor(creds.Email)
		if err := w.sessions.Set(tok.AccessToken, role); err != nil {
			w.settle(StateFailed)
			return Result{State: StateFailed, Message: MsgLoginRetry}, err
		}
		metrics.SessionActive.Set(1)
		w.settle(StateAuthenticated)
		logging.L(ctx).Info("signed in", "role", role)
		return Result{State: StateAuthenticated}, nil

	case gateway.KindUnauthorized, gateway.KindClientError:
		w.settle(StateFailed)
		return Result{State: StateFailed, Message: MsgInvalidCredentials}, nil

	default:
		w.settle(StateFailed)
		return Result{State: StateFailed, Message: MsgLoginRetry}, nil
	}
}

// roleFor derives the privilege level for an authenticated identity.
// TODO: replace the allow-list comparison with a server-issued role claim
// once the backend exposes one; client-side email matching is spoofable.
func (w *Workflow) roleFor(email string) session.Role {
	if strings.EqualFold(strings.TrimSpace(email), w.adminEmail) {
		return session.RoleAdmin
	}
	return session.RoleStandard
}

// Register creates an account. The password/confirmation check runs before
// any network call; a mismatch is never conflated with a server error.
// Success does not authenticate: the caller proceeds to Login.
func (w *Workflow) Register(ctx context.Context, creds Credentials, confirm string) (Result, error) {
	if creds.Password != confirm {
		return Result{State: StateFailed, Message: MsgPasswordMismatch}, ErrPasswordMismatch
	}

	if err := w.begin(); err != nil {
		return Result{State: w.State(), Message: MsgRegistrationFailed}, err
	}

	payload := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: creds.Email, Password: creds.Password}

	out := w.gw.PostJSON(ctx, "/register", payload)

	switch out.Kind {
	case gateway.KindSuccess:
		w.settle(StateIdle)
		return Result{State: StateIdle, Message: MsgRegistrationComplete}, nil

	case gateway.KindClientError:
		// Duplicate email and similar: surface the server's own words.
		w.settle(StateFailed)
		msg := out.Detail
		if msg == "" {
			msg = MsgRegistrationFailed
		}
		return Result{State: StateFailed, Message: msg}, nil

	default:
		w.settle(StateFailed)
		return Result{State: StateFailed, Message: MsgRegistrationFailed}, nil
	}
}

// Logout clears the session. Token revocation on the server side is the
// server's own concern; no network call is made.
func (w *Workflow) Logout() error {
	if err := w.sessions.Clear(); err != nil {
		return err
	}
	metrics.SessionActive.Set(0)
	metrics.SessionClearsTotal.WithLabelValues("logout").Inc()
	w.mu.Lock()
	w.state = StateIdle
	w.mu.Unlock()
	return nil
}
