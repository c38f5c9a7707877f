// Package guard decides whether the current session may enter a view.
//
// The decision is a pure function of (session, view): it is re-evaluated
// whenever the session changes, including the gateway's automatic clear
// on an unauthorized response. Insufficient admin access funnels back to
// login rather than a distinct forbidden outcome, so the existence of the
// admin surface is not leaked.
package guard

import "github.com/anwrG-p/EPL-Predictor/internal/session"

// View is a navigable surface of the client.
type View int

const (
	ViewLogin View = iota
	ViewPredictor
	ViewAdmin
)

func (v View) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewPredictor:
		return "predictor"
	case ViewAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Decision is the guard's verdict.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
)

// Check decides whether s may enter v.
func Check(s session.Session, v View) Decision {
	switch v {
	case ViewLogin:
		return Allow
	case ViewPredictor:
		if s.Authenticated() {
			return Allow
		}
		return RedirectLogin
	case ViewAdmin:
		if s.IsAdmin() {
			return Allow
		}
		return RedirectLogin
	default:
		return RedirectLogin
	}
}
