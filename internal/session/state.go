package session

// State is where the bridge stands in the upstream's session protocol.
type State int

const (
	StateUnauthenticated State = iota
	StateTokenAcquired
	StateAuthenticated
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateTokenAcquired:
		return "token_acquired"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Event is something the bridge observed that may move its state.
type Event int

const (
	// EventTokenAcquired: a CSRF token is cached.
	EventTokenAcquired Event = iota
	// EventSessionConfirmed: a status check reported an authenticated principal.
	EventSessionConfirmed
	// EventSessionLost: a status check reported no session.
	EventSessionLost
	// EventLoggedOut: logout ran, whatever the upstream answered.
	EventLoggedOut
	// EventCSRFMismatch: the upstream rejected the token during login.
	EventCSRFMismatch
)

// String returns the string representation of the event
func (e Event) String() string {
	switch e {
	case EventTokenAcquired:
		return "token_acquired"
	case EventSessionConfirmed:
		return "session_confirmed"
	case EventSessionLost:
		return "session_lost"
	case EventLoggedOut:
		return "logged_out"
	case EventCSRFMismatch:
		return "csrf_mismatch"
	default:
		return "unknown"
	}
}

// maxCSRFRetries is how many times a login may be replayed after the
// upstream rejects its token.
const maxCSRFRetries = 1

// transition is the bridge's only state machine. retries counts the CSRF
// mismatches already absorbed by the current login; retry reports whether
// the login may be attempted again.
//
//	Unauthenticated --token--> TokenAcquired --confirmed--> Authenticated
//	Authenticated --logout | lost--> Unauthenticated
//	any --csrf mismatch--> same state (retry while retries < 1)
func transition(s State, e Event, retries int) (next State, retry bool) {
	switch e {
	case EventTokenAcquired:
		if s == StateUnauthenticated {
			return StateTokenAcquired, false
		}
		return s, false
	case EventSessionConfirmed:
		return StateAuthenticated, false
	case EventSessionLost:
		if s == StateAuthenticated {
			return StateUnauthenticated, false
		}
		return s, false
	case EventLoggedOut:
		return StateUnauthenticated, false
	case EventCSRFMismatch:
		return s, retries < maxCSRFRetries
	default:
		return s, false
	}
}
