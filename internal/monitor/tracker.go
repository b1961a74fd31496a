package monitor

// entityState is the two-valued health state stored per entity key.
type entityState int

const (
	stateClear entityState = iota
	stateAlerting
)

// Tracker is the edge-triggered alert state machine. It owns the mapping
// from entity key to {clear, alerting} for the lifetime of the process and
// decides, for each observation, whether a transition occurred.
//
// The tracker does no locking: it is owned by the scheduler goroutine and
// must only ever be called from there.
type Tracker struct {
	states map[EntityKey]entityState
}

// NewTracker creates an empty tracker. Every key starts out clear the first
// time it is observed.
func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[EntityKey]entityState),
	}
}

// Evaluate applies one health observation for key and returns the event the
// transition produced, if any.
//
// clear + unhealthy moves the key to alerting and returns alertBuilder();
// alerting + healthy moves the key to clear and returns clearBuilder(); the
// two steady states return nil without invoking either builder. Builders run
// only on the transition tick, so alert bodies summarize membership at the
// moment the condition went unhealthy.
func (t *Tracker) Evaluate(key EntityKey, unhealthy bool, alertBuilder, clearBuilder func() *Event) *Event {
	switch {
	case t.states[key] == stateClear && unhealthy:
		t.states[key] = stateAlerting
		return alertBuilder()
	case t.states[key] == stateAlerting && !unhealthy:
		t.states[key] = stateClear
		return clearBuilder()
	}
	return nil
}

// IsAlerting reports whether key is currently in the alerting state.
func (t *Tracker) IsAlerting(key EntityKey) bool {
	return t.states[key] == stateAlerting
}
