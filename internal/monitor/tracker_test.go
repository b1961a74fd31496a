package monitor

import "testing"

func alertEvent() *Event {
	return newEvent(EventAlert, EntityKey{Category: CategoryNodes}, "subject", "body", TrapNodeDown, nil)
}

func clearEvent() *Event {
	return newEvent(EventClear, EntityKey{Category: CategoryNodes}, "subject", "body", TrapNodesClear, nil)
}

func TestEvaluateEmitsOnceWhileSteadyUnhealthy(t *testing.T) {
	tr := NewTracker()
	key := EntityKey{Category: CategoryNodes}

	emitted := 0
	for i := 0; i < 10; i++ {
		if ev := tr.Evaluate(key, true, alertEvent, clearEvent); ev != nil {
			emitted++
			if ev.Kind != EventAlert {
				t.Fatalf("expected alert, got %s", ev.Kind)
			}
		}
	}
	if emitted != 1 {
		t.Fatalf("expected exactly one alert across 10 unhealthy ticks, got %d", emitted)
	}
	if !tr.IsAlerting(key) {
		t.Fatal("key should be alerting")
	}
}

func TestEvaluateHealthyOnClearKeyEmitsNothing(t *testing.T) {
	tr := NewTracker()
	key := EntityKey{Category: CategoryDrives}

	if ev := tr.Evaluate(key, false, alertEvent, clearEvent); ev != nil {
		t.Fatalf("unexpected event %v for healthy observation on clear key", ev.Kind)
	}
	if tr.IsAlerting(key) {
		t.Fatal("key must stay clear")
	}
}

func TestEvaluateAlertThenClearSequence(t *testing.T) {
	tr := NewTracker()
	key := EntityKey{Category: CategoryConnectivity}

	var kinds []EventKind
	for _, unhealthy := range []bool{true, true, false, false} {
		if ev := tr.Evaluate(key, unhealthy, alertEvent, clearEvent); ev != nil {
			kinds = append(kinds, ev.Kind)
		}
	}

	if len(kinds) != 2 || kinds[0] != EventAlert || kinds[1] != EventClear {
		t.Fatalf("expected [alert clear], got %v", kinds)
	}
}

func TestEvaluateTracksKeysIndependently(t *testing.T) {
	tr := NewTracker()
	ps1 := EntityKey{Category: CategoryPowerSupply, NodeID: 1, Supply: "PS1"}
	ps2 := EntityKey{Category: CategoryPowerSupply, NodeID: 1, Supply: "PS2"}

	if ev := tr.Evaluate(ps1, true, alertEvent, clearEvent); ev == nil {
		t.Fatal("expected alert for PS1")
	}
	if ev := tr.Evaluate(ps2, false, alertEvent, clearEvent); ev != nil {
		t.Fatal("PS2 must be unaffected by PS1 state")
	}
	if ev := tr.Evaluate(ps2, true, alertEvent, clearEvent); ev == nil {
		t.Fatal("expected alert for PS2")
	}
	if ev := tr.Evaluate(ps1, false, alertEvent, clearEvent); ev == nil || ev.Kind != EventClear {
		t.Fatal("expected clear for PS1")
	}
}
