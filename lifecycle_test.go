package pawmate

import "testing"

func TestLifecycleBus(t *testing.T) {
	t.Run("starts active", func(t *testing.T) {
		bus := NewLifecycleBus()
		if got := bus.State(); got != AppActive {
			t.Errorf("expected active, got %s", got)
		}
	})

	t.Run("notifies subscribers on transitions", func(t *testing.T) {
		bus := NewLifecycleBus()
		var seen []AppState
		bus.Subscribe(func(s AppState) { seen = append(seen, s) })

		bus.SetState(AppInactive)
		bus.SetState(AppActive)

		if len(seen) != 2 || seen[0] != AppInactive || seen[1] != AppActive {
			t.Errorf("expected [inactive active], got %v", seen)
		}
	})

	t.Run("setting the same state is a no-op", func(t *testing.T) {
		bus := NewLifecycleBus()
		calls := 0
		bus.Subscribe(func(AppState) { calls++ })

		bus.SetState(AppActive)
		bus.SetState(AppActive)
		if calls != 0 {
			t.Errorf("expected no notifications, got %d", calls)
		}
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		bus := NewLifecycleBus()
		calls := 0
		unsubscribe := bus.Subscribe(func(AppState) { calls++ })
		unsubscribe()

		bus.SetState(AppInactive)
		if calls != 0 {
			t.Errorf("expected no notifications after unsubscribe, got %d", calls)
		}
	})

	t.Run("a panicking handler does not break the bus", func(t *testing.T) {
		bus := NewLifecycleBus()
		bus.Subscribe(func(AppState) { panic("handler bug") })
		calls := 0
		bus.Subscribe(func(AppState) { calls++ })

		bus.SetState(AppInactive)
		if calls != 1 {
			t.Errorf("expected the second handler to run, got %d calls", calls)
		}
	})
}
