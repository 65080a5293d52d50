package handler

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"myo-recorder/internal/model"
)

func receive(t *testing.T, ch <-chan model.Event) model.Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return model.Event{}
	}
}

func TestEventBusRoutesByType(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	faults, _ := bus.Subscribe(model.EventFault)
	all, _ := bus.Subscribe(model.EventAll)
	go bus.Start(ctx)

	bus.Publish(model.NewEvent(model.EventEpochOpened, "test", model.SeverityInfo, nil))
	bus.Publish(model.NewEvent(model.EventFault, "test", model.SeverityWarning, nil))

	if got := receive(t, all).Type; got != model.EventEpochOpened {
		t.Errorf("first wildcard event = %s", got)
	}
	if got := receive(t, all).Type; got != model.EventFault {
		t.Errorf("second wildcard event = %s", got)
	}
	if got := receive(t, faults).Type; got != model.EventFault {
		t.Errorf("fault subscriber got %s", got)
	}

	select {
	case event := <-faults:
		t.Errorf("fault subscriber got extra event %s", event.Type)
	default:
	}
}

func TestEventBusUnsubscribeAndStop(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	done := make(chan struct{})

	events, unsubscribe := bus.Subscribe(model.EventAll)
	kept, _ := bus.Subscribe(model.EventStateChanged)
	go func() {
		bus.Start(context.Background())
		close(done)
	}()

	unsubscribe()
	if _, ok := <-events; ok {
		t.Error("unsubscribed channel still open")
	}

	bus.Stop()
	bus.Stop()
	<-done

	if _, ok := <-kept; ok {
		t.Error("subscriber channel open after Stop()")
	}
}
