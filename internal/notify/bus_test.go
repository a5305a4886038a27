package notify

import (
	"testing"

	"github.com/modforge/container/internal/logging"
	"github.com/modforge/container/internal/types"
)

func TestRegisterEmitUnregister(t *testing.T) {
	bus := NewBus(logging.NewNop())

	var got []string
	bus.Register("rec", func(event types.Event, args []string) {
		got = append(got, string(event))
	})

	bus.Emit(types.EventDeploying, "shop")
	bus.Emit(types.EventDeployed, "shop", "shop.toml")

	if len(got) != 2 || got[0] != "deploying" || got[1] != "deployed" {
		t.Errorf("unexpected delivery sequence: %v", got)
	}

	bus.Unregister("rec")
	bus.Emit(types.EventFailed, "shop")
	if len(got) != 2 {
		t.Errorf("expected no delivery after unregister, got %v", got)
	}
}

func TestLastRegistrationWins(t *testing.T) {
	bus := NewBus(logging.NewNop())

	first, second := 0, 0
	bus.Register("rec", func(types.Event, []string) { first++ })
	bus.Register("rec", func(types.Event, []string) { second++ })

	bus.Emit(types.EventDeploying, "a")

	if first != 0 {
		t.Error("replaced subscriber should not be invoked")
	}
	if second != 1 {
		t.Errorf("expected 1 delivery to replacement, got %d", second)
	}
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus(logging.NewNop())

	delivered := 0
	bus.Register("bad", func(types.Event, []string) {
		panic("subscriber bug")
	})
	bus.Register("good", func(types.Event, []string) {
		delivered++
	})

	bus.Emit(types.EventUndeployed, "shop")

	if delivered != 1 {
		t.Errorf("expected healthy subscriber to receive event, got %d", delivered)
	}
}

func TestEmitArgs(t *testing.T) {
	bus := NewBus(logging.NewNop())

	var gotArgs []string
	bus.Register("rec", func(event types.Event, args []string) {
		gotArgs = args
	})

	bus.Emit(types.EventDeployed, "shop", "/srv/modules/shop.toml")

	if len(gotArgs) != 2 || gotArgs[0] != "shop" || gotArgs[1] != "/srv/modules/shop.toml" {
		t.Errorf("unexpected args: %v", gotArgs)
	}
}
