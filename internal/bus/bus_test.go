package bus

import (
	"reflect"
	"testing"
)

func TestEmitDeliversInSubscriptionOrder(t *testing.T) {
	b := New()
	var got []string
	b.Subscribe(func(e Event) { got = append(got, "first:"+e.EventName) })
	b.Subscribe(func(e Event) { got = append(got, "second:"+e.EventName) })

	b.EmitNamed(EventCreateTab, map[string]any{"id": 1})

	want := []string{"first:" + EventCreateTab, "second:" + EventCreateTab}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("deliveries = %v; want %v", got, want)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	id := b.Subscribe(func(Event) { calls++ })

	b.EmitNamed(EventSwitchTab, nil)
	b.Unsubscribe(id)
	b.EmitNamed(EventSwitchTab, nil)

	if calls != 1 {
		t.Fatalf("calls = %d; want 1", calls)
	}
	if b.Len() != 0 {
		t.Fatalf("Len() = %d; want 0", b.Len())
	}
}

func TestUnsubscribeUnknownIsNoop(t *testing.T) {
	b := New()
	b.Subscribe(func(Event) {})
	b.Unsubscribe(Subscription(999))
	if b.Len() != 1 {
		t.Fatalf("Len() = %d; want 1", b.Len())
	}
}

func TestHandlerMayUnsubscribeDuringEmit(t *testing.T) {
	b := New()
	var id Subscription
	calls := 0
	id = b.Subscribe(func(Event) {
		calls++
		b.Unsubscribe(id)
	})

	b.EmitNamed(EventCloseTab, nil)
	b.EmitNamed(EventCloseTab, nil)

	if calls != 1 {
		t.Fatalf("calls = %d; want 1", calls)
	}
}

func TestEmitNamedDefaultsData(t *testing.T) {
	b := New()
	var got Event
	b.Subscribe(func(e Event) { got = e })
	b.EmitNamed(EventCloseTab, nil)
	if got.Data == nil {
		t.Fatal("Data = nil; want empty map")
	}
}

func TestTargetIDs(t *testing.T) {
	unscoped := Event{Data: map[string]any{"id": 3}}
	if _, ok := unscoped.TargetIDs(); ok {
		t.Fatal("TargetIDs() scoped = true; want false for unscoped event")
	}

	scoped := Event{Data: map[string]any{ContainerIDsKey: []any{float64(2), 5}}}
	ids, ok := scoped.TargetIDs()
	if !ok {
		t.Fatal("TargetIDs() scoped = false; want true")
	}
	if want := []int{2, 5}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("TargetIDs() = %v; want %v", ids, want)
	}
}

func TestTargetIDsTypedSlices(t *testing.T) {
	cases := []struct {
		name   string
		raw    any
		want   []int
		scoped bool
	}{
		{"int64", []int64{4, 7}, []int{4, 7}, true},
		{"int32", []int32{1}, []int{1}, true},
		{"float64", []float64{9}, []int{9}, true},
		{"mixed any", []any{int64(3), "x", int32(8)}, []int{3, 8}, true},
		{"string", "2", nil, false},
		{"string slice", []string{"2"}, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := Event{Data: map[string]any{ContainerIDsKey: tc.raw}}
			ids, ok := e.TargetIDs()
			if ok != tc.scoped {
				t.Fatalf("TargetIDs() scoped = %v; want %v", ok, tc.scoped)
			}
			if !reflect.DeepEqual(ids, tc.want) {
				t.Fatalf("TargetIDs() = %v; want %v", ids, tc.want)
			}
		})
	}
}
