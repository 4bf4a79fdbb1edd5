package assignment

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vendorlink/vendorlink/internal/cache"
	"github.com/vendorlink/vendorlink/internal/messaging"
	"github.com/vendorlink/vendorlink/internal/readmodel"
	ordersvc "github.com/vendorlink/vendorlink/internal/service/order"
	"github.com/vendorlink/vendorlink/pkg/errorbank"
)

type assignCall struct {
	orderIDs []string
	riderID  string
}

type fakeGateway struct {
	calls []assignCall
	err   error
}

func (g *fakeGateway) AssignRiders(ctx context.Context, orderIDs []string, riderID string) error {
	g.calls = append(g.calls, assignCall{orderIDs: orderIDs, riderID: riderID})
	return g.err
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return value, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) seed(keys ...readmodel.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		m.data[key.String()] = []byte(`{}`)
	}
}

func (m *memStore) has(key readmodel.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key.String()]
	return ok
}

type capturePublisher struct {
	events []ordersvc.StatusChangedEvent
}

func (p *capturePublisher) Publish(ctx context.Context, key, value []byte) error {
	var event ordersvc.StatusChangedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Consume(ctx context.Context, handler messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *capturePublisher) Topic() string { return "orders.status" }

func newTestService(gw *fakeGateway, store *memStore, pub *capturePublisher) *Service {
	return New(gw, store, zap.NewNop(), pub, pub != nil)
}

func TestAssignValidatesBeforeNetwork(t *testing.T) {
	cases := []struct {
		name     string
		orderIDs []string
		riderID  string
	}{
		{"no orders", nil, "rider_9"},
		{"empty orders", []string{}, "rider_9"},
		{"blank orders", []string{"", "   "}, "rider_9"},
		{"no rider", []string{"ord_1"}, ""},
		{"blank rider", []string{"ord_1"}, "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{}
			svc := newTestService(gw, newMemStore(), nil)

			err := svc.Assign(context.Background(), tc.orderIDs, tc.riderID)
			if !errorbank.IsKind(err, errorbank.KindValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
			if len(gw.calls) != 0 {
				t.Fatal("invalid assignment reached the gateway")
			}
		})
	}
}

func TestAssignBatch(t *testing.T) {
	gw := &fakeGateway{}
	store := newMemStore()
	store.seed(readmodel.OrderList(), readmodel.OrderDetail("ord_1"), readmodel.OrderDetail("ord_2"))
	pub := &capturePublisher{}
	svc := newTestService(gw, store, pub)

	if err := svc.Assign(context.Background(), []string{"ord_1", "ord_2"}, "rider_9"); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	if len(gw.calls) != 1 {
		t.Fatalf("gateway calls = %d, want 1 (single batch call)", len(gw.calls))
	}
	call := gw.calls[0]
	if call.riderID != "rider_9" {
		t.Fatalf("riderID = %q", call.riderID)
	}
	want := []string{"ord_1", "ord_2"}
	if len(call.orderIDs) != len(want) {
		t.Fatalf("orderIDs = %v, want %v", call.orderIDs, want)
	}
	for i := range want {
		if call.orderIDs[i] != want[i] {
			t.Fatalf("orderIDs = %v, want %v", call.orderIDs, want)
		}
	}

	for _, key := range []readmodel.Key{readmodel.OrderList(), readmodel.OrderDetail("ord_1"), readmodel.OrderDetail("ord_2")} {
		if store.has(key) {
			t.Errorf("cache key %s survived a successful assignment", key)
		}
	}

	if len(pub.events) != 2 {
		t.Fatalf("published events = %d, want 2", len(pub.events))
	}
	got := []string{pub.events[0].OrderID, pub.events[1].OrderID}
	sort.Strings(got)
	if got[0] != "ord_1" || got[1] != "ord_2" {
		t.Fatalf("event order IDs = %v", got)
	}
	for _, event := range pub.events {
		if event.Type != ordersvc.EventRiderAssigned || event.RiderID != "rider_9" {
			t.Fatalf("event = %+v", event)
		}
	}
}

func TestAssignRemoteFailureLeavesCache(t *testing.T) {
	gw := &fakeGateway{err: errorbank.Remote("rider unavailable")}
	store := newMemStore()
	store.seed(readmodel.OrderList(), readmodel.OrderDetail("ord_1"))
	pub := &capturePublisher{}
	svc := newTestService(gw, store, pub)

	err := svc.Assign(context.Background(), []string{"ord_1"}, "rider_9")
	if !errorbank.IsKind(err, errorbank.KindRemote) {
		t.Fatalf("err = %v, want remote", err)
	}
	if !store.has(readmodel.OrderList()) || !store.has(readmodel.OrderDetail("ord_1")) {
		t.Error("cache was invalidated on a failed assignment")
	}
	if len(pub.events) != 0 {
		t.Error("event was published on a failed assignment")
	}
}

func TestAssignSelectedClearsOnSuccessOnly(t *testing.T) {
	gw := &fakeGateway{err: errorbank.Remote("rider unavailable")}
	svc := newTestService(gw, newMemStore(), nil)

	sel := NewSelection()
	sel.Toggle("ord_1")
	sel.Toggle("ord_2")

	if err := svc.AssignSelected(context.Background(), sel, "rider_9"); err == nil {
		t.Fatal("expected remote failure")
	}
	if sel.Len() != 2 || !sel.Active() {
		t.Fatal("selection was cleared on failure")
	}

	gw.err = nil
	if err := svc.AssignSelected(context.Background(), sel, "rider_9"); err != nil {
		t.Fatalf("AssignSelected: %v", err)
	}
	if sel.Len() != 0 || sel.Active() {
		t.Fatal("selection was not cleared on success")
	}
}

func TestAssignSelectedEmpty(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(gw, newMemStore(), nil)

	if err := svc.AssignSelected(context.Background(), NewSelection(), "rider_9"); !errorbank.IsKind(err, errorbank.KindValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if len(gw.calls) != 0 {
		t.Fatal("empty selection reached the gateway")
	}
}

func TestSelection(t *testing.T) {
	sel := NewSelection()
	if sel.Active() || sel.Len() != 0 {
		t.Fatal("new selection should be empty and inactive")
	}

	sel.Toggle("ord_1")
	if !sel.Active() || !sel.Has("ord_1") {
		t.Fatal("toggle should select and activate")
	}

	sel.Toggle("ord_1")
	if sel.Active() || sel.Has("ord_1") {
		t.Fatal("second toggle should deselect and deactivate when empty")
	}

	sel.Toggle("ord_1")
	sel.Toggle("ord_2")
	sel.Toggle("ord_2")
	if !sel.Active() || sel.Len() != 1 {
		t.Fatal("deselecting one of two should stay active")
	}

	sel.Clear()
	if sel.Active() || sel.Len() != 0 {
		t.Fatal("clear should empty and deactivate")
	}
}
