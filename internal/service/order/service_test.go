package order

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vendorlink/vendorlink/internal/cache"
	"github.com/vendorlink/vendorlink/internal/entity"
	"github.com/vendorlink/vendorlink/internal/gateway"
	"github.com/vendorlink/vendorlink/internal/messaging"
	"github.com/vendorlink/vendorlink/internal/readmodel"
	"github.com/vendorlink/vendorlink/pkg/errorbank"
)

type cancelCall struct {
	orderID string
	reason  string
}

type verifyCall struct {
	orderID      string
	confirmation gateway.Confirmation
}

// fakeGateway records every platform call. An optional gate blocks mutations
// until released, and err fails every mutation.
type fakeGateway struct {
	mu          sync.Mutex
	cancelCalls []cancelCall
	markCalls   []string
	verifyCalls []verifyCall
	getCalls    []string
	listCalls   int
	page        *gateway.OrderPage
	order       *entity.Order
	err         error
	gate        chan struct{}
}

func (g *fakeGateway) ListOrders(ctx context.Context, page, limit int) (*gateway.OrderPage, error) {
	g.mu.Lock()
	g.listCalls++
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	if g.page != nil {
		return g.page, nil
	}
	return &gateway.OrderPage{}, nil
}

func (g *fakeGateway) GetOrder(ctx context.Context, orderID string) (*entity.Order, error) {
	g.mu.Lock()
	g.getCalls = append(g.getCalls, orderID)
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	if g.order != nil {
		return g.order, nil
	}
	return &entity.Order{ID: orderID, Status: entity.StatusConfirmed}, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, orderID, reason string) error {
	if g.gate != nil {
		<-g.gate
	}
	g.mu.Lock()
	g.cancelCalls = append(g.cancelCalls, cancelCall{orderID: orderID, reason: reason})
	g.mu.Unlock()
	return g.err
}

func (g *fakeGateway) MarkOutForDelivery(ctx context.Context, orderID string) error {
	g.mu.Lock()
	g.markCalls = append(g.markCalls, orderID)
	g.mu.Unlock()
	return g.err
}

func (g *fakeGateway) VerifyDelivery(ctx context.Context, orderID string, confirmation gateway.Confirmation) error {
	g.mu.Lock()
	g.verifyCalls = append(g.verifyCalls, verifyCall{orderID: orderID, confirmation: confirmation})
	g.mu.Unlock()
	return g.err
}

func (g *fakeGateway) mutations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cancelCalls) + len(g.markCalls) + len(g.verifyCalls)
}

// memStore is an in-memory cache.Store.
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

func (m *memStore) has(key readmodel.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key.String()]
	return ok
}

// capturePublisher records published status events.
type capturePublisher struct {
	mu     sync.Mutex
	events []StatusChangedEvent
}

func (p *capturePublisher) Publish(ctx context.Context, key, value []byte) error {
	var event StatusChangedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	return nil
}

func (p *capturePublisher) Consume(ctx context.Context, handler messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *capturePublisher) Topic() string { return "orders.status" }

func (p *capturePublisher) published() []StatusChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StatusChangedEvent, len(p.events))
	copy(out, p.events)
	return out
}

func locked(svc *Service, orderID string) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	_, ok := svc.inflight[orderID]
	return ok
}

func newTestService(gw *fakeGateway, store *memStore, pub *capturePublisher) *Service {
	return New(gw, store, time.Minute, zap.NewNop(), pub, pub != nil)
}

func seedOrder(t *testing.T, store *memStore, order entity.Order) {
	t.Helper()
	raw, err := json.Marshal(order)
	if err != nil {
		t.Fatalf("marshal order: %v", err)
	}
	store.data[readmodel.OrderDetail(order.ID).String()] = raw
}

func seedList(t *testing.T, store *memStore) {
	t.Helper()
	raw, err := json.Marshal(gateway.OrderPage{})
	if err != nil {
		t.Fatalf("marshal page: %v", err)
	}
	store.data[readmodel.OrderList().String()] = raw
}

func TestRejectRequiresReason(t *testing.T) {
	for _, reason := range []string{"", "   ", "\t\n"} {
		gw := &fakeGateway{}
		svc := newTestService(gw, newMemStore(), nil)

		err := svc.Reject(context.Background(), "ord_1", reason)
		if !errorbank.IsKind(err, errorbank.KindValidation) {
			t.Fatalf("Reject(%q) error = %v, want validation", reason, err)
		}
		if gw.mutations() != 0 {
			t.Fatalf("Reject(%q) reached the gateway", reason)
		}
	}
}

func TestTerminalOrdersAreSinks(t *testing.T) {
	for _, status := range []entity.OrderStatus{entity.StatusDelivered, entity.StatusCancelled} {
		gw := &fakeGateway{}
		store := newMemStore()
		svc := newTestService(gw, store, nil)
		seedOrder(t, store, entity.Order{ID: "ord_t", Status: status})
		ctx := context.Background()

		if err := svc.Reject(ctx, "ord_t", "changed my mind"); !errorbank.IsKind(err, errorbank.KindValidation) {
			t.Errorf("Reject on %s order: err = %v, want validation", status, err)
		}
		if err := svc.MarkOutForDelivery(ctx, "ord_t"); !errorbank.IsKind(err, errorbank.KindValidation) {
			t.Errorf("MarkOutForDelivery on %s order: err = %v, want validation", status, err)
		}
		payload := ConfirmationPayload{Method: entity.ConfirmOTP, Value: "1234"}
		if err := svc.ConfirmDelivery(ctx, "ord_t", payload); !errorbank.IsKind(err, errorbank.KindValidation) {
			t.Errorf("ConfirmDelivery on %s order: err = %v, want validation", status, err)
		}
		if gw.mutations() != 0 {
			t.Errorf("terminal %s order reached the gateway %d times", status, gw.mutations())
		}
	}
}

func TestRejectConfirmedOrder(t *testing.T) {
	gw := &fakeGateway{}
	store := newMemStore()
	pub := &capturePublisher{}
	svc := newTestService(gw, store, pub)
	seedOrder(t, store, entity.Order{ID: "ord_1", Status: entity.StatusConfirmed})
	seedList(t, store)

	if err := svc.Reject(context.Background(), "ord_1", "Distance Far Away"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if len(gw.cancelCalls) != 1 {
		t.Fatalf("cancel calls = %d, want 1", len(gw.cancelCalls))
	}
	if got := gw.cancelCalls[0]; got.orderID != "ord_1" || got.reason != "Distance Far Away" {
		t.Fatalf("cancel call = %+v", got)
	}
	if store.has(readmodel.OrderList()) {
		t.Error("order list cache survived a successful rejection")
	}
	if store.has(readmodel.OrderDetail("ord_1")) {
		t.Error("order detail cache survived a successful rejection")
	}

	events := pub.published()
	if len(events) != 1 {
		t.Fatalf("published events = %d, want 1", len(events))
	}
	if events[0].Type != EventOrderRejected || events[0].To != entity.StatusCancelled || events[0].Reason != "Distance Far Away" {
		t.Fatalf("event = %+v", events[0])
	}
}

func TestMarkOutForDeliveryRequiresConfirmed(t *testing.T) {
	gw := &fakeGateway{}
	store := newMemStore()
	svc := newTestService(gw, store, nil)
	seedOrder(t, store, entity.Order{ID: "ord_p", Status: entity.StatusPending})

	if err := svc.MarkOutForDelivery(context.Background(), "ord_p"); !errorbank.IsKind(err, errorbank.KindValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if gw.mutations() != 0 {
		t.Fatal("pending order reached the gateway")
	}

	seedOrder(t, store, entity.Order{ID: "ord_c", Status: entity.StatusConfirmed})
	if err := svc.MarkOutForDelivery(context.Background(), "ord_c"); err != nil {
		t.Fatalf("MarkOutForDelivery: %v", err)
	}
	if len(gw.markCalls) != 1 || gw.markCalls[0] != "ord_c" {
		t.Fatalf("mark calls = %v", gw.markCalls)
	}
}

func TestConfirmDeliveryPayloadValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload ConfirmationPayload
	}{
		{"otp too short", ConfirmationPayload{Method: entity.ConfirmOTP, Value: "123"}},
		{"otp too long", ConfirmationPayload{Method: entity.ConfirmOTP, Value: "12345"}},
		{"otp not digits", ConfirmationPayload{Method: entity.ConfirmOTP, Value: "12a4"}},
		{"otp empty", ConfirmationPayload{Method: entity.ConfirmOTP, Value: ""}},
		{"photo missing", ConfirmationPayload{Method: entity.ConfirmPhoto, Value: "  "}},
		{"unknown method", ConfirmationPayload{Method: "SIGNATURE", Value: "x"}},
		{"empty method", ConfirmationPayload{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{}
			svc := newTestService(gw, newMemStore(), nil)

			err := svc.ConfirmDelivery(context.Background(), "ord_3", tc.payload)
			if !errorbank.IsKind(err, errorbank.KindValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
			if gw.mutations() != 0 {
				t.Fatal("invalid payload reached the gateway")
			}
		})
	}
}

func TestConfirmDeliveryOTP(t *testing.T) {
	gw := &fakeGateway{}
	store := newMemStore()
	svc := newTestService(gw, store, nil)
	seedOrder(t, store, entity.Order{ID: "ord_3", Status: entity.StatusOutForDelivery})

	payload := ConfirmationPayload{Method: entity.ConfirmOTP, Value: "1234"}
	if err := svc.ConfirmDelivery(context.Background(), "ord_3", payload); err != nil {
		t.Fatalf("ConfirmDelivery: %v", err)
	}

	if len(gw.verifyCalls) != 1 {
		t.Fatalf("verify calls = %d, want 1", len(gw.verifyCalls))
	}
	call := gw.verifyCalls[0]
	if call.orderID != "ord_3" || call.confirmation.OTP != "1234" || call.confirmation.Image != "" {
		t.Fatalf("verify call = %+v", call)
	}
}

func TestConfirmDeliveryPhoto(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(gw, newMemStore(), nil)

	payload := ConfirmationPayload{Method: entity.ConfirmPhoto, Value: "uploads/proof_81.jpg"}
	if err := svc.ConfirmDelivery(context.Background(), "ord_9", payload); err != nil {
		t.Fatalf("ConfirmDelivery: %v", err)
	}
	if len(gw.verifyCalls) != 1 || gw.verifyCalls[0].confirmation.Image != "uploads/proof_81.jpg" {
		t.Fatalf("verify calls = %+v", gw.verifyCalls)
	}
}

func TestNoInvalidationOnRemoteFailure(t *testing.T) {
	gw := &fakeGateway{err: errorbank.Remote("order already progressed")}
	store := newMemStore()
	pub := &capturePublisher{}
	svc := newTestService(gw, store, pub)
	seedOrder(t, store, entity.Order{ID: "ord_f", Status: entity.StatusConfirmed})
	seedList(t, store)

	err := svc.Reject(context.Background(), "ord_f", "customer unreachable")
	if !errorbank.IsKind(err, errorbank.KindRemote) {
		t.Fatalf("err = %v, want remote", err)
	}
	if !store.has(readmodel.OrderList()) || !store.has(readmodel.OrderDetail("ord_f")) {
		t.Error("cache was invalidated on a failed mutation")
	}
	if len(pub.published()) != 0 {
		t.Error("event was published on a failed mutation")
	}
}

func TestGetRefetchesAfterMutation(t *testing.T) {
	gw := &fakeGateway{order: &entity.Order{ID: "ord_x", Status: entity.StatusConfirmed}}
	store := newMemStore()
	svc := newTestService(gw, store, nil)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "ord_x"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := svc.Get(ctx, "ord_x"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(gw.getCalls) != 1 {
		t.Fatalf("get calls before mutation = %d, want 1 (second read cached)", len(gw.getCalls))
	}

	if err := svc.MarkOutForDelivery(ctx, "ord_x"); err != nil {
		t.Fatalf("MarkOutForDelivery: %v", err)
	}
	if _, err := svc.Get(ctx, "ord_x"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(gw.getCalls) != 2 {
		t.Fatalf("get calls after mutation = %d, want 2 (stale entry must be refetched)", len(gw.getCalls))
	}
}

func TestListUsesCache(t *testing.T) {
	gw := &fakeGateway{page: &gateway.OrderPage{Total: 3}}
	svc := newTestService(gw, newMemStore(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.List(ctx, 0, 0); err != nil {
			t.Fatalf("List: %v", err)
		}
	}
	if gw.listCalls != 1 {
		t.Fatalf("list calls = %d, want 1", gw.listCalls)
	}
}

func TestConcurrentCommandsConflict(t *testing.T) {
	gw := &fakeGateway{gate: make(chan struct{})}
	store := newMemStore()
	svc := newTestService(gw, store, nil)
	seedOrder(t, store, entity.Order{ID: "ord_r", Status: entity.StatusConfirmed})
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		first <- svc.Reject(ctx, "ord_r", "slow reject")
	}()

	// Wait until the first command holds the lock inside the gateway call.
	deadline := time.After(2 * time.Second)
	for !locked(svc, "ord_r") {
		select {
		case <-deadline:
			t.Fatal("first command never acquired the lock")
		case <-time.After(time.Millisecond):
		}
	}

	err := svc.Reject(ctx, "ord_r", "second reject")
	if !errorbank.IsKind(err, errorbank.KindConflict) {
		t.Fatalf("second command err = %v, want conflict", err)
	}

	close(gw.gate)
	if err := <-first; err != nil {
		t.Fatalf("first command: %v", err)
	}
	if len(gw.cancelCalls) != 1 {
		t.Fatalf("cancel calls = %d, want 1", len(gw.cancelCalls))
	}

	// Lock released: the same order accepts a new command again.
	seedOrder(t, store, entity.Order{ID: "ord_r", Status: entity.StatusConfirmed})
	if err := svc.Reject(ctx, "ord_r", "third reject"); err != nil {
		t.Fatalf("command after unlock: %v", err)
	}
}
