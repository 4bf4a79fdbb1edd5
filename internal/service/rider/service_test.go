package rider

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vendorlink/vendorlink/internal/cache"
	"github.com/vendorlink/vendorlink/internal/entity"
	"github.com/vendorlink/vendorlink/internal/readmodel"
	"github.com/vendorlink/vendorlink/pkg/errorbank"
)

type createCall struct {
	name  string
	phone string
}

type fakeGateway struct {
	listCalls   int
	createCalls []createCall
	riders      []entity.Rider
	err         error
}

func (g *fakeGateway) ListRiders(ctx context.Context) ([]entity.Rider, error) {
	g.listCalls++
	if g.err != nil {
		return nil, g.err
	}
	return g.riders, nil
}

func (g *fakeGateway) CreateRider(ctx context.Context, name, phone string) (*entity.Rider, error) {
	g.createCalls = append(g.createCalls, createCall{name: name, phone: phone})
	if g.err != nil {
		return nil, g.err
	}
	return &entity.Rider{ID: "rider_new", Name: name, Phone: phone}, nil
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

func newTestService(gw *fakeGateway, store *memStore) *Service {
	return New(gw, store, time.Minute, zap.NewNop())
}

func TestAddValidatesBeforeNetwork(t *testing.T) {
	cases := []struct {
		name      string
		riderName string
		phone     string
	}{
		{"short name", "S", "9876543210"},
		{"phone too short", "Suresh", "98765"},
		{"phone too long", "Suresh", "98765432100"},
		{"phone not digits", "Suresh", "98765abcde"},
		{"phone empty", "Suresh", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{}
			svc := newTestService(gw, newMemStore())

			_, err := svc.Add(context.Background(), tc.riderName, tc.phone)
			if !errorbank.IsKind(err, errorbank.KindValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
			if len(gw.createCalls) != 0 {
				t.Fatal("invalid rider reached the gateway")
			}
		})
	}
}

func TestAddWithoutName(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(gw, newMemStore())

	rider, err := svc.Add(context.Background(), "", "9876543210")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(gw.createCalls) != 1 {
		t.Fatalf("create calls = %d, want 1", len(gw.createCalls))
	}
	if got := gw.createCalls[0]; got.name != "" || got.phone != "9876543210" {
		t.Fatalf("create call = %+v", got)
	}
	// Display falls back to the phone until a name is set.
	if rider.DisplayName() != "Rider #3210" {
		t.Fatalf("DisplayName() = %q", rider.DisplayName())
	}
}

func TestAddInvalidatesDirectory(t *testing.T) {
	gw := &fakeGateway{riders: []entity.Rider{{ID: "rider_1", Phone: "9000000001"}}}
	store := newMemStore()
	svc := newTestService(gw, store)
	ctx := context.Background()

	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("List: %v", err)
	}
	if gw.listCalls != 1 {
		t.Fatalf("list calls = %d, want 1 (second read cached)", gw.listCalls)
	}

	if _, err := svc.Add(ctx, "Ramesh", "9876543210"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, ok := store.data[readmodel.RiderList().String()]; ok {
		t.Fatal("rider cache survived a successful creation")
	}

	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("List: %v", err)
	}
	if gw.listCalls != 2 {
		t.Fatalf("list calls = %d, want 2 (directory must refetch after create)", gw.listCalls)
	}
}

func TestAddTrimsName(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(gw, newMemStore())

	if _, err := svc.Add(context.Background(), "  Ramesh  ", "9876543210"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if gw.createCalls[0].name != "Ramesh" {
		t.Fatalf("name = %q, want trimmed", gw.createCalls[0].name)
	}
}
