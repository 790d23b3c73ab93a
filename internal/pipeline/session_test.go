package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/franckalain/grocerylens/internal/models"
)

type memoryLists struct {
	mu    sync.Mutex
	lists map[string]*models.ShoppingList
	saves int
}

func newMemoryLists(lists ...*models.ShoppingList) *memoryLists {
	m := &memoryLists{lists: make(map[string]*models.ShoppingList)}
	for _, l := range lists {
		l.Recount()
		m.lists[l.ID] = l
	}
	return m
}

func (m *memoryLists) GetShoppingList(_ context.Context, id string) (*models.ShoppingList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lists[id]
	if !ok {
		return nil, errors.New("no such list")
	}
	cp := *l
	cp.Items = append([]models.ShoppingListItem(nil), l.Items...)
	return &cp, nil
}

func (m *memoryLists) SaveShoppingList(_ context.Context, list *models.ShoppingList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *list
	cp.Items = append([]models.ShoppingListItem(nil), list.Items...)
	m.lists[list.ID] = &cp
	m.saves++
	return nil
}

type memoryHistory struct {
	mu     sync.Mutex
	events []*models.ScanEvent
}

func (h *memoryHistory) SaveScanEvent(_ context.Context, ev *models.ScanEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return nil
}

func groceryList(checked ...bool) *models.ShoppingList {
	names := []string{"Bread", "Eggs", "Greek Yogurt", "Milk", "Rice"}
	l := &models.ShoppingList{ID: "list-1", Name: "Weekly"}
	for i, c := range checked {
		l.Items = append(l.Items, models.ShoppingListItem{ID: names[i], Name: names[i], Checked: c})
	}
	return l
}

func TestScanClassifiesProduct(t *testing.T) {
	history := &memoryHistory{}
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p, _ := newTestPipeline(&fakeResolver{}, WithHistory(history), WithClock(func() time.Time { return clock }))
	id := p.StartSession()

	good, err := p.Scan(context.Background(), ScanRequest{SessionID: id, Barcode: "123456789"})
	if err != nil {
		t.Fatal(err)
	}
	if !good.Analysis.Approved || good.Analysis.HealthScore != 85 || len(good.Analysis.RedFlags) != 0 {
		t.Errorf("organic bar: %+v", good.Analysis)
	}
	if good.Source != models.SourceFallback || good.SessionID != id || !good.Timestamp.Equal(clock) {
		t.Errorf("event fields: %+v", good)
	}

	bad, err := p.Scan(context.Background(), ScanRequest{SessionID: id, Barcode: "987654321"})
	if err != nil {
		t.Fatal(err)
	}
	if bad.Analysis.Approved || len(bad.Analysis.RedFlags) != 5 {
		t.Errorf("chocolate bar: %+v", bad.Analysis)
	}
	if bad.Analysis.ProcessingLevel != models.ProcessingUltraProcessed {
		t.Errorf("processing level: %s", bad.Analysis.ProcessingLevel)
	}
	if len(bad.Product.Alternatives) == 0 {
		t.Error("expected alternatives for a rejected product")
	}

	if len(history.events) != 2 || history.events[0].ID == history.events[1].ID {
		t.Errorf("history: %d events", len(history.events))
	}
}

func TestScanUnknownBarcode(t *testing.T) {
	history := &memoryHistory{}
	p, store := newTestPipeline(&fakeResolver{}, WithHistory(history))
	id := p.StartSession()

	_, err := p.Scan(context.Background(), ScanRequest{SessionID: id, Barcode: "000000000"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if store.Len() != 0 || len(history.events) != 0 {
		t.Error("a miss must leave no trace")
	}

	if _, err := p.Scan(context.Background(), ScanRequest{SessionID: id, Barcode: "111222333"}); err != nil {
		t.Errorf("session should be usable after a miss: %v", err)
	}
}

func TestScanChecksOffListItem(t *testing.T) {
	tests := []struct {
		name         string
		list         *models.ShoppingList
		wantComplete bool
	}{
		{"completes list", groceryList(true, true, false), true},
		{"list still open", groceryList(true, true, false, false, false), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lists := newMemoryLists(tt.list)
			p, _ := newTestPipeline(&fakeResolver{}, WithLists(lists))
			id := p.StartSession()

			ev, err := p.Scan(context.Background(), ScanRequest{SessionID: id, Barcode: "111222333", ListID: "list-1"})
			if err != nil {
				t.Fatal(err)
			}
			if ev.MatchedItem == nil || ev.MatchedItem.Name != "Greek Yogurt" {
				t.Fatalf("matched item: %+v", ev.MatchedItem)
			}
			if ev.ListComplete != tt.wantComplete {
				t.Errorf("ListComplete = %v, want %v", ev.ListComplete, tt.wantComplete)
			}

			stored, _ := lists.GetShoppingList(context.Background(), "list-1")
			if !stored.Items[2].Checked {
				t.Error("checked state not saved")
			}
		})
	}
}

func TestScanWithoutMatchLeavesList(t *testing.T) {
	lists := newMemoryLists(groceryList(false, false))
	p, _ := newTestPipeline(&fakeResolver{}, WithLists(lists))
	id := p.StartSession()

	ev, err := p.Scan(context.Background(), ScanRequest{SessionID: id, Barcode: "987654321", ListID: "list-1"})
	if err != nil {
		t.Fatal(err)
	}
	if ev.MatchedItem != nil || ev.ListComplete {
		t.Errorf("unexpected match: %+v", ev)
	}
	if lists.saves != 0 {
		t.Errorf("list saved %d times without a match", lists.saves)
	}
}

func TestScanRejectsConcurrentScanInSession(t *testing.T) {
	remote := &fakeResolver{
		products: map[string]*models.ProductRecord{"5000": yogurt("5000")},
		started:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	p, _ := newTestPipeline(remote)
	id := p.StartSession()
	other := p.StartSession()
	// Served from the cache so the other session never waits on the remote.
	if err := p.cache.Set(context.Background(), "123456789", yogurt("123456789")); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.Scan(context.Background(), ScanRequest{SessionID: id, Barcode: "5000"})
		done <- err
	}()
	<-remote.started

	if _, err := p.Scan(context.Background(), ScanRequest{SessionID: id, Barcode: "123456789"}); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("second scan: got %v, want ErrScanInProgress", err)
	}
	// Other sessions are independent.
	if _, err := p.Scan(context.Background(), ScanRequest{SessionID: other, Barcode: "123456789"}); err != nil {
		t.Errorf("other session: %v", err)
	}

	close(remote.release)
	if err := <-done; err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if _, err := p.Scan(context.Background(), ScanRequest{SessionID: id, Barcode: "5000"}); err != nil {
		t.Errorf("latch not released: %v", err)
	}
}

func TestScanEndedSessionStillWarmsCache(t *testing.T) {
	remote := &fakeResolver{
		products: map[string]*models.ProductRecord{"5000": yogurt("5000")},
		started:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	history := &memoryHistory{}
	p, store := newTestPipeline(remote, WithHistory(history))
	id := p.StartSession()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Scan(ctx, ScanRequest{SessionID: id, Barcode: "5000"})
		done <- err
	}()
	<-remote.started

	p.EndSession(id)
	cancel()
	close(remote.release)

	if err := <-done; !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("got %v, want ErrSessionClosed", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for store.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.Len() != 1 {
		t.Error("result of an ended session should still be cached")
	}
	if len(history.events) != 0 {
		t.Error("discarded scan was recorded")
	}
	if p.SessionActive(id) {
		t.Error("session still active")
	}
}

func TestScanUnknownSession(t *testing.T) {
	p, _ := newTestPipeline(&fakeResolver{})
	_, err := p.Scan(context.Background(), ScanRequest{SessionID: "nope", Barcode: "123456789"})
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("got %v, want ErrSessionClosed", err)
	}
}

func TestScanInvalidBarcodeKeepsSessionFree(t *testing.T) {
	p, _ := newTestPipeline(&fakeResolver{})
	id := p.StartSession()

	if _, err := p.Scan(context.Background(), ScanRequest{SessionID: id, Barcode: ""}); !errors.Is(err, ErrInvalidBarcode) {
		t.Fatalf("got %v, want ErrInvalidBarcode", err)
	}
	if _, err := p.Scan(context.Background(), ScanRequest{SessionID: id, Barcode: "123456789"}); err != nil {
		t.Errorf("session blocked after invalid input: %v", err)
	}
}
