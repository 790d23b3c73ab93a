package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/franckalain/grocerylens/internal/health"
	"github.com/franckalain/grocerylens/internal/matcher"
	"github.com/franckalain/grocerylens/internal/models"
)

var (
	// ErrScanInProgress rejects a scan while the session is still resolving the previous one.
	ErrScanInProgress = errors.New("scan already in progress for this session")
	// ErrSessionClosed reports a scan for a session that is not (or no longer) active.
	// The lookup started on its behalf still completes and warms the cache.
	ErrSessionClosed = errors.New("scanning session is not active")
)

// ListProvider supplies and stores shopping lists. The pipeline never creates
// or deletes lists.
type ListProvider interface {
	GetShoppingList(ctx context.Context, id string) (*models.ShoppingList, error)
	SaveShoppingList(ctx context.Context, list *models.ShoppingList) error
}

// HistoryRecorder logs scans.
type HistoryRecorder interface {
	SaveScanEvent(ctx context.Context, event *models.ScanEvent) error
}

// ScanRequest is one decoded barcode from a scanning session.
type ScanRequest struct {
	SessionID string
	Barcode   string
	// ListID is the active shopping list, empty when the shopper has none.
	ListID string
}

type session struct {
	busy bool
}

// StartSession registers a new scanning session and returns its id.
func (p *Pipeline) StartSession() string {
	id := uuid.New().String()
	p.mu.Lock()
	p.sessions[id] = &session{}
	p.mu.Unlock()
	p.logger.Debugw("Scanning session started", "session_id", id)
	return id
}

// EndSession deactivates a session. A scan still in flight completes its
// cache write but its result is reported as ErrSessionClosed.
func (p *Pipeline) EndSession(id string) {
	p.mu.Lock()
	delete(p.sessions, id)
	p.mu.Unlock()
	p.logger.Debugw("Scanning session ended", "session_id", id)
}

// SessionActive reports whether id is a live session.
func (p *Pipeline) SessionActive(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sessions[id]
	return ok
}

func (p *Pipeline) acquire(id string) (*session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	if !ok {
		return nil, ErrSessionClosed
	}
	if s.busy {
		return nil, ErrScanInProgress
	}
	s.busy = true
	return s, nil
}

func (p *Pipeline) release(s *session) {
	p.mu.Lock()
	s.busy = false
	p.mu.Unlock()
}

// Scan handles one physical scan: resolve, classify, and check off the
// matching item of the active list if there is one. Only one scan per session
// runs at a time; a second one is rejected with ErrScanInProgress.
func (p *Pipeline) Scan(ctx context.Context, req ScanRequest) (*models.ScanEvent, error) {
	code, err := NormalizeBarcode(req.Barcode)
	if err != nil {
		return nil, err
	}
	s, err := p.acquire(req.SessionID)
	if err != nil {
		return nil, err
	}
	defer p.release(s)

	res, err := p.Resolve(ctx, code)
	if !p.SessionActive(req.SessionID) {
		p.logger.Infow("Discarding scan result for ended session", "session_id", req.SessionID, "barcode", code)
		return nil, ErrSessionClosed
	}
	if err != nil {
		return nil, err
	}

	analysis := health.Classify(res.Product)
	event := &models.ScanEvent{
		ID:        uuid.New().String(),
		SessionID: req.SessionID,
		Barcode:   code,
		Source:    res.Source,
		Product:   res.Product,
		Analysis:  &analysis,
		ListID:    req.ListID,
		Timestamp: p.now(),
	}

	if req.ListID != "" && p.lists != nil {
		p.reconcile(ctx, event)
	}

	if p.history != nil {
		if err := p.history.SaveScanEvent(context.WithoutCancel(ctx), event); err != nil {
			p.logger.Warnw("Failed to record scan", "scan_id", event.ID, "error", err)
		}
	}
	return event, nil
}

func (p *Pipeline) reconcile(ctx context.Context, event *models.ScanEvent) {
	list, err := p.lists.GetShoppingList(ctx, event.ListID)
	if err != nil {
		p.logger.Warnw("Could not load shopping list", "list_id", event.ListID, "error", err)
		return
	}

	result := matcher.Match(event.Product, list)
	if !result.Matched() {
		return
	}
	if err := p.lists.SaveShoppingList(ctx, list); err != nil {
		p.logger.Warnw("Could not save shopping list", "list_id", list.ID, "error", err)
		return
	}

	event.MatchedItem = result.Item
	event.ListComplete = result.ListComplete
	p.logger.Infow("Checked off shopping list item",
		"list_id", list.ID,
		"item", result.Item.Name,
		"rule", result.Rule,
		"completed", list.CompletedCount,
		"total", list.TotalCount,
	)
}
