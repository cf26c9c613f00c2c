// Package cart implements the per-table cart session: optimistic in-memory
// state persisted to a durable store on every mutation. A session is owned
// by one table; switching tables while the cart holds items requires an
// explicit confirmation before the old state is discarded.
package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"tableorder/internal/apperr"
	"tableorder/internal/common/logger"
	"tableorder/internal/domain"
	"tableorder/internal/storage"
)

const keyPrefix = "cart:"

// ErrInvalidQuantity is returned for negative quantities. It is a local
// validation error and never reaches the network.
var ErrInvalidQuantity = errors.New("invalid quantity")

// Notice is a non-fatal diagnostic produced while restoring a persisted
// session, surfaced to the user as a banner rather than an error.
type Notice struct {
	Reason string // "expired" or "corrupted"
	Err    error
}

// Session manages the cart for one table. All methods are safe for
// concurrent use; mutations are applied atomically in memory and the
// persisted copy is written afterwards without gating reads.
type Session struct {
	store     storage.Store
	lg        *logger.Logger
	freshness time.Duration

	mu             sync.Mutex
	tableID        string
	lines          []domain.CartLine
	isProcessing   bool
	lastError      string
	retryCount     int
	pendingTableID string
}

// persisted is the stored shape. Quantity is decoded as a float so that a
// non-integer value in the stored record is detected as corruption instead
// of being silently truncated.
type persisted struct {
	TableID      string          `json:"table_id"`
	Lines        []persistedLine `json:"lines"`
	IsProcessing bool            `json:"is_processing"`
	LastError    string          `json:"last_error,omitempty"`
	RetryCount   int             `json:"retry_count"`
	SavedAt      time.Time       `json:"saved_at"`
}

type persistedLine struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Category string  `json:"category,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
}

// Open creates the session for tableID, restoring any persisted copy that
// is fresh and structurally valid. A stale or corrupted record is discarded
// and reported through the returned Notice; the session itself starts empty
// in that case.
func Open(ctx context.Context, store storage.Store, lg *logger.Logger, tableID string, freshness time.Duration) (*Session, *Notice) {
	s := &Session{store: store, lg: lg, freshness: freshness, tableID: tableID}
	notice := s.restore(ctx)
	return s, notice
}

func (s *Session) restore(ctx context.Context) *Notice {
	raw, err := s.store.Get(ctx, keyPrefix+s.tableID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.lg.Error("cart_restore_failed", err, map[string]any{"table_id": s.tableID})
		}
		return nil
	}
	var p persisted
	if err := unmarshal(raw, &p); err != nil {
		s.discardPersisted(ctx)
		return &Notice{Reason: "corrupted", Err: apperr.Wrap(apperr.CodeCartCorrupted, err)}
	}
	if time.Since(p.SavedAt) > s.freshness {
		s.discardPersisted(ctx)
		return &Notice{Reason: "expired"}
	}
	lines := make([]domain.CartLine, 0, len(p.Lines))
	for _, l := range p.Lines {
		q := int(l.Quantity)
		if l.ID == "" || l.Name == "" || q < 1 || float64(q) != l.Quantity {
			s.discardPersisted(ctx)
			return &Notice{Reason: "corrupted", Err: apperr.New(apperr.CodeCartCorrupted)}
		}
		lines = append(lines, domain.CartLine{
			ID: l.ID, Name: l.Name, Price: l.Price, Quantity: q,
			Category: l.Category, ImageURL: l.ImageURL,
		})
	}
	s.lines = lines
	s.isProcessing = p.IsProcessing
	s.lastError = p.LastError
	s.retryCount = p.RetryCount
	return nil
}

func (s *Session) discardPersisted(ctx context.Context) {
	if err := s.store.Remove(ctx, keyPrefix+s.tableID); err != nil {
		s.lg.Error("cart_discard_failed", err, map[string]any{"table_id": s.tableID})
	}
}

// AddToCart merges the item into the cart: an existing line with the same
// id gains one more unit, otherwise a new line with quantity 1 is appended.
// A successful add clears the last error.
func (s *Session) AddToCart(ctx context.Context, item domain.CartLine) {
	s.mu.Lock()
	for i := range s.lines {
		if s.lines[i].ID == item.ID {
			s.lines[i].Quantity++
			s.lastError = ""
			s.persistLocked(ctx)
			s.mu.Unlock()
			return
		}
	}
	item.Quantity = 1
	s.lines = append(s.lines, item)
	s.lastError = ""
	s.persistLocked(ctx)
	s.mu.Unlock()
}

// UpdateQuantity sets the line's quantity. A negative quantity is rejected
// without mutating state; zero removes the line.
func (s *Session) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quantity < 0 {
		s.lastError = "Invalid quantity"
		s.persistLocked(ctx)
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		s.removeLocked(ctx, id)
		return nil
	}
	for i := range s.lines {
		if s.lines[i].ID == id {
			s.lines[i].Quantity = quantity
			break
		}
	}
	s.persistLocked(ctx)
	return nil
}

// RemoveFromCart removes the line with the given id; an absent id is a
// no-op, not an error.
func (s *Session) RemoveFromCart(ctx context.Context, id string) {
	s.mu.Lock()
	s.removeLocked(ctx, id)
	s.mu.Unlock()
}

func (s *Session) removeLocked(ctx context.Context, id string) {
	for i := range s.lines {
		if s.lines[i].ID == id {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			break
		}
	}
	s.persistLocked(ctx)
}

// ClearCart empties the cart, resets all transient state, and purges the
// persisted copy.
func (s *Session) ClearCart(ctx context.Context) {
	s.mu.Lock()
	s.lines = nil
	s.isProcessing = false
	s.lastError = ""
	s.retryCount = 0
	s.discardPersisted(ctx)
	s.mu.Unlock()
}

func (s *Session) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

func (s *Session) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum float64
	for _, l := range s.lines {
		sum += l.Price * float64(l.Quantity)
	}
	return sum
}

// SetProcessing marks an order submission in flight. Clearing the flag also
// resets the retry counter.
func (s *Session) SetProcessing(ctx context.Context, v bool) {
	s.mu.Lock()
	s.isProcessing = v
	if !v {
		s.retryCount = 0
	}
	s.persistLocked(ctx)
	s.mu.Unlock()
}

// RecordFailure notes a failed submission attempt.
func (s *Session) RecordFailure(ctx context.Context, msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.retryCount++
	s.persistLocked(ctx)
	s.mu.Unlock()
}

// SwitchTable requests a change of the active table. With an empty cart the
// switch happens immediately and true is returned. With items present the
// change is held pending until ConfirmTableChange or CancelTableChange.
func (s *Session) SwitchTable(ctx context.Context, newTableID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if newTableID == s.tableID {
		s.pendingTableID = ""
		return true
	}
	if len(s.lines) == 0 {
		s.adoptTableLocked(ctx, newTableID)
		return true
	}
	s.pendingTableID = newTableID
	return false
}

// ConfirmTableChange discards the old cart and adopts the pending table.
func (s *Session) ConfirmTableChange(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingTableID == "" {
		return
	}
	s.adoptTableLocked(ctx, s.pendingTableID)
}

// CancelTableChange drops the pending switch and keeps the current cart.
func (s *Session) CancelTableChange() {
	s.mu.Lock()
	s.pendingTableID = ""
	s.mu.Unlock()
}

func (s *Session) adoptTableLocked(ctx context.Context, newTableID string) {
	s.discardPersisted(ctx)
	s.tableID = newTableID
	s.lines = nil
	s.isProcessing = false
	s.lastError = ""
	s.retryCount = 0
	s.pendingTableID = ""
	s.persistLocked(ctx)
}

func (s *Session) TableID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tableID
}

func (s *Session) PendingTableID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingTableID
}

// TableChangePending reports whether a switch is awaiting confirmation.
func (s *Session) TableChangePending() bool { return s.PendingTableID() != "" }

func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *Session) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

func (s *Session) IsProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isProcessing
}

// Lines returns a copy of the current cart lines.
func (s *Session) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// Snapshot returns the full session state for submission.
func (s *Session) Snapshot() domain.CartSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]domain.CartLine, len(s.lines))
	copy(lines, s.lines)
	return domain.CartSession{
		TableID:      s.tableID,
		Lines:        lines,
		IsProcessing: s.isProcessing,
		LastError:    s.lastError,
		RetryCount:   s.retryCount,
		UpdatedAt:    time.Now().UTC(),
	}
}

// persistLocked writes the full session with a freshness timestamp. The
// write does not gate in-memory reads; a storage failure is logged only.
func (s *Session) persistLocked(ctx context.Context) {
	p := persisted{
		TableID:      s.tableID,
		IsProcessing: s.isProcessing,
		LastError:    s.lastError,
		RetryCount:   s.retryCount,
		SavedAt:      time.Now().UTC(),
	}
	for _, l := range s.lines {
		p.Lines = append(p.Lines, persistedLine{
			ID: l.ID, Name: l.Name, Price: l.Price, Quantity: float64(l.Quantity),
			Category: l.Category, ImageURL: l.ImageURL,
		})
	}
	raw, err := marshal(p)
	if err != nil {
		s.lg.Error("cart_persist_failed", err, map[string]any{"table_id": s.tableID})
		return
	}
	if err := s.store.Set(ctx, keyPrefix+s.tableID, raw, s.freshness); err != nil {
		s.lg.Error("cart_persist_failed", err, map[string]any{"table_id": s.tableID})
	}
}
