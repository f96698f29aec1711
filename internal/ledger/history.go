package ledger

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// History stores the settled transactions of one account, as seen from that account.
// Saving an id that is already present does nothing.
type History struct {
	mu        sync.RWMutex
	byID      map[uuid.UUID]Transaction
	order     []uuid.UUID
	cancelled map[uuid.UUID]uuid.UUID
}

// creates an empty history
func NewHistory() *History {
	return &History{
		byID:      make(map[uuid.UUID]Transaction),
		cancelled: make(map[uuid.UUID]uuid.UUID),
	}
}

// Save inserts the transaction keyed by its id
func (h *History) Save(tx Transaction) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.byID[tx.ID]; ok {
		return
	}
	h.byID[tx.ID] = tx
	h.order = append(h.order, tx.ID)
}

// See returns all transactions, oldest first. Equal timestamps keep insertion order.
func (h *History) See() []Transaction {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Transaction, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

// Get looks a transaction up by id
func (h *History) Get(id uuid.UUID) (Transaction, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	tx, ok := h.byID[id]
	return tx, ok
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}

// CancelledBy returns the id of the transaction that cancelled id, if any
func (h *History) CancelledBy(id uuid.UUID) (uuid.UUID, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	by, ok := h.cancelled[id]
	return by, ok
}

func (h *History) markCancelled(id, by uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelled[id] = by
}
