package account

import (
	"context"
	"fmt"
	"sync"
)

// MemberNumberSource reports the highest member number already issued.
type MemberNumberSource interface {
	MaxMemberNumber(ctx context.Context) (uint32, bool, error)
}

// Allocator issues member numbers. A number is consumed only when the insert
// that uses it succeeds, so failed inserts leave no gaps.
type Allocator struct {
	mu   sync.Mutex
	next uint32
}

// NewAllocator starts issuing at next.
func NewAllocator(next uint32) *Allocator {
	if next == 0 {
		next = 1
	}
	return &Allocator{next: next}
}

// BootstrapAllocator starts one past the highest stored member number, or at 1.
func BootstrapAllocator(ctx context.Context, src MemberNumberSource) (*Allocator, error) {
	highest, ok, err := src.MaxMemberNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap member number: %w", err)
	}
	if !ok {
		return NewAllocator(1), nil
	}
	return NewAllocator(highest + 1), nil
}

// Allocate holds the lock across insert. insert receives the candidate number;
// the counter advances only if it returns nil.
func (a *Allocator) Allocate(insert func(n uint32) error) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.next
	if err := insert(n); err != nil {
		return 0, err
	}
	a.next++
	return n, nil
}

// Next returns the number the next successful allocation will use.
func (a *Allocator) Next() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}
