package pet

import (
	"time"

	"github.com/google/uuid"
)

// LeasePurpose names the operation holding a pet's lease.
type LeasePurpose string

const (
	PurposeApply     LeasePurpose = "apply"
	PurposeCancel    LeasePurpose = "cancel"
	PurposeApproval  LeasePurpose = "approval"
	PurposeWithdraw  LeasePurpose = "withdraw"
	PurposeReconcile LeasePurpose = "reconcile"
)

// Lease marks a pet as being mutated by one operation. Every operation that
// reads or writes the pet's application set holds it; a lease past ExpiresAt
// is abandoned and may be taken over.
type Lease struct {
	Holder     uuid.UUID    `json:"holder"`
	Purpose    LeasePurpose `json:"purpose"`
	AcquiredAt time.Time    `json:"acquired_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

// Expired reports whether the lease is no longer valid at now.
func (l Lease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Lease returns the current lease, or nil.
func (p *Pet) Lease() *Lease {
	if p.lease == nil {
		return nil
	}
	l := *p.lease
	return &l
}

// TryAcquireLease takes the lease for holder unless another holder owns an
// unexpired one. It reports whether the lease was taken and whether an
// abandoned lease was overridden.
func (p *Pet) TryAcquireLease(holder uuid.UUID, purpose LeasePurpose, now time.Time, ttl time.Duration) (acquired, tookOver bool) {
	if p.lease != nil && p.lease.Holder != holder {
		if !p.lease.Expired(now) {
			return false, false
		}
		tookOver = true
	}
	p.lease = &Lease{
		Holder:     holder,
		Purpose:    purpose,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	p.updatedAt = now
	return true, tookOver
}

// HoldsLease reports whether holder currently owns the lease.
func (p *Pet) HoldsLease(holder uuid.UUID) bool {
	return p.lease != nil && p.lease.Holder == holder
}

// ReleaseLease clears the lease if holder owns it.
func (p *Pet) ReleaseLease(holder uuid.UUID) bool {
	if !p.HoldsLease(holder) {
		return false
	}
	p.lease = nil
	p.updatedAt = time.Now().UTC()
	return true
}
