package motion

const (
	// OwnershipBidDelay is how many unowned post-step reports a moving body
	// needs before it becomes a candidate.
	OwnershipBidDelay = 50
	// PassesBetweenOwnershipBids is how many candidate passes go by between
	// two bids.
	PassesBetweenOwnershipBids = 30
)

// Ownership is the per-body bidding state. The current simulator ID itself
// lives on the entity.
type Ownership struct {
	candidate    bool
	sinceBid     uint32
	withoutOwner uint32
}

// IsCandidate reports whether the local session wants to bid.
func (o *Ownership) IsCandidate() bool {
	return o.candidate
}

// Bump makes the body a candidate, e.g. after a local user interaction.
func (o *Ownership) Bump() {
	o.candidate = true
}

// Decide runs one synchronization pass of the arbiter and reports whether
// an update should be sent. The candidate flag never survives a pass.
func (o *Ownership) Decide(outOfSync, isOwner bool) bool {
	if !outOfSync {
		o.candidate = false
		return false
	}

	if isOwner {
		o.candidate = false
		return true
	}

	if o.candidate {
		o.candidate = false
		o.sinceBid++
		if o.sinceBid > PassesBetweenOwnershipBids {
			o.sinceBid = 0
			return true
		}
	}
	return false
}

// ObserveStep records one post-step report of a moving body.
func (o *Ownership) ObserveStep(owned bool) {
	if owned {
		o.withoutOwner = 0
		return
	}
	o.withoutOwner++
	if o.withoutOwner > OwnershipBidDelay {
		o.candidate = true
	}
}

// SimulatorChanged resets the hand-off counters after the server announces
// a new owner.
func (o *Ownership) SimulatorChanged() {
	o.withoutOwner = 0
	o.candidate = false
}

// ResetBid starts a fresh bid cycle.
func (o *Ownership) ResetBid() {
	o.sinceBid = 0
}
