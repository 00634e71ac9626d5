package service

import (
	"sync"
	"time"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/port"

	"go.uber.org/zap"
)

// AffiliateRotation cycles through promotional offers while any analysis is
// loading. It owns at most one ticker goroutine.
type AffiliateRotation struct {
	catalog  port.OfferCatalog
	interval time.Duration
	onChange func()
	logger   *zap.Logger

	mu      sync.Mutex
	offers  []domain.Offer
	index   int
	current *domain.Offer
	stop    chan struct{}
	done    chan struct{}
}

// NewAffiliateRotation creates a stopped rotation. onChange runs after every
// offer switch.
func NewAffiliateRotation(catalog port.OfferCatalog, interval time.Duration, onChange func(), logger *zap.Logger) *AffiliateRotation {
	if interval <= 0 {
		interval = 4 * time.Second
	}
	return &AffiliateRotation{
		catalog:  catalog,
		interval: interval,
		onChange: onChange,
		logger:   logger,
	}
}

// Sync starts the rotation when anyLoading turns true and stops it when it
// turns false. Calls that do not change the running state are no-ops.
func (r *AffiliateRotation) Sync(anyLoading bool, docType domain.DocumentType) {
	if !anyLoading {
		r.Stop()
		return
	}

	r.mu.Lock()
	if r.stop != nil {
		r.mu.Unlock()
		return
	}
	offers := r.catalog.OffersFor(docType)
	if len(offers) == 0 {
		r.mu.Unlock()
		return
	}
	r.offers = offers
	r.index = 0
	first := offers[0]
	r.current = &first
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.run(r.stop, r.done)
	r.mu.Unlock()

	r.logger.Debug("affiliate rotation started",
		zap.String("document_type", string(docType)),
		zap.Int("offers", len(offers)),
	)
	r.changed()
}

func (r *AffiliateRotation) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.advance()
		}
	}
}

func (r *AffiliateRotation) advance() {
	r.mu.Lock()
	if r.stop == nil || len(r.offers) == 0 {
		r.mu.Unlock()
		return
	}
	r.index = (r.index + 1) % len(r.offers)
	next := r.offers[r.index]
	r.current = &next
	r.mu.Unlock()
	r.changed()
}

// Stop halts the ticker and waits for its goroutine to exit. Idempotent.
func (r *AffiliateRotation) Stop() {
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	wasRunning := stop != nil
	r.current = nil
	r.index = 0
	r.offers = nil
	r.mu.Unlock()

	if !wasRunning {
		return
	}
	close(stop)
	<-done
	r.changed()
}

// Running reports whether the ticker is active.
func (r *AffiliateRotation) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

// Snapshot returns the displayed offer.
func (r *AffiliateRotation) Snapshot() domain.AffiliateRotationState {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := domain.AffiliateRotationState{OfferIndex: r.index, Running: r.stop != nil}
	if r.current != nil {
		o := *r.current
		st.CurrentOffer = &o
	}
	return st
}

func (r *AffiliateRotation) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}
