package service

import (
	"strings"
	"sync"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/observability"
)

// DisclaimerPhrase is what the user must type before the first analysis.
const DisclaimerPhrase = "not legal advice"

// DisclaimerGate buffers the first analysis request of a session until the
// user acknowledges the disclaimer. Once accepted it stays open.
type DisclaimerGate struct {
	resetsOnFullReset bool
	metrics           *observability.Metrics

	mu      sync.Mutex
	state   domain.DisclaimerState
	pending *domain.DocumentType
	input   string
}

// NewDisclaimerGate creates a gate in the idle state. With resetsOnFullReset
// a full workspace reset also withdraws an earlier acceptance.
func NewDisclaimerGate(resetsOnFullReset bool, metrics *observability.Metrics) *DisclaimerGate {
	return &DisclaimerGate{
		resetsOnFullReset: resetsOnFullReset,
		metrics:           metrics,
		state:             domain.DisclaimerIdle,
	}
}

// Request asks to analyze docType. It returns true when the analysis may
// proceed now; otherwise the type is buffered and the gate prompts.
func (g *DisclaimerGate) Request(docType domain.DocumentType) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == domain.DisclaimerAccepted {
		return true
	}
	if g.state != domain.DisclaimerPrompting {
		g.metrics.IncrDisclaimerPrompt()
	}
	g.state = domain.DisclaimerPrompting
	g.pending = &docType
	return false
}

// SetInput replaces the confirmation text typed so far.
func (g *DisclaimerGate) SetInput(text string) {
	g.mu.Lock()
	g.input = text
	g.mu.Unlock()
}

// CanConfirm reports whether the typed text matches the phrase. Case is
// ignored; whitespace is not.
func (g *DisclaimerGate) CanConfirm() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canConfirmLocked()
}

func (g *DisclaimerGate) canConfirmLocked() bool {
	return g.state == domain.DisclaimerPrompting && g.pending != nil && matchesPhrase(g.input)
}

func matchesPhrase(input string) bool {
	return strings.EqualFold(input, DisclaimerPhrase)
}

// Confirm accepts the disclaimer and hands back the buffered document type,
// clearing the buffer and the typed text.
func (g *DisclaimerGate) Confirm() (domain.DocumentType, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != domain.DisclaimerPrompting || g.pending == nil {
		return "", &domain.ErrValidation{Field: "disclaimer", Message: "no analysis is waiting for confirmation"}
	}
	if !matchesPhrase(g.input) {
		return "", &domain.ErrValidation{Field: "disclaimer", Message: `type "not legal advice" to continue`}
	}

	docType := *g.pending
	g.pending = nil
	g.input = ""
	g.state = domain.DisclaimerAccepted
	return docType, nil
}

// Cancel drops the buffered request without accepting.
func (g *DisclaimerGate) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending = nil
	g.input = ""
	if g.state == domain.DisclaimerPrompting {
		g.state = domain.DisclaimerIdle
	}
}

// Reset drops any pending prompt. A full reset also withdraws acceptance
// when the gate was built with resetsOnFullReset.
func (g *DisclaimerGate) Reset(full bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending = nil
	g.input = ""
	switch {
	case g.state == domain.DisclaimerPrompting:
		g.state = domain.DisclaimerIdle
	case full && g.resetsOnFullReset:
		g.state = domain.DisclaimerIdle
	}
}

// Accepted reports whether the gate has been passed this session.
func (g *DisclaimerGate) Accepted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == domain.DisclaimerAccepted
}

// Snapshot returns the gate state for rendering.
func (g *DisclaimerGate) Snapshot() domain.DisclaimerSession {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := domain.DisclaimerSession{
		State:      g.state,
		Accepted:   g.state == domain.DisclaimerAccepted,
		InputText:  g.input,
		CanConfirm: g.canConfirmLocked(),
	}
	if g.pending != nil {
		p := *g.pending
		s.PendingType = &p
	}
	return s
}
