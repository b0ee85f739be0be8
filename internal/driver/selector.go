package driver

import (
	"context"
	_ "embed"
	"sync"

	"github.com/go-rod/rod"

	"simplepage/internal/errs"
)

//go:embed helper.js
var helperJS string

// RodSelectorEngine registers the shadow-DOM-aware selector backdoor for
// one page by injecting helper.js on the first Register call, and treats
// later calls on the same instance as success. Each page gets its own
// instance, so the injection happens once per page, not once per process.
type RodSelectorEngine struct {
	mu       sync.Mutex
	page     *rod.Page
	injected bool
}

func NewRodSelectorEngine(page *rod.Page) *RodSelectorEngine {
	return &RodSelectorEngine{page: page}
}

func (s *RodSelectorEngine) Register(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.injected {
		return nil // idempotent: already-registered is success, not an error.
	}

	if _, err := s.page.Context(ctx).Eval(helperJS); err != nil {
		return errs.Wrap(errs.Internal, err, "inject selector engine helper script")
	}
	s.injected = true
	return nil
}
