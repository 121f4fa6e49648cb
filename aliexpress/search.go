package aliexpress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/use-agent/aliscout/dom"
	"github.com/use-agent/aliscout/models"
)

// SubmitStrategy is one way of submitting the search form.
type SubmitStrategy interface {
	Name() string

	// Submit reports applied=false when the strategy has nothing to act on,
	// so the next strategy should be tried.
	Submit(ctx context.Context, doc dom.Document, input dom.Element) (applied bool, err error)
}

// SelectorChain clicks the first element matched by the selectors, tried in order.
type SelectorChain struct {
	Selectors []string
}

func (s SelectorChain) Name() string { return "selector_chain" }

func (s SelectorChain) Submit(ctx context.Context, doc dom.Document, _ dom.Element) (bool, error) {
	for _, sel := range s.Selectors {
		btn, ok, err := doc.Query(ctx, sel)
		if err != nil {
			return false, fmt.Errorf("query %q: %w", sel, err)
		}
		if !ok {
			continue
		}
		slog.Debug("search button found", "selector", sel)
		return true, btn.Click(ctx)
	}
	return false, nil
}

// ParentButton clicks a generic button next to the input.
type ParentButton struct {
	Selector string
}

func (s ParentButton) Name() string { return "parent_button" }

func (s ParentButton) Submit(ctx context.Context, _ dom.Document, input dom.Element) (bool, error) {
	parent, ok, err := input.Parent(ctx)
	if err != nil || !ok {
		return false, err
	}
	btn, ok, err := parent.Query(ctx, s.Selector)
	if err != nil || !ok {
		return false, err
	}
	return true, btn.Click(ctx)
}

// FormSubmit submits the input's owning form.
type FormSubmit struct{}

func (FormSubmit) Name() string { return "form_submit" }

func (FormSubmit) Submit(ctx context.Context, _ dom.Document, input dom.Element) (bool, error) {
	return input.SubmitForm(ctx)
}

// EnterKey emulates pressing Enter in the input. It always applies.
type EnterKey struct{}

func (EnterKey) Name() string { return "enter_key" }

func (EnterKey) Submit(ctx context.Context, _ dom.Document, input dom.Element) (bool, error) {
	return true, input.PressEnter(ctx)
}

// DefaultSubmitStrategies returns the submission fallbacks in priority order.
func DefaultSubmitStrategies() []SubmitStrategy {
	return []SubmitStrategy{
		SelectorChain{Selectors: SubmitButtonSelectors},
		ParentButton{Selector: SelectorParentButton},
		FormSubmit{},
		EnterKey{},
	}
}

// SearchDriver types a keyword into the site search box and submits it.
type SearchDriver struct {
	InputSelectors []string
	Strategies     []SubmitStrategy
}

// NewSearchDriver returns a driver with the site's selectors and the
// default submission fallbacks.
func NewSearchDriver() *SearchDriver {
	return &SearchDriver{
		InputSelectors: SearchInputSelectors,
		Strategies:     DefaultSubmitStrategies(),
	}
}

// Search fills the search box with keyword and submits it.
//
// A blank keyword fails with a validation error before the document is
// touched. A missing search box fails with a not-found error. Otherwise
// the run is marked as starting and the submit strategies are tried in
// order until one applies; a strategy that errors is logged and skipped.
// It returns true once a strategy has executed.
func (d *SearchDriver) Search(ctx context.Context, run *Run, doc dom.Document, keyword string) (bool, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return false, models.NewScrapeError(models.ErrCodeValidation, "search keyword is required", nil)
	}

	input, err := d.findInput(ctx, doc)
	if err != nil {
		slog.Error("search input not found", "selectors", d.InputSelectors, "error", err)
		return false, err
	}

	if err := input.SetValue(ctx, keyword); err != nil {
		return false, categorizeError(err, "failed to type search keyword")
	}

	if run != nil {
		run.SetStep(StepStarting)
	}
	if store, ok := doc.(dom.Storage); ok {
		if err := store.SetItem(ctx, AutomationStepKey, StepStarting); err != nil {
			slog.Warn("failed to write automation marker", "error", err)
		}
	}

	var errs []error
	for _, s := range d.Strategies {
		applied, err := s.Submit(ctx, doc, input)
		if err != nil {
			slog.Warn("search submit strategy failed", "strategy", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if applied {
			slog.Info("search submitted", "strategy", s.Name(), "keyword", keyword)
			return true, nil
		}
	}
	return false, models.NewScrapeError(models.ErrCodeNavigation,
		"every search submit strategy failed", errors.Join(errs...))
}

func (d *SearchDriver) findInput(ctx context.Context, doc dom.Document) (dom.Element, error) {
	for _, sel := range d.InputSelectors {
		el, ok, err := doc.Query(ctx, sel)
		if err != nil {
			return nil, categorizeError(err, "failed to query search input")
		}
		if ok {
			return el, nil
		}
	}
	return nil, models.NewScrapeError(models.ErrCodeNotFound, "search box not found (id=search-words)", nil)
}

// categorizeError wraps raw errors into typed ScrapeErrors.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
