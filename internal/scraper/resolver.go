package scraper

import (
	"errors"
	"strings"

	"github.com/openintern/backend/internal/domain"
)

// Resolve returns the first visible, non-empty match of chain within scope,
// trying locators in order. An absent Field is the normal "unknown" outcome.
// The only error is domain.ErrStaleReference when scope itself is gone; a
// stale match just disqualifies its locator.
func Resolve(scope Element, chain Chain) (domain.Field, error) {
	for _, loc := range chain {
		els, err := scope.Find(loc)
		if err != nil {
			if errors.Is(err, domain.ErrStaleReference) {
				return domain.Field{}, err
			}
			continue
		}

		for _, el := range els {
			v, ok := readElement(el, loc)
			if ok {
				return domain.Found(v), nil
			}
		}
	}
	return domain.Field{}, nil
}

// FindFirst returns the elements of the first locator that matches anything
func FindFirst(scope Element, chain Chain) ([]Element, Locator, error) {
	for _, loc := range chain {
		els, err := scope.Find(loc)
		if err != nil {
			if errors.Is(err, domain.ErrStaleReference) {
				return nil, Locator{}, err
			}
			continue
		}
		if len(els) > 0 {
			return els, loc, nil
		}
	}
	return nil, Locator{}, nil
}

// readElement yields the element's value when it is usable
func readElement(el Element, loc Locator) (string, bool) {
	visible, err := el.Visible()
	if err != nil || !visible {
		return "", false
	}

	var v string
	if loc.Attr != "" {
		attr, ok, err := el.Attr(loc.Attr)
		if err != nil || !ok {
			return "", false
		}
		v = CleanText(attr)
	} else {
		text, err := el.Text()
		if err != nil {
			return "", false
		}
		v = text
	}

	v = strings.TrimSpace(v)
	return v, v != ""
}
