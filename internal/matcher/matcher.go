// Package matcher reconciles a scanned product against the open items of a
// shopping list.
package matcher

import (
	"strings"

	"github.com/franckalain/grocerylens/internal/models"
)

// Rule names the matching rule that selected an item.
type Rule string

const (
	RuleNone     Rule = ""
	RuleExact    Rule = "exact"
	RuleContains Rule = "contains"
	RuleBrand    Rule = "brand"
)

// Result is the outcome of reconciling one scan.
type Result struct {
	// Item is a copy of the item that was checked off, nil when nothing matched.
	Item *models.ShoppingListItem
	Rule Rule
	// ListComplete is set when this scan checked off the last open item.
	ListComplete bool
}

// Matched reports whether an item was checked off.
func (r Result) Matched() bool { return r.Item != nil }

// FindMatch returns the index of the first unchecked item, in list order, that
// the product matches under any rule, or -1. The rule reported is the first one
// that item satisfies.
func FindMatch(product *models.ProductRecord, items []models.ShoppingListItem) (int, Rule) {
	if product == nil {
		return -1, RuleNone
	}
	name := models.NormalizeName(product.Name)
	brand := models.NormalizeName(product.Brand)

	for i, it := range items {
		if it.Checked {
			continue
		}
		item := models.NormalizeName(it.Name)
		switch {
		case name != "" && item == name:
			return i, RuleExact
		case containsEither(item, name):
			return i, RuleContains
		case containsEither(item, brand):
			return i, RuleBrand
		}
	}
	return -1, RuleNone
}

// Match checks off at most one item of list for product and recomputes the
// list's counts. A nil list or no match leaves the list untouched.
func Match(product *models.ProductRecord, list *models.ShoppingList) Result {
	if list == nil {
		return Result{}
	}
	i, rule := FindMatch(product, list.Items)
	if i < 0 {
		return Result{}
	}
	list.Items[i].Checked = true
	list.Recount()

	item := list.Items[i]
	return Result{
		Item:         &item,
		Rule:         rule,
		ListComplete: list.Complete(),
	}
}

// containsEither reports substring containment in either direction. Empty
// strings never match; otherwise every name would contain them.
func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
