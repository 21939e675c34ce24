// Package classify assigns categories, transaction types and credit card
// billing months to normalized transactions.
package classify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cashboard/cashboard/internal/model"
	"github.com/cashboard/cashboard/internal/service"
)

// Ruleset is an immutable snapshot of the classification configuration,
// loaded once per ingestion batch and passed explicitly so batches never
// share mutable state.
type Ruleset struct {
	BillingDays   map[int64]int
	Rules         []model.ClassificationRule
	FixedExpenses []model.FixedObligation
	FixedIncomes  []model.FixedObligation
}

// LoadRuleset reads the classification configuration from storage. Rules are
// stable-sorted so exact matches take priority over starts_with, and
// starts_with over contains; storage order is preserved within a tier.
func LoadRuleset(ctx context.Context, store service.Storage) (*Ruleset, error) {
	rules, err := store.GetClassificationRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load classification rules: %w", err)
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].MatchType.Priority() < rules[j].MatchType.Priority()
	})

	fixedExpenses, err := store.GetFixedObligations(ctx, model.ObligationExpense)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixed expenses: %w", err)
	}

	fixedIncomes, err := store.GetFixedObligations(ctx, model.ObligationIncome)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixed incomes: %w", err)
	}

	billingDays, err := store.GetBillingDays(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load billing days: %w", err)
	}

	return &Ruleset{
		Rules:         rules,
		FixedExpenses: fixedExpenses,
		FixedIncomes:  fixedIncomes,
		BillingDays:   billingDays,
	}, nil
}

// Classify assigns category, transaction type and charged month in place.
//
// Category and transaction type are independent axes: the category comes
// from classification rules, the type from fixed-obligation keywords (with
// fixed expenses checked before fixed incomes), falling back to
// variable_expense only when a rule matched and no fixed keyword did.
func (r *Ruleset) Classify(txn *model.Transaction) error {
	description := ""
	if txn.Description != nil {
		description = *txn.Description
	}

	if strings.TrimSpace(description) == "" {
		uncategorized := model.UncategorizedCategoryID
		txn.CategoryID = &uncategorized
		txn.Type = nil
		return r.applyBillingDay(txn)
	}

	ruleMatched := false
	for _, rule := range r.Rules {
		if matchesKeyword(description, rule.Keyword, rule.MatchType) {
			categoryID := rule.CategoryID
			txn.CategoryID = &categoryID
			ruleMatched = true
			break
		}
	}
	if !ruleMatched {
		uncategorized := model.UncategorizedCategoryID
		txn.CategoryID = &uncategorized
	}

	// Fixed-obligation keywords outrank the rule-derived label; fixed
	// expenses are checked first and win ties with fixed incomes.
	fixedMatched := false
	for _, ob := range r.FixedExpenses {
		if ob.Keyword != nil && containsFold(description, *ob.Keyword) {
			t := model.TypeFixedExpense
			txn.Type = &t
			fixedMatched = true
			break
		}
	}
	if !fixedMatched {
		for _, ob := range r.FixedIncomes {
			if ob.Keyword != nil && containsFold(description, *ob.Keyword) {
				t := model.TypeIncome
				txn.Type = &t
				fixedMatched = true
				break
			}
		}
	}
	if !fixedMatched {
		if ruleMatched {
			t := model.TypeVariableExpense
			txn.Type = &t
		} else {
			txn.Type = nil
		}
	}

	return r.applyBillingDay(txn)
}

// applyBillingDay computes the billing month for credit card transactions.
// A charge on or before the card's billing day belongs to the current month;
// later charges roll into the next month (January of the following year for
// December).
func (r *Ruleset) applyBillingDay(txn *model.Transaction) error {
	txn.ChargedMonth = nil

	if txn.SourceType != model.SourceCreditCard {
		return nil
	}
	billingDay, ok := r.BillingDays[txn.SourceID]
	if !ok {
		return nil
	}
	if txn.Date == nil {
		return nil
	}

	date, err := time.Parse("2006-01-02", *txn.Date)
	if err != nil {
		return fmt.Errorf("failed to parse transaction date %q: %w", *txn.Date, err)
	}

	charged := date
	if date.Day() > billingDay {
		charged = time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	}

	month := charged.Format("2006-01")
	txn.ChargedMonth = &month
	return nil
}

// matchesKeyword reports whether a description matches a rule keyword.
// Matching is case-insensitive via simple lowercase folding; Unicode
// normalization is intentionally not applied.
func matchesKeyword(description, keyword string, matchType model.MatchType) bool {
	desc := strings.ToLower(description)
	kw := strings.ToLower(keyword)

	switch matchType {
	case model.MatchExact:
		return desc == kw
	case model.MatchStartsWith:
		return strings.HasPrefix(desc, kw)
	default:
		return strings.Contains(desc, kw)
	}
}

func containsFold(description, keyword string) bool {
	return strings.Contains(strings.ToLower(description), strings.ToLower(keyword))
}
