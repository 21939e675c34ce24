package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cashboard/cashboard/internal/common"
	"github.com/cashboard/cashboard/internal/model"
)

// GetClassificationRules returns all classification rules in storage order.
// Priority sorting is the classification engine's concern, not the store's.
func (s *SQLiteStorage) GetClassificationRules(ctx context.Context) ([]model.ClassificationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getClassificationRulesTx(ctx, s.db)
}

func (s *SQLiteStorage) getClassificationRulesTx(ctx context.Context, q queryable) ([]model.ClassificationRule, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, category_id, keyword, match_type
		FROM classification_rules
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classification rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.ClassificationRule
	for rows.Next() {
		var rule model.ClassificationRule
		var matchType string
		if err := rows.Scan(&rule.ID, &rule.CategoryID, &rule.Keyword, &matchType); err != nil {
			return nil, fmt.Errorf("failed to scan classification rule: %w", err)
		}
		rule.MatchType = model.MatchType(matchType)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// CreateClassificationRule inserts a rule and returns its id.
func (s *SQLiteStorage) CreateClassificationRule(ctx context.Context, rule *model.ClassificationRule) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateRule(rule); err != nil {
		return 0, err
	}
	return s.createClassificationRuleTx(ctx, s.db, rule)
}

func (s *SQLiteStorage) createClassificationRuleTx(ctx context.Context, q queryable, rule *model.ClassificationRule) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO classification_rules (category_id, keyword, match_type)
		VALUES (?, ?, ?)
	`, rule.CategoryID, rule.Keyword, string(rule.MatchType))
	if err != nil {
		return 0, fmt.Errorf("failed to insert classification rule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get rule id: %w", err)
	}
	return id, nil
}

// DeleteClassificationRule removes a rule by id.
func (s *SQLiteStorage) DeleteClassificationRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.deleteClassificationRuleTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteClassificationRuleTx(ctx context.Context, q queryable, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM classification_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete classification rule %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("classification rule %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// GetFixedObligations returns the fixed expenses or incomes that carry a
// keyword, in storage order. Entries without a keyword never participate in
// transaction-type matching and are filtered out here.
func (s *SQLiteStorage) GetFixedObligations(ctx context.Context, kind model.ObligationKind) ([]model.FixedObligation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getFixedObligationsTx(ctx, s.db, kind)
}

func (s *SQLiteStorage) getFixedObligationsTx(ctx context.Context, q queryable, kind model.ObligationKind) ([]model.FixedObligation, error) {
	table, err := obligationTable(kind)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, name, expected_amount, keyword
		FROM `+table+`
		WHERE keyword IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var obligations []model.FixedObligation
	for rows.Next() {
		var ob model.FixedObligation
		var keyword sql.NullString
		if err := rows.Scan(&ob.ID, &ob.Name, &ob.ExpectedAmount, &keyword); err != nil {
			return nil, fmt.Errorf("failed to scan fixed obligation: %w", err)
		}
		ob.Kind = kind
		ob.Keyword = nullableString(keyword)
		obligations = append(obligations, ob)
	}
	return obligations, rows.Err()
}

// CreateFixedObligation inserts a fixed expense or income and returns its id.
func (s *SQLiteStorage) CreateFixedObligation(ctx context.Context, ob *model.FixedObligation) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if ob == nil {
		return 0, fmt.Errorf("%w: obligation", ErrNilParameter)
	}
	table, err := obligationTable(ob.Kind)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO `+table+` (name, expected_amount, keyword) VALUES (?, ?, ?)
	`, ob.Name, ob.ExpectedAmount, ob.Keyword)
	if err != nil {
		return 0, fmt.Errorf("failed to insert fixed obligation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get obligation id: %w", err)
	}
	return id, nil
}

func obligationTable(kind model.ObligationKind) (string, error) {
	switch kind {
	case model.ObligationExpense:
		return "fixed_expenses", nil
	case model.ObligationIncome:
		return "fixed_incomes", nil
	default:
		return "", fmt.Errorf("unknown obligation kind %q", kind)
	}
}

// GetBillingDays returns configured billing days keyed by credit card id.
// Cards without a billing day are absent from the map.
func (s *SQLiteStorage) GetBillingDays(ctx context.Context) (map[int64]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getBillingDaysTx(ctx, s.db)
}

func (s *SQLiteStorage) getBillingDaysTx(ctx context.Context, q queryable) (map[int64]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, billing_day FROM credit_cards WHERE billing_day IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query billing days: %w", err)
	}
	defer func() { _ = rows.Close() }()

	billingDays := make(map[int64]int)
	for rows.Next() {
		var id int64
		var day int
		if err := rows.Scan(&id, &day); err != nil {
			return nil, fmt.Errorf("failed to scan billing day: %w", err)
		}
		billingDays[id] = day
	}
	return billingDays, rows.Err()
}

// GetCategories returns all categories.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategoriesTx(ctx, s.db)
}

func (s *SQLiteStorage) getCategoriesTx(ctx context.Context, q queryable) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, monthly_budget, icon, color
		FROM categories
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, *category)
	}
	return categories, rows.Err()
}

// GetCategoryByID returns a category by id, or common.ErrNotFound.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategoryByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getCategoryByIDTx(ctx context.Context, q queryable, id int64) (*model.Category, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, monthly_budget, icon, color
		FROM categories
		WHERE id = ?
	`, id)

	category, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}
	return category, nil
}

// CreateCategory inserts a category and returns its id.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, category *model.Category) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateCategory(category); err != nil {
		return 0, err
	}
	return s.createCategoryTx(ctx, s.db, category)
}

func (s *SQLiteStorage) createCategoryTx(ctx context.Context, q queryable, category *model.Category) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO categories (name, monthly_budget, icon, color)
		VALUES (?, ?, ?, ?)
	`, category.Name, category.MonthlyBudget, category.Icon, category.Color)
	if err != nil {
		return 0, fmt.Errorf("failed to insert category: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get category id: %w", err)
	}
	return id, nil
}

// UpdateCategory updates a category's fields by id.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return err
	}
	return s.updateCategoryTx(ctx, s.db, category)
}

func (s *SQLiteStorage) updateCategoryTx(ctx context.Context, q queryable, category *model.Category) error {
	res, err := q.ExecContext(ctx, `
		UPDATE categories SET name = ?, monthly_budget = ?, icon = ?, color = ?
		WHERE id = ?
	`, category.Name, category.MonthlyBudget, category.Icon, category.Color, category.ID)
	if err != nil {
		return fmt.Errorf("failed to update category %d: %w", category.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("category %d: %w", category.ID, common.ErrCategoryNotFound)
	}
	return nil
}

// DeleteCategory removes a category. The reserved uncategorized category
// cannot be deleted.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.deleteCategoryTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteCategoryTx(ctx context.Context, q queryable, id int64) error {
	if id == model.UncategorizedCategoryID {
		return fmt.Errorf("%w: the uncategorized category is reserved", ErrInvalidCategory)
	}

	// Transactions fall back to Uncategorized and the category's rules go
	// with it, otherwise the foreign keys block the delete.
	if _, err := q.ExecContext(ctx, `
		UPDATE transactions SET category_id = ? WHERE category_id = ?
	`, model.UncategorizedCategoryID, id); err != nil {
		return fmt.Errorf("failed to reassign transactions for category %d: %w", id, err)
	}
	if _, err := q.ExecContext(ctx, `
		DELETE FROM classification_rules WHERE category_id = ?
	`, id); err != nil {
		return fmt.Errorf("failed to delete rules for category %d: %w", id, err)
	}

	res, err := q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("category %d: %w", id, common.ErrCategoryNotFound)
	}
	return nil
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var category model.Category
	var budget sql.NullFloat64
	var icon, color sql.NullString
	err := row.Scan(&category.ID, &category.Name, &budget, &icon, &color)
	if err != nil {
		return nil, err
	}
	if budget.Valid {
		category.MonthlyBudget = &budget.Float64
	}
	category.Icon = nullableString(icon)
	category.Color = nullableString(color)
	return &category, nil
}
