package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"budgetwise/internal/models"
	"budgetwise/internal/recurrence"
	"budgetwise/internal/testutil"
)

func newTestMaterializer(db *gorm.DB) (Materializer, BudgetServicer) {
	budgets := NewBudgetService(db, nil)
	return NewMaterializer(budgets, NewTemplateResolver(db, 6)), budgets
}

func TestMaterialize(t *testing.T) {
	t.Run("existing_budget", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		m, budgets := newTestMaterializer(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, time.March, 2024)
		rent := testutil.CreateTestCategory(t, db, budget.ID, "Rent", models.CategoryTypeExpense)
		tmpl := testutil.CreateTestRecurrent(t, db, user.ID, rent.ID, recurrence.Monthly, testutil.Date(2024, time.January, 1))

		res := m.Materialize(user.ID, tmpl, testutil.Date(2024, time.March, 1))

		if res.TransactionsCreated != 1 || res.BudgetsUpdated != 1 || res.BudgetsCreated != 0 {
			t.Errorf("unexpected result %+v", res)
		}
		got, err := budgets.GetBudgetByID(user.ID, budget.ID)
		testutil.AssertNoError(t, err)
		txn := got.RecurrentTransaction(tmpl.ID)
		if txn == nil {
			t.Fatal("expected materialized transaction")
		}
		if txn.CategoryID != rent.ID || !txn.Amount.Equal(tmpl.Amount) || txn.Description != tmpl.Description {
			t.Errorf("transaction does not mirror template: %+v", txn)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		m, budgets := newTestMaterializer(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, time.March, 2024)
		rent := testutil.CreateTestCategory(t, db, budget.ID, "Rent", models.CategoryTypeExpense)
		tmpl := testutil.CreateTestRecurrent(t, db, user.ID, rent.ID, recurrence.Monthly, testutil.Date(2024, time.January, 1))
		target := testutil.Date(2024, time.March, 1)

		m.Materialize(user.ID, tmpl, target)
		res := m.Materialize(user.ID, tmpl, target)

		if res.TransactionsCreated != 0 {
			t.Errorf("second run created %d transactions", res.TransactionsCreated)
		}
		if len(res.Warnings) != 1 {
			t.Errorf("expected one duplicate warning, got %v", res.Warnings)
		}
		got, _ := budgets.GetBudgetByID(user.ID, budget.ID)
		if len(got.Transactions) != 1 {
			t.Errorf("expected exactly one transaction, got %d", len(got.Transactions))
		}
	})

	t.Run("no_template_budget", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		m, _ := newTestMaterializer(db)
		user := testutil.CreateTestUser(t, db)
		tmpl := testutil.CreateTestRecurrent(t, db, user.ID, models.NewID(), recurrence.Monthly, testutil.Date(2024, time.January, 1))

		res := m.Materialize(user.ID, tmpl, testutil.Date(2024, time.March, 1))

		if res.TransactionsCreated != 0 || res.BudgetsCreated != 0 || res.BudgetsUpdated != 0 {
			t.Errorf("expected zero counts, got %+v", res)
		}
		if len(res.Warnings) != 1 {
			t.Errorf("expected one warning, got %v", res.Warnings)
		}
	})

	t.Run("category_resolved_by_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		m, budgets := newTestMaterializer(db)
		user := testutil.CreateTestUser(t, db)
		jan := testutil.CreateTestBudget(t, db, user.ID, time.January, 2024)
		rent := testutil.CreateTestCategory(t, db, jan.ID, "Rent", models.CategoryTypeExpense)
		testutil.CreateTestCategory(t, db, jan.ID, "Rent", models.CategoryTypeIncome)
		tmpl := testutil.CreateTestRecurrent(t, db, user.ID, rent.ID, recurrence.Monthly, testutil.Date(2024, time.January, 1))

		res := m.Materialize(user.ID, tmpl, testutil.Date(2024, time.February, 1))

		if res.BudgetsCreated != 1 || res.TransactionsCreated != 1 {
			t.Fatalf("unexpected result %+v", res)
		}
		feb, err := budgets.GetBudgetByMonth(user.ID, 2, 2024)
		testutil.AssertNoError(t, err)
		txn := feb.RecurrentTransaction(tmpl.ID)
		if txn == nil {
			t.Fatal("expected transaction in February")
		}
		cat := feb.FindCategory(txn.CategoryID)
		if cat == nil || cat.Name != "Rent" || cat.Type != models.CategoryTypeExpense {
			t.Fatalf("expected the cloned expense Rent category, got %+v", cat)
		}
		if cat.ID == rent.ID {
			t.Error("expected the new budget's category id, not the template's")
		}
	})

	t.Run("unresolvable_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		m, budgets := newTestMaterializer(db)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, time.March, 2024)
		tmpl := testutil.CreateTestRecurrent(t, db, user.ID, models.NewID(), recurrence.Monthly, testutil.Date(2024, time.January, 1))

		res := m.Materialize(user.ID, tmpl, testutil.Date(2024, time.March, 1))

		if res.TransactionsCreated != 0 || len(res.Warnings) != 1 {
			t.Errorf("unexpected result %+v", res)
		}
		got, _ := budgets.GetBudgetByID(user.ID, budget.ID)
		if len(got.Transactions) != 0 {
			t.Errorf("expected no transactions, got %d", len(got.Transactions))
		}
	})
}
