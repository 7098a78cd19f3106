package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budgetwise/internal/cache"
	"budgetwise/internal/models"
	"budgetwise/internal/pagination"
	"budgetwise/internal/testutil"
)

func TestCreateMonthlyBudget(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		user := testutil.CreateTestUser(t, db)

		budget, err := svc.CreateMonthlyBudget(user.ID, CreateBudgetInput{
			Month:       3,
			Year:        2024,
			TotalIncome: decimal.NewFromInt(4000),
			Categories: []CategoryInput{
				{Name: "Rent", Type: models.CategoryTypeExpense, BudgetAmount: decimal.NewFromInt(1500)},
				{Name: "Salary", Type: models.CategoryTypeIncome, BudgetAmount: decimal.NewFromInt(4000)},
			},
		})
		testutil.AssertNoError(t, err)

		if budget.ID == "" {
			t.Fatal("expected budget ID to be set")
		}
		if budget.Name != "March 2024" {
			t.Errorf("expected default name March 2024, got %s", budget.Name)
		}
		if len(budget.Categories) != 2 {
			t.Fatalf("expected 2 categories, got %d", len(budget.Categories))
		}
		for _, c := range budget.Categories {
			if c.ID == "" || c.BudgetID != budget.ID {
				t.Errorf("category %s not attached to budget", c.Name)
			}
		}
	})

	t.Run("duplicate_month", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestBudget(t, db, user.ID, time.March, 2024)

		_, err := svc.CreateMonthlyBudget(user.ID, CreateBudgetInput{Month: 3, Year: 2024})
		testutil.AssertAppError(t, err, "DUPLICATE_BUDGET")
	})

	t.Run("same_month_other_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		user1 := testutil.CreateTestUser(t, db)
		user2 := testutil.CreateTestUser(t, db)
		testutil.CreateTestBudget(t, db, user1.ID, time.March, 2024)

		_, err := svc.CreateMonthlyBudget(user2.ID, CreateBudgetInput{Month: 3, Year: 2024})
		testutil.AssertNoError(t, err)
	})

	t.Run("invalid_month", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateMonthlyBudget(user.ID, CreateBudgetInput{Month: 13, Year: 2024})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("invalid_category_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateMonthlyBudget(user.ID, CreateBudgetInput{
			Month:      1,
			Year:       2024,
			Categories: []CategoryInput{{Name: "Odd", Type: "transfer"}},
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestGetUserBudgets(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewBudgetService(db, nil)
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)

	testutil.CreateTestBudget(t, db, user.ID, time.January, 2024)
	testutil.CreateTestBudget(t, db, user.ID, time.February, 2024)
	testutil.CreateTestBudget(t, db, user.ID, time.December, 2023)
	testutil.CreateTestBudget(t, db, other.ID, time.January, 2024)

	result, err := svc.GetUserBudgets(user.ID, pagination.PageRequest{Page: 1, PageSize: 2})
	testutil.AssertNoError(t, err)

	if result.TotalItems != 3 {
		t.Errorf("expected 3 total items, got %d", result.TotalItems)
	}
	if len(result.Data) != 2 {
		t.Fatalf("expected 2 items on the first page, got %d", len(result.Data))
	}
	if result.Data[0].Month != 2 || result.Data[1].Month != 1 {
		t.Errorf("expected newest first, got %d then %d", result.Data[0].Month, result.Data[1].Month)
	}
}

func TestGetBudgetByID(t *testing.T) {
	t.Run("with_children", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, time.May, 2024)
		cat := testutil.CreateTestCategory(t, db, budget.ID, "Food", models.CategoryTypeExpense)
		testutil.CreateTestTransaction(t, db, budget, cat.ID, models.TransactionTypeExpense, 40)

		got, err := svc.GetBudgetByID(user.ID, budget.ID)
		testutil.AssertNoError(t, err)

		if len(got.Categories) != 1 || len(got.Transactions) != 1 {
			t.Errorf("expected 1 category and 1 transaction, got %d and %d", len(got.Categories), len(got.Transactions))
		}
	})

	t.Run("wrong_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		owner := testutil.CreateTestUser(t, db)
		intruder := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, owner.ID, time.May, 2024)

		_, err := svc.GetBudgetByID(intruder.ID, budget.ID)
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}

func TestGetBudgetByMonth(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewBudgetService(db, nil)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, user.ID, time.June, 2024)

	got, err := svc.GetBudgetByMonth(user.ID, 6, 2024)
	testutil.AssertNoError(t, err)
	if got.ID != budget.ID {
		t.Errorf("expected budget %s, got %s", budget.ID, got.ID)
	}

	_, err = svc.GetBudgetByMonth(user.ID, 7, 2024)
	testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
}

func TestUpdateMonthlyBudget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewBudgetService(db, nil)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, user.ID, time.June, 2024)

	name := "Summer"
	income := decimal.RequireFromString("5250.50")
	updated, err := svc.UpdateMonthlyBudget(user.ID, budget.ID, BudgetUpdate{Name: &name, TotalIncome: &income})
	testutil.AssertNoError(t, err)

	if updated.Name != "Summer" {
		t.Errorf("expected name Summer, got %s", updated.Name)
	}
	if !updated.TotalIncome.Equal(income) {
		t.Errorf("expected total income %s, got %s", income, updated.TotalIncome)
	}

	empty := "  "
	_, err = svc.UpdateMonthlyBudget(user.ID, budget.ID, BudgetUpdate{Name: &empty})
	testutil.AssertAppError(t, err, "INVALID_INPUT")
}

func TestDeleteBudget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewBudgetService(db, nil)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, user.ID, time.June, 2024)
	cat := testutil.CreateTestCategory(t, db, budget.ID, "Food", models.CategoryTypeExpense)
	testutil.CreateTestTransaction(t, db, budget, cat.ID, models.TransactionTypeExpense, 40)

	testutil.AssertNoError(t, svc.DeleteBudget(user.ID, budget.ID))

	var categories, transactions int64
	db.Unscoped().Model(&models.Category{}).Where("budget_id = ?", budget.ID).Count(&categories)
	db.Unscoped().Model(&models.Transaction{}).Where("budget_id = ?", budget.ID).Count(&transactions)
	if categories != 0 || transactions != 0 {
		t.Errorf("expected children removed, found %d categories and %d transactions", categories, transactions)
	}

	// The month is free again.
	_, err := svc.CreateMonthlyBudget(user.ID, CreateBudgetInput{Month: 6, Year: 2024})
	testutil.AssertNoError(t, err)
}

func TestCategoryOperations(t *testing.T) {
	t.Run("add_update_delete", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, time.June, 2024)

		cat, err := svc.AddCategory(user.ID, budget.ID, CategoryInput{Name: "Fun", Type: models.CategoryTypeExpense, BudgetAmount: decimal.NewFromInt(100)})
		testutil.AssertNoError(t, err)

		amount := decimal.NewFromInt(150)
		updated, err := svc.UpdateCategory(user.ID, budget.ID, cat.ID, CategoryUpdate{BudgetAmount: &amount})
		testutil.AssertNoError(t, err)
		if !updated.BudgetAmount.Equal(amount) {
			t.Errorf("expected budget amount 150, got %s", updated.BudgetAmount)
		}

		testutil.AssertNoError(t, svc.DeleteCategory(user.ID, budget.ID, cat.ID))
		err = svc.DeleteCategory(user.ID, budget.ID, cat.ID)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})

	t.Run("delete_in_use", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, time.June, 2024)
		cat := testutil.CreateTestCategory(t, db, budget.ID, "Food", models.CategoryTypeExpense)
		testutil.CreateTestTransaction(t, db, budget, cat.ID, models.TransactionTypeExpense, 40)

		err := svc.DeleteCategory(user.ID, budget.ID, cat.ID)
		testutil.AssertAppError(t, err, "CATEGORY_IN_USE")
	})
}

func TestAddTransaction(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, time.June, 2024)
		cat := testutil.CreateTestCategory(t, db, budget.ID, "Food", models.CategoryTypeExpense)

		txn, err := svc.AddTransaction(user.ID, budget.ID, TransactionInput{
			Type:        models.TransactionTypeExpense,
			Amount:      decimal.RequireFromString("12.34"),
			Description: "Lunch",
			CategoryID:  cat.ID,
			Date:        testutil.Date(2024, time.June, 3),
		})
		testutil.AssertNoError(t, err)

		if txn.IsRecurrent || txn.RecurrenceID != nil {
			t.Error("manual transaction should not be recurrent")
		}
		if txn.UserID != user.ID {
			t.Errorf("expected user %s, got %s", user.ID, txn.UserID)
		}
	})

	t.Run("unknown_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, time.June, 2024)

		_, err := svc.AddTransaction(user.ID, budget.ID, TransactionInput{
			Type:       models.TransactionTypeExpense,
			Amount:     decimal.NewFromInt(1),
			CategoryID: "missing",
		})
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})

	t.Run("non_positive_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, time.June, 2024)
		cat := testutil.CreateTestCategory(t, db, budget.ID, "Food", models.CategoryTypeExpense)

		_, err := svc.AddTransaction(user.ID, budget.ID, TransactionInput{
			Type:       models.TransactionTypeExpense,
			Amount:     decimal.Zero,
			CategoryID: cat.ID,
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("duplicate_occurrence", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, time.June, 2024)
		cat := testutil.CreateTestCategory(t, db, budget.ID, "Rent", models.CategoryTypeExpense)

		recurrenceID := models.NewID()
		input := TransactionInput{
			Type:         models.TransactionTypeExpense,
			Amount:       decimal.NewFromInt(900),
			Description:  "Rent",
			CategoryID:   cat.ID,
			RecurrenceID: &recurrenceID,
		}
		first, err := svc.AddTransaction(user.ID, budget.ID, input)
		testutil.AssertNoError(t, err)
		if !first.IsRecurrent {
			t.Error("transaction with a recurrence id should be recurrent")
		}

		_, err = svc.AddTransaction(user.ID, budget.ID, input)
		testutil.AssertAppError(t, err, "DUPLICATE_OCCURRENCE")
	})
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewBudgetService(db, nil)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, user.ID, time.June, 2024)
	cat := testutil.CreateTestCategory(t, db, budget.ID, "Food", models.CategoryTypeExpense)
	txn := testutil.CreateTestTransaction(t, db, budget, cat.ID, models.TransactionTypeExpense, 40)

	amount := decimal.NewFromInt(55)
	updated, err := svc.UpdateTransaction(user.ID, budget.ID, txn.ID, TransactionUpdate{Amount: &amount})
	testutil.AssertNoError(t, err)
	if !updated.Amount.Equal(amount) {
		t.Errorf("expected amount 55, got %s", updated.Amount)
	}

	testutil.AssertNoError(t, svc.DeleteTransaction(user.ID, budget.ID, txn.ID))
	err = svc.DeleteTransaction(user.ID, budget.ID, txn.ID)
	testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
}

func TestGetBudgetSummary(t *testing.T) {
	t.Run("totals", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewBudgetService(db, nil)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, time.June, 2024)
		food := testutil.CreateTestCategory(t, db, budget.ID, "Food", models.CategoryTypeExpense)
		salary := testutil.CreateTestCategory(t, db, budget.ID, "Salary", models.CategoryTypeIncome)
		testutil.CreateTestTransaction(t, db, budget, food.ID, models.TransactionTypeExpense, 120)
		testutil.CreateTestTransaction(t, db, budget, food.ID, models.TransactionTypeExpense, 80)
		testutil.CreateTestTransaction(t, db, budget, salary.ID, models.TransactionTypeIncome, 2800)

		summary, err := svc.GetBudgetSummary(user.ID, budget.ID)
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, "total expenses", summary.TotalExpenses, "200")
		testutil.AssertDecimal(t, "actual income", summary.ActualIncome, "2800")
		// Balance is planned income minus expenses: 3000 - 200.
		testutil.AssertDecimal(t, "balance", summary.Balance, "2800")
		for _, c := range summary.Categories {
			if c.CategoryID == food.ID && !c.Remaining.Equal(decimal.NewFromInt(300)) {
				t.Errorf("expected food remaining 300, got %s", c.Remaining)
			}
		}
	})

	t.Run("cache_invalidated_on_change", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		store := cache.NewLRU(16, time.Minute)
		svc := NewBudgetService(db, store)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, time.June, 2024)
		food := testutil.CreateTestCategory(t, db, budget.ID, "Food", models.CategoryTypeExpense)

		first, err := svc.GetBudgetSummary(user.ID, budget.ID)
		testutil.AssertNoError(t, err)
		if !first.TotalExpenses.IsZero() {
			t.Fatalf("expected no expenses, got %s", first.TotalExpenses)
		}
		if store.Len() != 1 {
			t.Fatalf("expected summary to be cached")
		}

		_, err = svc.AddTransaction(user.ID, budget.ID, TransactionInput{
			Type:       models.TransactionTypeExpense,
			Amount:     decimal.NewFromInt(25),
			CategoryID: food.ID,
		})
		testutil.AssertNoError(t, err)

		second, err := svc.GetBudgetSummary(user.ID, budget.ID)
		testutil.AssertNoError(t, err)
		if !second.TotalExpenses.Equal(decimal.NewFromInt(25)) {
			t.Errorf("expected recomputed expenses 25, got %s", second.TotalExpenses)
		}
	})
}
