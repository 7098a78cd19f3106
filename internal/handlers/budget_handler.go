package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "budgetwise/internal/errors"
	"budgetwise/internal/models"
	"budgetwise/internal/pagination"
	"budgetwise/internal/services"
)

// BudgetHandler handles monthly budget requests, including the categories
// and transactions nested under a budget.
type BudgetHandler struct {
	budgetService services.BudgetServicer
	resolver      services.TemplateResolver
	auditService  services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, resolver services.TemplateResolver, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, resolver: resolver, auditService: auditService}
}

// CategoryRequest represents a category in a budget payload.
type CategoryRequest struct {
	Name         string              `json:"name" binding:"required,min=1,max=100"`
	Description  string              `json:"description" binding:"max=255"`
	Color        string              `json:"color" binding:"omitempty,hex_color"`
	Icon         string              `json:"icon" binding:"max=50"`
	BudgetAmount decimal.Decimal     `json:"budget_amount" binding:"gte=0,money"`
	Type         models.CategoryType `json:"type" binding:"required,category_type"`
}

func (r CategoryRequest) input() services.CategoryInput {
	return services.CategoryInput{
		Name:         r.Name,
		Description:  r.Description,
		Color:        r.Color,
		Icon:         r.Icon,
		BudgetAmount: r.BudgetAmount,
		Type:         r.Type,
	}
}

// CreateBudgetRequest represents the request payload for creating a budget.
type CreateBudgetRequest struct {
	Name        string            `json:"name" binding:"max=100"`
	Month       int               `json:"month" binding:"required,min=1,max=12"`
	Year        int               `json:"year" binding:"required,min=1970,max=9999"`
	TotalIncome decimal.Decimal   `json:"total_income" binding:"gte=0,money"`
	IsTemplate  bool              `json:"is_template"`
	Categories  []CategoryRequest `json:"categories" binding:"omitempty,dive"`
}

// UpdateBudgetRequest represents the request payload for updating a budget.
type UpdateBudgetRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=1,max=100"`
	TotalIncome *decimal.Decimal `json:"total_income" binding:"omitempty,gte=0,money"`
	IsTemplate  *bool            `json:"is_template"`
}

// PeriodRequest names a calendar month.
type PeriodRequest struct {
	Month int `json:"month" binding:"required,min=1,max=12"`
	Year  int `json:"year" binding:"required,min=1970,max=9999"`
}

// UpdateCategoryRequest represents the request payload for updating a category.
type UpdateCategoryRequest struct {
	Name         *string          `json:"name" binding:"omitempty,min=1,max=100"`
	Description  *string          `json:"description" binding:"omitempty,max=255"`
	Color        *string          `json:"color" binding:"omitempty,hex_color"`
	Icon         *string          `json:"icon" binding:"omitempty,max=50"`
	BudgetAmount *decimal.Decimal `json:"budget_amount" binding:"omitempty,gte=0,money"`
}

// TransactionRequest represents the request payload for adding a transaction.
type TransactionRequest struct {
	Type        models.TransactionType `json:"type" binding:"required,transaction_type"`
	Amount      decimal.Decimal        `json:"amount" binding:"required,gt=0,money"`
	Description string                 `json:"description" binding:"max=255"`
	CategoryID  string                 `json:"category_id" binding:"required,uuid"`
	Date        *time.Time             `json:"date"`
}

// UpdateTransactionRequest represents the request payload for updating a transaction.
type UpdateTransactionRequest struct {
	Amount      *decimal.Decimal `json:"amount" binding:"omitempty,gt=0,money"`
	Description *string          `json:"description" binding:"omitempty,max=255"`
	CategoryID  *string          `json:"category_id" binding:"omitempty,uuid"`
	Date        *time.Time       `json:"date"`
}

// GetBudgets lists the user's budgets, most recent month first.
// @Summary     Get budgets
// @Description Get a paginated list of monthly budgets for the authenticated user
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.MonthlyBudget] "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /budgets [get]
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.budgetService.GetUserBudgets(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CreateBudget handles the creation of a monthly budget.
// @Summary     Create a budget
// @Description Create the budget for one month, optionally with its categories
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} models.MonthlyBudget "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Budget already exists for the month"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	input := services.CreateBudgetInput{
		Name:        req.Name,
		Month:       req.Month,
		Year:        req.Year,
		TotalIncome: req.TotalIncome,
		IsTemplate:  req.IsTemplate,
	}
	for _, cat := range req.Categories {
		input.Categories = append(input.Categories, cat.input())
	}

	budget, err := h.budgetService.CreateMonthlyBudget(userID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "budget": budget})
}

// GetBudgetByMonth returns the budget of one calendar month.
// @Summary     Get budget by month
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       month query int true "Month (1-12)"
// @Param       year  query int true "Year"
// @Success     200 {object} models.MonthlyBudget "Budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/by-month [get]
func (h *BudgetHandler) GetBudgetByMonth(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	month, year, err := parseMonthQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.GetBudgetByMonth(userID, month, year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "budget": budget})
}

// CreateFromPreviousMonth copies the closest earlier budget into a new month.
// @Summary     Create budget from previous month
// @Description Copy the categories and planned income of the closest earlier budget
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PeriodRequest true "Target month"
// @Success     201 {object} models.MonthlyBudget "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "No earlier budget to copy"
// @Failure     409 {object} ErrorResponse "Budget already exists for the month"
// @Router      /budgets/from-previous-month [post]
func (h *BudgetHandler) CreateFromPreviousMonth(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	budget, err := h.resolver.CreateFromPreviousMonth(userID, req.Month, req.Year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "budget": budget})
}

// GetBudget handles retrieving a single budget.
// @Summary     Get a budget
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} models.MonthlyBudget "Budget"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.GetBudgetByID(userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "budget": budget})
}

// UpdateBudget handles updating a budget.
// @Summary     Update a budget
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Budget ID"
// @Param       request body UpdateBudgetRequest true "Fields to update"
// @Success     200 {object} models.MonthlyBudget "Budget updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id} [put]
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	budget, err := h.budgetService.UpdateMonthlyBudget(userID, budgetID, services.BudgetUpdate{
		Name:        req.Name,
		TotalIncome: req.TotalIncome,
		IsTemplate:  req.IsTemplate,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "budget": budget})
}

// DeleteBudget handles deleting a budget together with its categories and transactions.
// @Summary     Delete a budget
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} map[string]interface{} "Budget deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id} [delete]
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.DeleteBudget(userID, budgetID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditBudgetDeleted, "budget", budgetID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Budget deleted successfully"})
}

// GetBudgetSummary returns planned and actual totals for a budget.
// @Summary     Get budget summary
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} services.BudgetSummary "Budget summary"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id}/summary [get]
func (h *BudgetHandler) GetBudgetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.budgetService.GetBudgetSummary(userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}

// AddCategory adds a category to a budget.
// @Summary     Add a category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true "Budget ID"
// @Param       request body CategoryRequest true "Category details"
// @Success     201 {object} models.Category "Category created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id}/categories [post]
func (h *BudgetHandler) AddCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.budgetService.AddCategory(userID, budgetID, req.input())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "category": category})
}

// UpdateCategory updates a category of a budget.
// @Summary     Update a category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id          path string                true "Budget ID"
// @Param       categoryId  path string                true "Category ID"
// @Param       request     body UpdateCategoryRequest true "Fields to update"
// @Success     200 {object} models.Category "Category updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /budgets/{id}/categories/{categoryId} [put]
func (h *BudgetHandler) UpdateCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	categoryID, err := parsePathID(c, "categoryId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.budgetService.UpdateCategory(userID, budgetID, categoryID, services.CategoryUpdate{
		Name:         req.Name,
		Description:  req.Description,
		Color:        req.Color,
		Icon:         req.Icon,
		BudgetAmount: req.BudgetAmount,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "category": category})
}

// DeleteCategory removes a category that no transaction uses.
// @Summary     Delete a category
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       id         path string true "Budget ID"
// @Param       categoryId path string true "Category ID"
// @Success     200 {object} map[string]interface{} "Category deleted"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Category still has transactions"
// @Router      /budgets/{id}/categories/{categoryId} [delete]
func (h *BudgetHandler) DeleteCategory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	categoryID, err := parsePathID(c, "categoryId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.DeleteCategory(userID, budgetID, categoryID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Category deleted successfully"})
}

// AddTransaction records a transaction in a budget.
// @Summary     Add a transaction
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Budget ID"
// @Param       request body TransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Budget or category not found"
// @Router      /budgets/{id}/transactions [post]
func (h *BudgetHandler) AddTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	input := services.TransactionInput{
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	}
	if req.Date != nil {
		input.Date = *req.Date
	}

	txn, err := h.budgetService.AddTransaction(userID, budgetID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "transaction": txn})
}

// UpdateTransaction updates a transaction of a budget.
// @Summary     Update a transaction
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id            path string                   true "Budget ID"
// @Param       transactionId path string                   true "Transaction ID"
// @Param       request       body UpdateTransactionRequest true "Fields to update"
// @Success     200 {object} models.Transaction "Transaction updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /budgets/{id}/transactions/{transactionId} [put]
func (h *BudgetHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "transactionId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	txn, err := h.budgetService.UpdateTransaction(userID, budgetID, transactionID, services.TransactionUpdate{
		Amount:      req.Amount,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Date:        req.Date,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": txn})
}

// DeleteTransaction removes a transaction from a budget.
// @Summary     Delete a transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id            path string true "Budget ID"
// @Param       transactionId path string true "Transaction ID"
// @Success     200 {object} map[string]interface{} "Transaction deleted"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Router      /budgets/{id}/transactions/{transactionId} [delete]
func (h *BudgetHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	transactionID, err := parsePathID(c, "transactionId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.DeleteTransaction(userID, budgetID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Transaction deleted successfully"})
}
