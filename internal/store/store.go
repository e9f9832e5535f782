package store

import (
	"context"
	"errors"
	"time"

	"salesdesk/backend/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid request")
	ErrConflict   = errors.New("conflict")
)

type Repository interface {
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByOrderID(ctx context.Context, orderID string) (*domain.Sale, error)
	ListSales(ctx context.Context, limit int) ([]domain.Sale, error)
	ListSalesByWindow(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)
	ListSalesWithBalance(ctx context.Context) ([]domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	ApplyPayment(ctx context.Context, orderID string, event domain.PaymentEvent) (*domain.Sale, error)
	MergeDuplicateSales(ctx context.Context) (int, error)
	ListSaleItemsByWindow(ctx context.Context, from time.Time, to time.Time) ([]domain.SaleItem, error)

	UpsertInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.UpsertOutcome, error)
	ListInventory(ctx context.Context, limit int) ([]domain.InventoryItem, error)
	ListUnlinkedInventory(ctx context.Context) ([]domain.InventoryItem, error)
	LinkInventoryToOrder(ctx context.Context, serialNos []string, orderID string) (int, error)
	UpsertDispatchRecord(ctx context.Context, record domain.DispatchRecord) (*domain.UpsertOutcome, error)
	FindOrderByCustomerAndDate(ctx context.Context, customerName string, saleDate time.Time) (string, error)

	CreateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error)
	GetLeadByID(ctx context.Context, id string) (*domain.Lead, error)
	ListLeads(ctx context.Context, limit int) ([]domain.Lead, error)
	UpdateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error)
	DeleteLead(ctx context.Context, id string) error

	UpsertIncentiveSnapshot(ctx context.Context, snapshot domain.IncentiveSnapshot) error
	ListIncentiveSnapshots(ctx context.Context, month int, year int) ([]domain.IncentiveSnapshot, error)
	SetEmployeeTarget(ctx context.Context, employeeName string, targetCents int64) error
	GetEmployeeTargets(ctx context.Context) (map[string]int64, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
