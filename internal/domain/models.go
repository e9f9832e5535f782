package domain

import "time"

// Sale is the ledger header for one order. All money fields are int64 cents.
// TotalCents and BalanceCents are materialized but only ever written together
// with their inputs inside a single store transaction.
type Sale struct {
	ID                  string         `json:"id"`
	OrderID             string         `json:"order_id"`
	CustomerCode        string         `json:"customer_code"`
	CustomerName        string         `json:"customer_name"`
	CompanyName         string         `json:"company_name,omitempty"`
	CustomerContact     string         `json:"customer_contact,omitempty"`
	SaleDate            time.Time      `json:"sale_date"`
	EmployeeName        string         `json:"employee_name"`
	SaleType            string         `json:"sale_type"`
	SubtotalCents       int64          `json:"subtotal_cents"`
	CourierCostCents    int64          `json:"courier_cost_cents"`
	GSTCents            int64          `json:"gst_amount_cents"`
	TotalCents          int64          `json:"total_amount_cents"`
	AmountReceivedCents int64          `json:"amount_received_cents"`
	BalanceCents        int64          `json:"balance_amount_cents"`
	AccountReceived     string         `json:"account_received,omitempty"`
	PaymentReference    string         `json:"payment_reference,omitempty"`
	Remarks             string         `json:"remarks,omitempty"`
	Synthetic           bool           `json:"synthetic,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	Items               []SaleItem     `json:"items,omitempty"`
	Payments            []PaymentEvent `json:"payments,omitempty"`
}

// PaymentStatus derives the spec'd status from the materialized balance.
// Never persisted; always recomputed on read.
func (s Sale) PaymentStatus() string {
	switch {
	case s.BalanceCents == 0:
		return PaymentStatusPaid
	case s.BalanceCents > 0 && s.AmountReceivedCents > 0:
		return PaymentStatusPartial
	default:
		return PaymentStatusPending
	}
}

type SaleItem struct {
	ID              string `json:"id"`
	OrderID         string `json:"order_id"`
	ProductName     string `json:"product_name"`
	Quantity        int    `json:"quantity"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	TotalPriceCents int64  `json:"total_price_cents"`
}

// PaymentEvent is append-only: a recorded payment is never mutated or
// deleted, and the sum of a sale's events equals its AmountReceivedCents.
type PaymentEvent struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	PaymentDate time.Time `json:"payment_date"`
	AmountCents int64     `json:"amount_cents"`
	Account     string    `json:"account_received,omitempty"`
	Reference   string    `json:"payment_reference,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type SaleItemInput struct {
	ProductName    string `json:"product_name" validate:"required"`
	Quantity       int    `json:"quantity" validate:"gte=0"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
}

type SaleCreateRequest struct {
	CustomerCode        string          `json:"customer_code"`
	CustomerName        string          `json:"customer_name" validate:"required"`
	CompanyName         string          `json:"company_name"`
	CustomerContact     string          `json:"customer_contact"`
	SaleDate            string          `json:"sale_date" validate:"required"`
	EmployeeName        string          `json:"employee_name" validate:"required"`
	SaleType            string          `json:"sale_type" validate:"oneof=With Without"`
	CourierCostCents    int64           `json:"courier_cost_cents" validate:"gte=0"`
	AmountReceivedCents int64           `json:"amount_received_cents" validate:"gte=0"`
	AccountReceived     string          `json:"account_received"`
	PaymentReference    string          `json:"payment_reference"`
	Remarks             string          `json:"remarks"`
	Items               []SaleItemInput `json:"items" validate:"min=1,dive"`
}

type SaleUpdateRequest struct {
	CustomerCode     string          `json:"customer_code"`
	CustomerName     string          `json:"customer_name" validate:"required"`
	CompanyName      string          `json:"company_name"`
	CustomerContact  string          `json:"customer_contact"`
	SaleDate         string          `json:"sale_date" validate:"required"`
	EmployeeName     string          `json:"employee_name" validate:"required"`
	SaleType         string          `json:"sale_type" validate:"oneof=With Without"`
	CourierCostCents int64           `json:"courier_cost_cents" validate:"gte=0"`
	Remarks          string          `json:"remarks"`
	Items            []SaleItemInput `json:"items" validate:"min=1,dive"`
}

type SaleCreateResponse struct {
	OrderID      string `json:"order_id"`
	TotalCents   int64  `json:"total_amount_cents"`
	BalanceCents int64  `json:"balance_amount_cents"`
}

type PaymentRequest struct {
	PaymentDate string `json:"payment_date" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	Account     string `json:"account_received"`
	Reference   string `json:"payment_reference"`
}

type PaymentResponse struct {
	OrderID             string `json:"order_id"`
	AmountReceivedCents int64  `json:"amount_received_cents"`
	BalanceCents        int64  `json:"balance_amount_cents"`
	PaymentStatus       string `json:"payment_status"`
}

type MergeResult struct {
	Merged int `json:"merged"`
}

// InventoryItem is an externally sourced device row, keyed by serial number
// and linked to a sale weakly via OrderID.
type InventoryItem struct {
	SerialNo     string     `json:"device_serial_no"`
	ModelName    string     `json:"model_name"`
	InDate       *time.Time `json:"in_date,omitempty"`
	DispatchDate *time.Time `json:"dispatch_date,omitempty"`
	SaleDate     *time.Time `json:"sale_date,omitempty"`
	CustomerName string     `json:"customer_name,omitempty"`
	OrderID      string     `json:"order_id,omitempty"`
	Warranty     bool       `json:"warranty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Status is derived from the presence of a dispatch date, never stored.
func (i InventoryItem) Status() string {
	if i.DispatchDate != nil {
		return InventoryStatusDispatched
	}
	return InventoryStatusInStock
}

type InventoryUpsertRequest struct {
	SerialNo     string `json:"device_serial_no" validate:"required"`
	ModelName    string `json:"model_name" validate:"required"`
	InDate       string `json:"in_date"`
	DispatchDate string `json:"dispatch_date"`
	SaleDate     string `json:"sale_date"`
	CustomerName string `json:"customer_name"`
	OrderID      string `json:"order_id"`
	Warranty     bool   `json:"warranty"`
}

type DispatchRecord struct {
	ID           string     `json:"id"`
	SerialNo     string     `json:"device_serial_no"`
	OrderID      string     `json:"order_id,omitempty"`
	CustomerName string     `json:"customer_name,omitempty"`
	Courier      string     `json:"courier,omitempty"`
	TrackingNo   string     `json:"tracking_no,omitempty"`
	QCStatus     string     `json:"qc_status"`
	DispatchDate *time.Time `json:"dispatch_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type DispatchUpsertRequest struct {
	SerialNo     string `json:"device_serial_no" validate:"required"`
	OrderID      string `json:"order_id"`
	CustomerName string `json:"customer_name"`
	Courier      string `json:"courier"`
	TrackingNo   string `json:"tracking_no"`
	QCStatus     string `json:"qc_status"`
	DispatchDate string `json:"dispatch_date"`
}

// UpsertOutcome reports idempotent import results: an existing key is
// counted as skipped, never silently merged.
type UpsertOutcome struct {
	Inserted bool   `json:"inserted"`
	OrderID  string `json:"order_id,omitempty"`
}

type LinkOrderResult struct {
	LinkedGroups    int      `json:"linked_groups"`
	LinkedDevices   int      `json:"linked_devices"`
	SyntheticOrders []string `json:"synthetic_orders,omitempty"`
}

type Lead struct {
	ID              string    `json:"id"`
	CustomerCode    int64     `json:"customer_code"`
	CustomerName    string    `json:"customer_name"`
	MobileNumber    string    `json:"mobile_number"`
	AlternateMobile string    `json:"alternate_mobile,omitempty"`
	Location        string    `json:"location,omitempty"`
	CompanyName     string    `json:"company_name,omitempty"`
	GSTNumber       string    `json:"gst_number,omitempty"`
	Email           string    `json:"email,omitempty"`
	CompleteAddress string    `json:"complete_address,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type LeadCreateRequest struct {
	CustomerName    string `json:"customer_name" validate:"required"`
	MobileNumber    string `json:"mobile_number" validate:"required"`
	AlternateMobile string `json:"alternate_mobile"`
	Location        string `json:"location"`
	CompanyName     string `json:"company_name"`
	GSTNumber       string `json:"gst_number"`
	Email           string `json:"email" validate:"omitempty,email"`
	CompleteAddress string `json:"complete_address"`
}

// LeadUpdateRequest is a partial update: empty fields keep their stored
// values, so none are required.
type LeadUpdateRequest struct {
	CustomerName    string `json:"customer_name"`
	MobileNumber    string `json:"mobile_number"`
	AlternateMobile string `json:"alternate_mobile"`
	Location        string `json:"location"`
	CompanyName     string `json:"company_name"`
	GSTNumber       string `json:"gst_number"`
	Email           string `json:"email" validate:"omitempty,email"`
	CompleteAddress string `json:"complete_address"`
	Status          string `json:"status"`
}

// PeriodSummary is an all-zero struct (not an error) when no sales match.
type PeriodSummary struct {
	Period        string `json:"period"`
	From          string `json:"from"`
	To            string `json:"to"`
	SaleCount     int64  `json:"total_sales"`
	RevenueCents  int64  `json:"total_revenue_cents"`
	SubtotalCents int64  `json:"total_without_tax_cents"`
	ReceivedCents int64  `json:"total_received_cents"`
	BalanceCents  int64  `json:"total_balance_cents"`
}

type EmployeeComparison struct {
	EmployeeName       string  `json:"employee_name"`
	CurrentMonthCents  int64   `json:"current_month_cents"`
	PreviousMonthCents int64   `json:"previous_month_cents"`
	GrowthPercent      float64 `json:"growth_percent"`
}

type IncentiveSnapshot struct {
	EmployeeName         string    `json:"employee_name"`
	Month                int       `json:"month"`
	Year                 int       `json:"year"`
	SalesExclTaxCents    int64     `json:"sales_without_tax_cents"`
	TargetCents          int64     `json:"target_cents"`
	AchievementPercent   float64   `json:"achievement_percentage"`
	ExceedingCents       int64     `json:"exceeding_cents"`
	IncentiveEarnedCents int64     `json:"incentive_earned_cents"`
	Status               string    `json:"status"`
	ComputedAt           time.Time `json:"computed_at"`
}

type EmployeeTargetRequest struct {
	TargetCents int64 `json:"target_cents" validate:"gt=0"`
}

type ProductRollup struct {
	ProductName  string `json:"product_name"`
	Quantity     int64  `json:"quantity"`
	RevenueCents int64  `json:"revenue_cents"`
	OrderCount   int64  `json:"order_count"`
}

type CustomerRollup struct {
	CustomerName string `json:"customer_name"`
	OrderCount   int64  `json:"order_count"`
	RevenueCents int64  `json:"revenue_cents"`
	BalanceCents int64  `json:"balance_cents"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	Role         string `json:"role"`
	EmployeeName string `json:"employee_name,omitempty"`
	ExpiresAt    string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username     string
	Password     string
	Role         string
	EmployeeName string
	Active       bool
	CreatedAt    time.Time
}

const (
	SaleTypeWithTax    = "With"
	SaleTypeWithoutTax = "Without"
)

const (
	PaymentStatusPaid    = "Paid"
	PaymentStatusPartial = "Partial"
	PaymentStatusPending = "Pending"
)

const (
	InventoryStatusInStock    = "In Stock"
	InventoryStatusDispatched = "Dispatched"
)

const (
	LeadStatusNew = "New"
)

const (
	IncentiveStatusAchieved = "Target Achieved"
	IncentiveStatusPending  = "In Progress"
)

const (
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYTD     = "ytd"
)

// DateLayout is the wire format for all date-only fields.
const DateLayout = "2006-01-02"
