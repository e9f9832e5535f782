package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/reconcile"
	"salesdesk/backend/internal/store"
)

const firstOrderNumber int64 = 1001

type Store struct {
	mu              sync.Mutex
	salesByID       map[string]*domain.Sale
	inventoryBySN   map[string]domain.InventoryItem
	dispatchBySN    map[string]domain.DispatchRecord
	leadsByID       map[string]domain.Lead
	incentivesByKey map[string]domain.IncentiveSnapshot
	targetsByName   map[string]int64
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_SALES_PASSWORD; unset
// variables fall back to hardcoded dev defaults with a warning. The memory
// store is never selected when DATABASE_URL or SQLITE_PATH is set.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	salesPwd := envOr("SEED_SALES_PASSWORD", "sales123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SALES_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SALES_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
		employee string
	}{
		{"admin", adminPwd, "admin", ""},
		{"sales", salesPwd, "sales", "Sales Desk"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:     u.username,
			Password:     string(hash),
			Role:         u.role,
			EmployeeName: u.employee,
			Active:       true,
			CreatedAt:    now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	return &Store{
		salesByID:       make(map[string]*domain.Sale),
		inventoryBySN:   make(map[string]domain.InventoryItem),
		dispatchBySN:    make(map[string]domain.DispatchRecord),
		leadsByID:       make(map[string]domain.Lead),
		incentivesByKey: make(map[string]domain.IncentiveSnapshot),
		targetsByName:   make(map[string]int64),
		usersByUsername: seedUsers(),
	}
}

// recomputeReceived is the single place a sale's amount_received and balance
// are written. Both always change together, from the payment sum.
func recomputeReceived(sale *domain.Sale) {
	var received int64
	for _, event := range sale.Payments {
		received += event.AmountCents
	}
	sale.AmountReceivedCents = received
	sale.BalanceCents = sale.TotalCents - received
}

// nextOrderNumber assigns sequential order ids. Organic ids count up from
// 1001 and ignore the range reserved for reconciliation, which counts up
// from its own floor.
func (s *Store) nextOrderNumber(synthetic bool) string {
	var highest int64
	for _, sale := range s.salesByID {
		n, err := strconv.ParseInt(sale.OrderID, 10, 64)
		if err != nil {
			continue
		}
		if synthetic != (n >= reconcile.SyntheticOrderFloor) {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	if synthetic {
		return strconv.FormatInt(reconcile.NextSyntheticOrderID(highest), 10)
	}
	if highest < firstOrderNumber-1 {
		highest = firstOrderNumber - 1
	}
	return strconv.FormatInt(highest+1, 10)
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.OrderID == "" {
		sale.OrderID = s.nextOrderNumber(sale.Synthetic)
	}
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = uuid.NewString()
		}
		sale.Items[i].OrderID = sale.OrderID
	}
	for i := range sale.Payments {
		if sale.Payments[i].ID == "" {
			sale.Payments[i].ID = uuid.NewString()
		}
		sale.Payments[i].OrderID = sale.OrderID
	}
	recomputeReceived(&sale)
	if sale.BalanceCents < 0 {
		return nil, store.ErrValidation
	}

	stored := sale
	s.salesByID[stored.ID] = &stored
	return copySale(&stored), nil
}

func (s *Store) GetSaleByOrderID(_ context.Context, orderID string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale := s.findByOrderID(orderID)
	if sale == nil {
		return nil, store.ErrNotFound
	}
	return copySale(sale), nil
}

func (s *Store) ListSales(_ context.Context, limit int) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sales := s.sortedSales()
	sort.Slice(sales, func(i, j int) bool { return sales[i].CreatedAt.After(sales[j].CreatedAt) })
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) ListSalesByWindow(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sales := make([]domain.Sale, 0)
	for _, sale := range s.salesByID {
		if sale.SaleDate.Before(from) || sale.SaleDate.After(to) {
			continue
		}
		sales = append(sales, *copySale(sale))
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].SaleDate.Before(sales[j].SaleDate) })
	return sales, nil
}

func (s *Store) ListSalesWithBalance(_ context.Context) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sales := make([]domain.Sale, 0)
	for _, sale := range s.salesByID {
		if sale.BalanceCents > 0 {
			sales = append(sales, *copySale(sale))
		}
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].BalanceCents > sales[j].BalanceCents })
	return sales, nil
}

func (s *Store) UpdateSale(_ context.Context, updated domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale := s.findByOrderID(updated.OrderID)
	if sale == nil {
		return nil, store.ErrNotFound
	}

	sale.CustomerCode = updated.CustomerCode
	sale.CustomerName = updated.CustomerName
	sale.CompanyName = updated.CompanyName
	sale.CustomerContact = updated.CustomerContact
	sale.SaleDate = updated.SaleDate
	sale.EmployeeName = updated.EmployeeName
	sale.SaleType = updated.SaleType
	sale.SubtotalCents = updated.SubtotalCents
	sale.CourierCostCents = updated.CourierCostCents
	sale.GSTCents = updated.GSTCents
	sale.TotalCents = updated.TotalCents
	sale.Remarks = updated.Remarks
	sale.UpdatedAt = updated.UpdatedAt

	items := make([]domain.SaleItem, len(updated.Items))
	copy(items, updated.Items)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].OrderID = sale.OrderID
	}
	sale.Items = items

	recomputeReceived(sale)
	if sale.BalanceCents < 0 {
		return nil, store.ErrValidation
	}
	return copySale(sale), nil
}

func (s *Store) ApplyPayment(_ context.Context, orderID string, event domain.PaymentEvent) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale := s.findByOrderID(orderID)
	if sale == nil {
		return nil, store.ErrNotFound
	}
	if event.AmountCents <= 0 {
		return nil, store.ErrValidation
	}
	if event.AmountCents > sale.BalanceCents {
		return nil, store.ErrConflict
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.OrderID = sale.OrderID
	sale.Payments = append(sale.Payments, event)
	recomputeReceived(sale)
	sale.UpdatedAt = event.CreatedAt
	return copySale(sale), nil
}

func (s *Store) MergeDuplicateSales(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byOrder := make(map[string][]*domain.Sale)
	for _, sale := range s.salesByID {
		byOrder[sale.OrderID] = append(byOrder[sale.OrderID], sale)
	}

	merged := 0
	for _, group := range byOrder {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].CreatedAt.Before(group[j].CreatedAt) })
		survivor := group[0]
		for _, dup := range group[1:] {
			survivor.Items = append(survivor.Items, dup.Items...)
			survivor.Payments = append(survivor.Payments, dup.Payments...)
			delete(s.salesByID, dup.ID)
			merged++
		}
		for i := range survivor.Items {
			survivor.Items[i].OrderID = survivor.OrderID
		}
		for i := range survivor.Payments {
			survivor.Payments[i].OrderID = survivor.OrderID
		}
		recomputeReceived(survivor)
	}
	return merged, nil
}

func (s *Store) ListSaleItemsByWindow(_ context.Context, from time.Time, to time.Time) ([]domain.SaleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.SaleItem, 0)
	for _, sale := range s.salesByID {
		if sale.SaleDate.Before(from) || sale.SaleDate.After(to) {
			continue
		}
		items = append(items, sale.Items...)
	}
	return items, nil
}

func (s *Store) UpsertInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.SerialNo == "" {
		return nil, store.ErrValidation
	}
	if existing, exists := s.inventoryBySN[item.SerialNo]; exists {
		return &domain.UpsertOutcome{Inserted: false, OrderID: existing.OrderID}, nil
	}
	s.inventoryBySN[item.SerialNo] = item
	return &domain.UpsertOutcome{Inserted: true, OrderID: item.OrderID}, nil
}

func (s *Store) ListInventory(_ context.Context, limit int) ([]domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.InventoryItem, 0, len(s.inventoryBySN))
	for _, item := range s.inventoryBySN {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SerialNo < items[j].SerialNo })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) ListUnlinkedInventory(_ context.Context) ([]domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.InventoryItem, 0)
	for _, item := range s.inventoryBySN {
		if item.OrderID == "" {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SerialNo < items[j].SerialNo })
	return items, nil
}

func (s *Store) LinkInventoryToOrder(_ context.Context, serialNos []string, orderID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if orderID == "" {
		return 0, store.ErrValidation
	}
	linked := 0
	for _, sn := range serialNos {
		item, exists := s.inventoryBySN[sn]
		if !exists || item.OrderID != "" {
			continue
		}
		item.OrderID = orderID
		s.inventoryBySN[sn] = item
		linked++
	}
	return linked, nil
}

func (s *Store) UpsertDispatchRecord(_ context.Context, record domain.DispatchRecord) (*domain.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.SerialNo == "" {
		return nil, store.ErrValidation
	}
	if existing, exists := s.dispatchBySN[record.SerialNo]; exists {
		return &domain.UpsertOutcome{Inserted: false, OrderID: existing.OrderID}, nil
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	s.dispatchBySN[record.SerialNo] = record

	if item, exists := s.inventoryBySN[record.SerialNo]; exists && item.DispatchDate == nil && record.DispatchDate != nil {
		dispatched := *record.DispatchDate
		item.DispatchDate = &dispatched
		s.inventoryBySN[record.SerialNo] = item
	}
	return &domain.UpsertOutcome{Inserted: true, OrderID: record.OrderID}, nil
}

func (s *Store) FindOrderByCustomerAndDate(_ context.Context, customerName string, saleDate time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeName(customerName)
	if key == "" {
		return "", store.ErrNotFound
	}
	day := saleDate.Format(domain.DateLayout)

	var match *domain.Sale
	for _, sale := range s.salesByID {
		if normalizeName(sale.CustomerName) != key || sale.SaleDate.Format(domain.DateLayout) != day {
			continue
		}
		if match == nil || sale.CreatedAt.Before(match.CreatedAt) {
			match = sale
		}
	}
	if match == nil {
		return "", store.ErrNotFound
	}
	return match.OrderID, nil
}

func (s *Store) CreateLead(_ context.Context, lead domain.Lead) (*domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.Status == "" {
		lead.Status = domain.LeadStatusNew
	}
	var highest int64 = firstOrderNumber - 1
	for _, existing := range s.leadsByID {
		if existing.CustomerCode > highest {
			highest = existing.CustomerCode
		}
	}
	lead.CustomerCode = highest + 1
	s.leadsByID[lead.ID] = lead
	created := lead
	return &created, nil
}

func (s *Store) GetLeadByID(_ context.Context, id string) (*domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, exists := s.leadsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := lead
	return &found, nil
}

func (s *Store) ListLeads(_ context.Context, limit int) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	leads := make([]domain.Lead, 0, len(s.leadsByID))
	for _, lead := range s.leadsByID {
		leads = append(leads, lead)
	}
	sort.Slice(leads, func(i, j int) bool { return leads[i].CustomerCode > leads[j].CustomerCode })
	if limit > 0 && len(leads) > limit {
		leads = leads[:limit]
	}
	return leads, nil
}

func (s *Store) UpdateLead(_ context.Context, lead domain.Lead) (*domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.leadsByID[lead.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	lead.CustomerCode = existing.CustomerCode
	lead.CreatedAt = existing.CreatedAt
	s.leadsByID[lead.ID] = lead
	updated := lead
	return &updated, nil
}

func (s *Store) DeleteLead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.leadsByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.leadsByID, id)
	return nil
}

func (s *Store) UpsertIncentiveSnapshot(_ context.Context, snapshot domain.IncentiveSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.incentivesByKey[incentiveKey(snapshot.EmployeeName, snapshot.Month, snapshot.Year)] = snapshot
	return nil
}

func (s *Store) ListIncentiveSnapshots(_ context.Context, month int, year int) ([]domain.IncentiveSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshots := make([]domain.IncentiveSnapshot, 0)
	for _, snapshot := range s.incentivesByKey {
		if snapshot.Month == month && snapshot.Year == year {
			snapshots = append(snapshots, snapshot)
		}
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].EmployeeName < snapshots[j].EmployeeName })
	return snapshots, nil
}

func (s *Store) SetEmployeeTarget(_ context.Context, employeeName string, targetCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if employeeName == "" || targetCents <= 0 {
		return store.ErrValidation
	}
	s.targetsByName[employeeName] = targetCents
	return nil
}

func (s *Store) GetEmployeeTargets(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets := make(map[string]int64, len(s.targetsByName))
	for name, target := range s.targetsByName {
		targets[name] = target
	}
	return targets, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) findByOrderID(orderID string) *domain.Sale {
	var match *domain.Sale
	for _, sale := range s.salesByID {
		if sale.OrderID != orderID {
			continue
		}
		if match == nil || sale.CreatedAt.Before(match.CreatedAt) {
			match = sale
		}
	}
	return match
}

func (s *Store) sortedSales() []domain.Sale {
	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		sales = append(sales, *copySale(sale))
	}
	return sales
}

func copySale(sale *domain.Sale) *domain.Sale {
	clone := *sale
	clone.Items = make([]domain.SaleItem, len(sale.Items))
	copy(clone.Items, sale.Items)
	clone.Payments = make([]domain.PaymentEvent, len(sale.Payments))
	copy(clone.Payments, sale.Payments)
	return &clone
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func incentiveKey(employee string, month int, year int) string {
	return strings.ToLower(employee) + "|" + strconv.Itoa(month) + "|" + strconv.Itoa(year)
}
