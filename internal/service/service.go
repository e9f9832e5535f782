package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"salesdesk/backend/internal/cache"
	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/reconcile"
	"salesdesk/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo               store.Repository
	reportCache        cache.ReportCache
	logger             *zap.Logger
	now                func() time.Time
	gstRate            float64
	incentiveRate      float64
	defaultTargetCents int64
	reportCacheTTL     time.Duration
}

type Options struct {
	ReportCache               cache.ReportCache
	Logger                    *zap.Logger
	Now                       func() time.Time
	GSTRate                   float64
	IncentiveRate             float64
	DefaultMonthlyTargetCents int64
	ReportCacheTTL            time.Duration
}

func New(repo store.Repository, opts Options) *Service {
	if opts.ReportCache == nil {
		opts.ReportCache = cache.NoopReportCache{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.GSTRate <= 0 {
		opts.GSTRate = 0.18
	}
	if opts.IncentiveRate <= 0 {
		opts.IncentiveRate = 0.01
	}
	if opts.DefaultMonthlyTargetCents <= 0 {
		opts.DefaultMonthlyTargetCents = 5_500_000_000
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = 30 * time.Second
	}

	return &Service{
		repo:               repo,
		reportCache:        opts.ReportCache,
		logger:             opts.Logger,
		now:                opts.Now,
		gstRate:            opts.GSTRate,
		incentiveRate:      opts.IncentiveRate,
		defaultTargetCents: opts.DefaultMonthlyTargetCents,
		reportCacheTTL:     opts.ReportCacheTTL,
	}
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleCreateResponse, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.EmployeeName = strings.TrimSpace(req.EmployeeName)
	if req.CustomerName == "" || req.EmployeeName == "" {
		return domain.SaleCreateResponse{}, store.ErrValidation
	}
	if req.SaleType != domain.SaleTypeWithTax && req.SaleType != domain.SaleTypeWithoutTax {
		return domain.SaleCreateResponse{}, store.ErrValidation
	}
	if req.CourierCostCents < 0 || req.AmountReceivedCents < 0 {
		return domain.SaleCreateResponse{}, store.ErrValidation
	}

	saleDate, err := parseDate(req.SaleDate)
	if err != nil {
		return domain.SaleCreateResponse{}, store.ErrValidation
	}

	items, subtotal, err := normalizeItems(req.Items)
	if err != nil {
		return domain.SaleCreateResponse{}, err
	}
	gst := s.gstFor(req.SaleType, subtotal+req.CourierCostCents)
	total := subtotal + req.CourierCostCents + gst
	if req.AmountReceivedCents > total {
		return domain.SaleCreateResponse{}, store.ErrValidation
	}

	now := s.now().UTC()
	sale := domain.Sale{
		CustomerCode:     strings.TrimSpace(req.CustomerCode),
		CustomerName:     req.CustomerName,
		CompanyName:      strings.TrimSpace(req.CompanyName),
		CustomerContact:  strings.TrimSpace(req.CustomerContact),
		SaleDate:         saleDate,
		EmployeeName:     req.EmployeeName,
		SaleType:         req.SaleType,
		SubtotalCents:    subtotal,
		CourierCostCents: req.CourierCostCents,
		GSTCents:         gst,
		TotalCents:       total,
		AccountReceived:  strings.TrimSpace(req.AccountReceived),
		PaymentReference: strings.TrimSpace(req.PaymentReference),
		Remarks:          strings.TrimSpace(req.Remarks),
		CreatedAt:        now,
		UpdatedAt:        now,
		Items:            items,
	}
	if req.AmountReceivedCents > 0 {
		sale.Payments = []domain.PaymentEvent{{
			PaymentDate: saleDate,
			AmountCents: req.AmountReceivedCents,
			Account:     sale.AccountReceived,
			Reference:   sale.PaymentReference,
			CreatedAt:   now,
		}}
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.SaleCreateResponse{}, err
	}

	s.logger.Info("sale created",
		zap.String("order_id", created.OrderID),
		zap.String("employee", created.EmployeeName),
		zap.Int64("total_cents", created.TotalCents),
		zap.Int64("received_cents", created.AmountReceivedCents))

	return domain.SaleCreateResponse{
		OrderID:      created.OrderID,
		TotalCents:   created.TotalCents,
		BalanceCents: created.BalanceCents,
	}, nil
}

func (s *Service) GetSale(ctx context.Context, orderID string) (*domain.Sale, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, store.ErrValidation
	}
	return s.repo.GetSaleByOrderID(ctx, orderID)
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, limit)
}

func (s *Service) ListBalanceDue(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSalesWithBalance(ctx)
}

func (s *Service) UpdateSale(ctx context.Context, orderID string, req domain.SaleUpdateRequest) (*domain.Sale, error) {
	orderID = strings.TrimSpace(orderID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.EmployeeName = strings.TrimSpace(req.EmployeeName)
	if orderID == "" || req.CustomerName == "" || req.EmployeeName == "" {
		return nil, store.ErrValidation
	}
	if req.SaleType != domain.SaleTypeWithTax && req.SaleType != domain.SaleTypeWithoutTax {
		return nil, store.ErrValidation
	}
	if req.CourierCostCents < 0 {
		return nil, store.ErrValidation
	}

	saleDate, err := parseDate(req.SaleDate)
	if err != nil {
		return nil, store.ErrValidation
	}
	items, subtotal, err := normalizeItems(req.Items)
	if err != nil {
		return nil, err
	}
	gst := s.gstFor(req.SaleType, subtotal+req.CourierCostCents)

	updated, err := s.repo.UpdateSale(ctx, domain.Sale{
		OrderID:          orderID,
		CustomerCode:     strings.TrimSpace(req.CustomerCode),
		CustomerName:     req.CustomerName,
		CompanyName:      strings.TrimSpace(req.CompanyName),
		CustomerContact:  strings.TrimSpace(req.CustomerContact),
		SaleDate:         saleDate,
		EmployeeName:     req.EmployeeName,
		SaleType:         req.SaleType,
		SubtotalCents:    subtotal,
		CourierCostCents: req.CourierCostCents,
		GSTCents:         gst,
		TotalCents:       subtotal + req.CourierCostCents + gst,
		Remarks:          strings.TrimSpace(req.Remarks),
		UpdatedAt:        s.now().UTC(),
		Items:            items,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sale updated", zap.String("order_id", orderID), zap.Int64("total_cents", updated.TotalCents))
	return updated, nil
}

func (s *Service) ApplyPayment(ctx context.Context, orderID string, req domain.PaymentRequest) (domain.PaymentResponse, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" || req.AmountCents <= 0 {
		return domain.PaymentResponse{}, store.ErrValidation
	}
	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		return domain.PaymentResponse{}, store.ErrValidation
	}

	// Pre-check against our own read. The store re-checks under its row
	// lock; failing only there means a concurrent payment changed the
	// balance, which surfaces as a conflict rather than a bad request.
	sale, err := s.repo.GetSaleByOrderID(ctx, orderID)
	if err != nil {
		return domain.PaymentResponse{}, err
	}
	if req.AmountCents > sale.BalanceCents {
		return domain.PaymentResponse{}, store.ErrValidation
	}

	updated, err := s.repo.ApplyPayment(ctx, orderID, domain.PaymentEvent{
		PaymentDate: paymentDate,
		AmountCents: req.AmountCents,
		Account:     strings.TrimSpace(req.Account),
		Reference:   strings.TrimSpace(req.Reference),
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return domain.PaymentResponse{}, err
	}

	s.logger.Info("payment recorded",
		zap.String("order_id", orderID),
		zap.Int64("amount_cents", req.AmountCents),
		zap.Int64("balance_cents", updated.BalanceCents))

	return domain.PaymentResponse{
		OrderID:             updated.OrderID,
		AmountReceivedCents: updated.AmountReceivedCents,
		BalanceCents:        updated.BalanceCents,
		PaymentStatus:       updated.PaymentStatus(),
	}, nil
}

func (s *Service) MergeDuplicates(ctx context.Context) (domain.MergeResult, error) {
	merged, err := s.repo.MergeDuplicateSales(ctx)
	if err != nil {
		return domain.MergeResult{}, err
	}
	if merged > 0 {
		s.logger.Info("duplicate sales merged", zap.Int("merged", merged))
	}
	return domain.MergeResult{Merged: merged}, nil
}

// periodWindow returns [start, now] for the requested period.
func (s *Service) periodWindow(period string) (time.Time, time.Time, error) {
	now := s.now().UTC()
	switch period {
	case "", domain.PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), now, nil
	case domain.PeriodQuarter:
		quarterStart := time.Month(((int(now.Month())-1)/3)*3 + 1)
		return time.Date(now.Year(), quarterStart, 1, 0, 0, 0, 0, time.UTC), now, nil
	case domain.PeriodYTD:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), now, nil
	default:
		return time.Time{}, time.Time{}, store.ErrValidation
	}
}

func (s *Service) Summary(ctx context.Context, period string) (domain.PeriodSummary, error) {
	if period == "" {
		period = domain.PeriodMonth
	}
	from, to, err := s.periodWindow(period)
	if err != nil {
		return domain.PeriodSummary{}, err
	}

	cacheKey := "salesdesk:report:summary:" + period
	if payload, ok, err := s.reportCache.Get(ctx, cacheKey); err == nil && ok {
		var cached domain.PeriodSummary
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	}

	sales, err := s.repo.ListSalesByWindow(ctx, from, to)
	if err != nil {
		return domain.PeriodSummary{}, err
	}

	summary := domain.PeriodSummary{
		Period: period,
		From:   from.Format(domain.DateLayout),
		To:     to.Format(domain.DateLayout),
	}
	for _, sale := range sales {
		summary.SaleCount++
		summary.RevenueCents += sale.TotalCents
		summary.SubtotalCents += sale.SubtotalCents
		summary.ReceivedCents += sale.AmountReceivedCents
		summary.BalanceCents += sale.BalanceCents
	}

	if payload, err := json.Marshal(summary); err == nil {
		_ = s.reportCache.Set(ctx, cacheKey, payload, s.reportCacheTTL)
	}
	return summary, nil
}

func (s *Service) EmployeeComparison(ctx context.Context) ([]domain.EmployeeComparison, error) {
	now := s.now().UTC()
	curFrom := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prevFrom := curFrom.AddDate(0, -1, 0)
	prevTo := curFrom.Add(-time.Second)

	current, err := s.repo.ListSalesByWindow(ctx, curFrom, now)
	if err != nil {
		return nil, err
	}
	previous, err := s.repo.ListSalesByWindow(ctx, prevFrom, prevTo)
	if err != nil {
		return nil, err
	}

	currentByEmployee := make(map[string]int64)
	for _, sale := range current {
		currentByEmployee[sale.EmployeeName] += sale.TotalCents
	}
	previousByEmployee := make(map[string]int64)
	for _, sale := range previous {
		previousByEmployee[sale.EmployeeName] += sale.TotalCents
	}

	names := make(map[string]struct{})
	for name := range currentByEmployee {
		names[name] = struct{}{}
	}
	for name := range previousByEmployee {
		names[name] = struct{}{}
	}

	comparisons := make([]domain.EmployeeComparison, 0, len(names))
	for name := range names {
		comparisons = append(comparisons, domain.EmployeeComparison{
			EmployeeName:       name,
			CurrentMonthCents:  currentByEmployee[name],
			PreviousMonthCents: previousByEmployee[name],
			GrowthPercent:      growthPercent(previousByEmployee[name], currentByEmployee[name]),
		})
	}
	sort.Slice(comparisons, func(i, j int) bool {
		return comparisons[i].CurrentMonthCents > comparisons[j].CurrentMonthCents
	})
	return comparisons, nil
}

// Incentives computes the current month's per-employee incentive view. With
// persist set the snapshots are upserted, keyed (employee, month, year).
func (s *Service) Incentives(ctx context.Context, persist bool) ([]domain.IncentiveSnapshot, error) {
	now := s.now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	sales, err := s.repo.ListSalesByWindow(ctx, from, now)
	if err != nil {
		return nil, err
	}
	targets, err := s.repo.GetEmployeeTargets(ctx)
	if err != nil {
		return nil, err
	}

	salesByEmployee := make(map[string]int64)
	for _, sale := range sales {
		salesByEmployee[sale.EmployeeName] += sale.SubtotalCents
	}

	snapshots := make([]domain.IncentiveSnapshot, 0, len(salesByEmployee))
	for name, withoutTax := range salesByEmployee {
		target := targets[name]
		if target <= 0 {
			target = s.defaultTargetCents
		}

		exceeding := withoutTax - target
		if exceeding < 0 {
			exceeding = 0
		}
		status := domain.IncentiveStatusPending
		if withoutTax >= target {
			status = domain.IncentiveStatusAchieved
		}

		snapshots = append(snapshots, domain.IncentiveSnapshot{
			EmployeeName:         name,
			Month:                int(now.Month()),
			Year:                 now.Year(),
			SalesExclTaxCents:    withoutTax,
			TargetCents:          target,
			AchievementPercent:   math.Round(float64(withoutTax)/float64(target)*10000) / 100,
			ExceedingCents:       exceeding,
			IncentiveEarnedCents: int64(math.Round(float64(exceeding) * s.incentiveRate)),
			Status:               status,
			ComputedAt:           now,
		})
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].EmployeeName < snapshots[j].EmployeeName
	})

	if persist {
		for _, snap := range snapshots {
			if err := s.repo.UpsertIncentiveSnapshot(ctx, snap); err != nil {
				return nil, err
			}
		}
		s.logger.Info("incentive snapshots saved",
			zap.Int("count", len(snapshots)),
			zap.Int("month", int(now.Month())),
			zap.Int("year", now.Year()))
	}
	return snapshots, nil
}

func (s *Service) SetEmployeeTarget(ctx context.Context, employeeName string, targetCents int64) error {
	employeeName = strings.TrimSpace(employeeName)
	if employeeName == "" || targetCents <= 0 {
		return store.ErrValidation
	}
	if err := s.repo.SetEmployeeTarget(ctx, employeeName, targetCents); err != nil {
		return err
	}
	s.logger.Info("employee target set", zap.String("employee", employeeName), zap.Int64("target_cents", targetCents))
	return nil
}

func (s *Service) ProductAnalysis(ctx context.Context, period string) ([]domain.ProductRollup, error) {
	from, to, err := s.periodWindow(period)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListSaleItemsByWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}

	rollups := make(map[string]*domain.ProductRollup)
	ordersByProduct := make(map[string]map[string]struct{})
	for _, item := range items {
		rollup, ok := rollups[item.ProductName]
		if !ok {
			rollup = &domain.ProductRollup{ProductName: item.ProductName}
			rollups[item.ProductName] = rollup
			ordersByProduct[item.ProductName] = make(map[string]struct{})
		}
		rollup.Quantity += int64(item.Quantity)
		rollup.RevenueCents += item.TotalPriceCents
		ordersByProduct[item.ProductName][item.OrderID] = struct{}{}
	}

	result := make([]domain.ProductRollup, 0, len(rollups))
	for name, rollup := range rollups {
		rollup.OrderCount = int64(len(ordersByProduct[name]))
		result = append(result, *rollup)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RevenueCents > result[j].RevenueCents })
	return result, nil
}

func (s *Service) CustomerAnalysis(ctx context.Context, period string) ([]domain.CustomerRollup, error) {
	from, to, err := s.periodWindow(period)
	if err != nil {
		return nil, err
	}

	sales, err := s.repo.ListSalesByWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}

	rollups := make(map[string]*domain.CustomerRollup)
	for _, sale := range sales {
		rollup, ok := rollups[sale.CustomerName]
		if !ok {
			rollup = &domain.CustomerRollup{CustomerName: sale.CustomerName}
			rollups[sale.CustomerName] = rollup
		}
		rollup.OrderCount++
		rollup.RevenueCents += sale.TotalCents
		rollup.BalanceCents += sale.BalanceCents
	}

	result := make([]domain.CustomerRollup, 0, len(rollups))
	for _, rollup := range rollups {
		result = append(result, *rollup)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RevenueCents > result[j].RevenueCents })
	return result, nil
}

func (s *Service) UpsertInventory(ctx context.Context, req domain.InventoryUpsertRequest) (domain.UpsertOutcome, error) {
	req.SerialNo = strings.TrimSpace(req.SerialNo)
	req.ModelName = strings.TrimSpace(req.ModelName)
	if req.SerialNo == "" || req.ModelName == "" {
		return domain.UpsertOutcome{}, store.ErrValidation
	}

	item := domain.InventoryItem{
		SerialNo:     req.SerialNo,
		ModelName:    req.ModelName,
		CustomerName: strings.TrimSpace(req.CustomerName),
		OrderID:      strings.TrimSpace(req.OrderID),
		Warranty:     req.Warranty,
		CreatedAt:    s.now().UTC(),
	}
	var err error
	if item.InDate, err = parseDatePtr(req.InDate); err != nil {
		return domain.UpsertOutcome{}, store.ErrValidation
	}
	if item.DispatchDate, err = parseDatePtr(req.DispatchDate); err != nil {
		return domain.UpsertOutcome{}, store.ErrValidation
	}
	if item.SaleDate, err = parseDatePtr(req.SaleDate); err != nil {
		return domain.UpsertOutcome{}, store.ErrValidation
	}

	outcome, err := s.repo.UpsertInventoryItem(ctx, item)
	if err != nil {
		return domain.UpsertOutcome{}, err
	}
	return *outcome, nil
}

func (s *Service) ListInventory(ctx context.Context, limit int) ([]domain.InventoryItem, error) {
	return s.repo.ListInventory(ctx, limit)
}

func (s *Service) UpsertDispatch(ctx context.Context, req domain.DispatchUpsertRequest) (domain.UpsertOutcome, error) {
	req.SerialNo = strings.TrimSpace(req.SerialNo)
	if req.SerialNo == "" {
		return domain.UpsertOutcome{}, store.ErrValidation
	}

	record := domain.DispatchRecord{
		SerialNo:     req.SerialNo,
		OrderID:      strings.TrimSpace(req.OrderID),
		CustomerName: strings.TrimSpace(req.CustomerName),
		Courier:      strings.TrimSpace(req.Courier),
		TrackingNo:   strings.TrimSpace(req.TrackingNo),
		QCStatus:     strings.TrimSpace(req.QCStatus),
		CreatedAt:    s.now().UTC(),
	}
	var err error
	if record.DispatchDate, err = parseDatePtr(req.DispatchDate); err != nil {
		return domain.UpsertOutcome{}, store.ErrValidation
	}

	// No order id on the row: try to resolve it from the ledger by customer
	// and dispatch date before inserting.
	if record.OrderID == "" && record.CustomerName != "" && record.DispatchDate != nil {
		orderID, err := s.repo.FindOrderByCustomerAndDate(ctx, record.CustomerName, *record.DispatchDate)
		if err == nil {
			record.OrderID = orderID
		} else if !errors.Is(err, store.ErrNotFound) {
			return domain.UpsertOutcome{}, err
		}
	}

	outcome, err := s.repo.UpsertDispatchRecord(ctx, record)
	if err != nil {
		return domain.UpsertOutcome{}, err
	}
	return *outcome, nil
}

// LinkOrders reconciles unlinked inventory rows against the ledger. Rows that
// match an existing sale by (customer, sale date) are linked to it; the rest
// get a synthetic order from the reserved range.
func (s *Service) LinkOrders(ctx context.Context) (domain.LinkOrderResult, error) {
	unlinked, err := s.repo.ListUnlinkedInventory(ctx)
	if err != nil {
		return domain.LinkOrderResult{}, err
	}

	result := domain.LinkOrderResult{}
	for _, group := range reconcile.GroupUnlinked(unlinked) {
		orderID, err := s.repo.FindOrderByCustomerAndDate(ctx, group.CustomerName, group.SaleDate)
		if errors.Is(err, store.ErrNotFound) {
			now := s.now().UTC()
			synthetic, err := s.repo.CreateSale(ctx, domain.Sale{
				CustomerName: group.CustomerName,
				SaleDate:     group.SaleDate,
				EmployeeName: "Reconciliation",
				SaleType:     domain.SaleTypeWithoutTax,
				Synthetic:    true,
				Remarks:      "created by order reconciliation",
				CreatedAt:    now,
				UpdatedAt:    now,
			})
			if err != nil {
				return domain.LinkOrderResult{}, err
			}
			orderID = synthetic.OrderID
			result.SyntheticOrders = append(result.SyntheticOrders, orderID)
		} else if err != nil {
			return domain.LinkOrderResult{}, err
		}

		linked, err := s.repo.LinkInventoryToOrder(ctx, group.SerialNos, orderID)
		if err != nil {
			return domain.LinkOrderResult{}, err
		}
		result.LinkedGroups++
		result.LinkedDevices += linked
	}

	if result.LinkedGroups > 0 {
		s.logger.Info("inventory linked to orders",
			zap.Int("groups", result.LinkedGroups),
			zap.Int("devices", result.LinkedDevices),
			zap.Int("synthetic_orders", len(result.SyntheticOrders)))
	}
	return result, nil
}

func (s *Service) CreateLead(ctx context.Context, req domain.LeadCreateRequest) (*domain.Lead, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	if req.CustomerName == "" || req.MobileNumber == "" {
		return nil, store.ErrValidation
	}

	now := s.now().UTC()
	lead, err := s.repo.CreateLead(ctx, domain.Lead{
		CustomerName:    req.CustomerName,
		MobileNumber:    req.MobileNumber,
		AlternateMobile: strings.TrimSpace(req.AlternateMobile),
		Location:        strings.TrimSpace(req.Location),
		CompanyName:     strings.TrimSpace(req.CompanyName),
		GSTNumber:       strings.TrimSpace(req.GSTNumber),
		Email:           strings.TrimSpace(req.Email),
		CompleteAddress: strings.TrimSpace(req.CompleteAddress),
		Status:          domain.LeadStatusNew,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("lead created", zap.String("id", lead.ID), zap.Int64("customer_code", lead.CustomerCode))
	return lead, nil
}

func (s *Service) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, store.ErrValidation
	}
	return s.repo.GetLeadByID(ctx, id)
}

func (s *Service) ListLeads(ctx context.Context, limit int) ([]domain.Lead, error) {
	return s.repo.ListLeads(ctx, limit)
}

// UpdateLead applies a partial update: only fields sent with a non-empty
// value replace the stored ones, so a status-only edit works without
// resending the whole lead.
func (s *Service) UpdateLead(ctx context.Context, id string, req domain.LeadUpdateRequest) (*domain.Lead, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, store.ErrValidation
	}

	existing, err := s.repo.GetLeadByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lead := *existing
	apply := func(dst *string, val string) {
		if v := strings.TrimSpace(val); v != "" {
			*dst = v
		}
	}
	apply(&lead.CustomerName, req.CustomerName)
	apply(&lead.MobileNumber, req.MobileNumber)
	apply(&lead.AlternateMobile, req.AlternateMobile)
	apply(&lead.Location, req.Location)
	apply(&lead.CompanyName, req.CompanyName)
	apply(&lead.GSTNumber, req.GSTNumber)
	apply(&lead.Email, req.Email)
	apply(&lead.CompleteAddress, req.CompleteAddress)
	apply(&lead.Status, req.Status)
	lead.UpdatedAt = s.now().UTC()

	return s.repo.UpdateLead(ctx, lead)
}

func (s *Service) DeleteLead(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrValidation
	}
	if err := s.repo.DeleteLead(ctx, id); err != nil {
		return err
	}
	s.logger.Info("lead deleted", zap.String("id", id))
	return nil
}

func (s *Service) gstFor(saleType string, taxableCents int64) int64 {
	if saleType != domain.SaleTypeWithTax {
		return 0
	}
	return int64(math.Round(float64(taxableCents) * s.gstRate))
}

// normalizeItems drops zero-quantity and zero-price lines. An order must
// still have at least one real line after the drop.
func normalizeItems(inputs []domain.SaleItemInput) ([]domain.SaleItem, int64, error) {
	items := make([]domain.SaleItem, 0, len(inputs))
	var subtotal int64
	for _, input := range inputs {
		name := strings.TrimSpace(input.ProductName)
		if name == "" || input.Quantity <= 0 || input.UnitPriceCents <= 0 {
			continue
		}
		lineTotal := int64(input.Quantity) * input.UnitPriceCents
		items = append(items, domain.SaleItem{
			ProductName:     name,
			Quantity:        input.Quantity,
			UnitPriceCents:  input.UnitPriceCents,
			TotalPriceCents: lineTotal,
		})
		subtotal += lineTotal
	}
	if len(items) == 0 {
		return nil, 0, store.ErrValidation
	}
	return items, subtotal, nil
}

// growthPercent keeps the asymmetric zero-baseline behavior: any revenue
// against an empty previous month reads as 100% growth.
func growthPercent(previous int64, current int64) float64 {
	if previous > 0 {
		return math.Round(float64(current-previous)/float64(previous)*10000) / 100
	}
	if current > 0 {
		return 100
	}
	return 0
}

func parseDate(val string) (time.Time, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	return time.Parse(domain.DateLayout, val)
}

func parseDatePtr(val string) (*time.Time, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}
	parsed, err := time.Parse(domain.DateLayout, val)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
