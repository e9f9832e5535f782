package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"salesdesk/backend/internal/cache"
	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/store"
	"salesdesk/backend/internal/store/memory"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	svc := New(repo, Options{
		ReportCache:               cache.NoopReportCache{},
		Now:                       func() time.Time { return testNow },
		GSTRate:                   0.18,
		IncentiveRate:             0.01,
		DefaultMonthlyTargetCents: 55_000_000,
	})
	return svc, repo
}

func saleRequest() domain.SaleCreateRequest {
	return domain.SaleCreateRequest{
		CustomerName: "Acme Traders",
		SaleDate:     "2026-03-10",
		EmployeeName: "Priya",
		SaleType:     domain.SaleTypeWithTax,
		Items: []domain.SaleItemInput{
			{ProductName: "Tracker X1", Quantity: 2, UnitPriceCents: 10000},
			{ProductName: "Mount Kit", Quantity: 0, UnitPriceCents: 5000},
		},
		CourierCostCents: 1000,
	}
}

func TestCreateSaleComputesTotalsAndDropsEmptyLines(t *testing.T) {
	svc, _ := newTestService()

	resp, err := svc.CreateSale(context.Background(), saleRequest())
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if resp.TotalCents != 24780 {
		t.Fatalf("expected total 24780, got %d", resp.TotalCents)
	}
	if resp.BalanceCents != 24780 {
		t.Fatalf("expected balance 24780, got %d", resp.BalanceCents)
	}

	sale, err := svc.GetSale(context.Background(), resp.OrderID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if sale.SubtotalCents != 20000 {
		t.Fatalf("expected subtotal 20000, got %d", sale.SubtotalCents)
	}
	if sale.GSTCents != 3780 {
		t.Fatalf("expected gst 3780, got %d", sale.GSTCents)
	}
	if len(sale.Items) != 1 {
		t.Fatalf("expected the zero-qty line to be dropped, got %d items", len(sale.Items))
	}
	if sale.PaymentStatus() != domain.PaymentStatusPending {
		t.Fatalf("expected pending status, got %s", sale.PaymentStatus())
	}
}

func TestCreateSaleWithoutTaxHasNoGST(t *testing.T) {
	svc, _ := newTestService()

	req := saleRequest()
	req.SaleType = domain.SaleTypeWithoutTax
	resp, err := svc.CreateSale(context.Background(), req)
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if resp.TotalCents != 21000 {
		t.Fatalf("expected total 21000, got %d", resp.TotalCents)
	}
}

func TestCreateSaleRejectsEmptyItemList(t *testing.T) {
	svc, _ := newTestService()

	req := saleRequest()
	req.Items = []domain.SaleItemInput{
		{ProductName: "Tracker X1", Quantity: 0, UnitPriceCents: 10000},
		{ProductName: "Mount Kit", Quantity: 3, UnitPriceCents: 0},
	}
	if _, err := svc.CreateSale(context.Background(), req); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error when every line drops, got %v", err)
	}

	req.Items = nil
	if _, err := svc.CreateSale(context.Background(), req); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for nil items, got %v", err)
	}
}

func TestCreateSaleRejectsOverpayment(t *testing.T) {
	svc, _ := newTestService()

	req := saleRequest()
	req.AmountReceivedCents = 30000
	if _, err := svc.CreateSale(context.Background(), req); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateSaleRecordsInitialPayment(t *testing.T) {
	svc, _ := newTestService()

	req := saleRequest()
	req.AmountReceivedCents = 10000
	resp, err := svc.CreateSale(context.Background(), req)
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if resp.BalanceCents != 14780 {
		t.Fatalf("expected balance 14780, got %d", resp.BalanceCents)
	}

	sale, err := svc.GetSale(context.Background(), resp.OrderID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if len(sale.Payments) != 1 {
		t.Fatalf("expected one payment event, got %d", len(sale.Payments))
	}
	if sale.Payments[0].PaymentDate.Format(domain.DateLayout) != "2026-03-10" {
		t.Fatalf("expected initial payment dated at sale date, got %s", sale.Payments[0].PaymentDate)
	}
	if sale.PaymentStatus() != domain.PaymentStatusPartial {
		t.Fatalf("expected partial status, got %s", sale.PaymentStatus())
	}
}

func TestOrderIDsAreSequential(t *testing.T) {
	svc, _ := newTestService()

	first, err := svc.CreateSale(context.Background(), saleRequest())
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	second, err := svc.CreateSale(context.Background(), saleRequest())
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if first.OrderID != "1001" || second.OrderID != "1002" {
		t.Fatalf("expected order ids 1001 and 1002, got %s and %s", first.OrderID, second.OrderID)
	}
}

func TestApplyPaymentAccumulatesAndSettles(t *testing.T) {
	svc, _ := newTestService()

	resp, err := svc.CreateSale(context.Background(), saleRequest())
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	payment, err := svc.ApplyPayment(context.Background(), resp.OrderID, domain.PaymentRequest{
		PaymentDate: "2026-03-12",
		AmountCents: 10000,
	})
	if err != nil {
		t.Fatalf("apply payment failed: %v", err)
	}
	if payment.BalanceCents != 14780 || payment.PaymentStatus != domain.PaymentStatusPartial {
		t.Fatalf("unexpected payment state: %+v", payment)
	}

	payment, err = svc.ApplyPayment(context.Background(), resp.OrderID, domain.PaymentRequest{
		PaymentDate: "2026-03-14",
		AmountCents: 14780,
	})
	if err != nil {
		t.Fatalf("apply payment failed: %v", err)
	}
	if payment.BalanceCents != 0 || payment.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected settled sale, got %+v", payment)
	}

	sale, err := svc.GetSale(context.Background(), resp.OrderID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	var sum int64
	for _, event := range sale.Payments {
		sum += event.AmountCents
	}
	if sum != sale.AmountReceivedCents {
		t.Fatalf("payment sum %d does not match amount received %d", sum, sale.AmountReceivedCents)
	}
}

func TestApplyPaymentRejectsOverdraw(t *testing.T) {
	svc, _ := newTestService()

	resp, err := svc.CreateSale(context.Background(), saleRequest())
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	_, err = svc.ApplyPayment(context.Background(), resp.OrderID, domain.PaymentRequest{
		PaymentDate: "2026-03-12",
		AmountCents: resp.BalanceCents + 1,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.ApplyPayment(context.Background(), resp.OrderID, domain.PaymentRequest{
		PaymentDate: "2026-03-12",
		AmountCents: 0,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
}

func TestApplyPaymentConflictUnderRowLock(t *testing.T) {
	svc, repo := newTestService()

	resp, err := svc.CreateSale(context.Background(), saleRequest())
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	// A payment that was valid against a stale read must fail the locked
	// re-check once a concurrent payment has shrunk the balance.
	if _, err := svc.ApplyPayment(context.Background(), resp.OrderID, domain.PaymentRequest{
		PaymentDate: "2026-03-12",
		AmountCents: 20000,
	}); err != nil {
		t.Fatalf("apply payment failed: %v", err)
	}
	_, err = repo.ApplyPayment(context.Background(), resp.OrderID, domain.PaymentEvent{
		PaymentDate: testNow,
		AmountCents: 20000,
		CreatedAt:   testNow,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict from locked re-check, got %v", err)
	}
}

func TestConcurrentPaymentsNeverOverdraw(t *testing.T) {
	svc, _ := newTestService()

	resp, err := svc.CreateSale(context.Background(), saleRequest())
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	amount := resp.BalanceCents/2 + 1000
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyPayment(context.Background(), resp.OrderID, domain.PaymentRequest{
				PaymentDate: "2026-03-12",
				AmountCents: amount,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, failed := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrValidation) {
			failed++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || failed != 1 {
		t.Fatalf("expected exactly one success and one rejection, got %d/%d", succeeded, failed)
	}

	sale, err := svc.GetSale(context.Background(), resp.OrderID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if sale.BalanceCents < 0 {
		t.Fatalf("balance went negative: %d", sale.BalanceCents)
	}
}

func TestMergeDuplicatesKeepsEarliestAndPayments(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	t1 := testNow.Add(-2 * time.Hour)
	t2 := testNow.Add(-time.Hour)
	if _, err := repo.CreateSale(ctx, domain.Sale{
		OrderID:       "2001",
		CustomerName:  "Acme Traders",
		SaleDate:      testNow.AddDate(0, 0, -5),
		EmployeeName:  "Priya",
		SaleType:      domain.SaleTypeWithoutTax,
		SubtotalCents: 50000,
		TotalCents:    50000,
		CreatedAt:     t1,
		UpdatedAt:     t1,
		Payments: []domain.PaymentEvent{
			{PaymentDate: testNow.AddDate(0, 0, -5), AmountCents: 20000, CreatedAt: t1},
		},
	}); err != nil {
		t.Fatalf("seed sale failed: %v", err)
	}
	if _, err := repo.CreateSale(ctx, domain.Sale{
		OrderID:       "2001",
		CustomerName:  "Acme Traders",
		SaleDate:      testNow.AddDate(0, 0, -5),
		EmployeeName:  "Priya",
		SaleType:      domain.SaleTypeWithoutTax,
		SubtotalCents: 10000,
		TotalCents:    10000,
		CreatedAt:     t2,
		UpdatedAt:     t2,
		Payments: []domain.PaymentEvent{
			{PaymentDate: testNow.AddDate(0, 0, -4), AmountCents: 5000, CreatedAt: t2},
		},
	}); err != nil {
		t.Fatalf("seed duplicate failed: %v", err)
	}

	result, err := svc.MergeDuplicates(ctx)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if result.Merged != 1 {
		t.Fatalf("expected 1 merged row, got %d", result.Merged)
	}

	survivor, err := svc.GetSale(ctx, "2001")
	if err != nil {
		t.Fatalf("get survivor failed: %v", err)
	}
	if !survivor.CreatedAt.Equal(t1) {
		t.Fatalf("expected the earliest row to survive")
	}
	if len(survivor.Payments) != 2 {
		t.Fatalf("expected both payment events on the survivor, got %d", len(survivor.Payments))
	}
	if survivor.AmountReceivedCents != 25000 {
		t.Fatalf("expected recomputed amount received 25000, got %d", survivor.AmountReceivedCents)
	}

	again, err := svc.MergeDuplicates(ctx)
	if err != nil {
		t.Fatalf("second merge failed: %v", err)
	}
	if again.Merged != 0 {
		t.Fatalf("merge is not idempotent, merged %d on second run", again.Merged)
	}
}

func TestUpdateSaleRecomputesDerivedAmounts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	req := saleRequest()
	req.AmountReceivedCents = 5000
	resp, err := svc.CreateSale(ctx, req)
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	updated, err := svc.UpdateSale(ctx, resp.OrderID, domain.SaleUpdateRequest{
		CustomerName: "Acme Traders",
		SaleDate:     "2026-03-10",
		EmployeeName: "Priya",
		SaleType:     domain.SaleTypeWithTax,
		Items: []domain.SaleItemInput{
			{ProductName: "Tracker X1", Quantity: 1, UnitPriceCents: 10000},
		},
	})
	if err != nil {
		t.Fatalf("update sale failed: %v", err)
	}
	if updated.SubtotalCents != 10000 {
		t.Fatalf("expected subtotal 10000, got %d", updated.SubtotalCents)
	}
	if updated.GSTCents != 1800 || updated.TotalCents != 11800 {
		t.Fatalf("expected recomputed gst/total 1800/11800, got %d/%d", updated.GSTCents, updated.TotalCents)
	}
	if updated.AmountReceivedCents != 5000 {
		t.Fatalf("update must not touch amount received, got %d", updated.AmountReceivedCents)
	}
	if updated.BalanceCents != 6800 {
		t.Fatalf("expected balance 6800, got %d", updated.BalanceCents)
	}
}

func TestGrowthPercentFallbacks(t *testing.T) {
	if got := growthPercent(0, 1000); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}
	if got := growthPercent(0, 0); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := growthPercent(500, 750); got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
}

func TestEmployeeComparisonWindows(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	seed := func(employee string, date time.Time, totalCents int64) {
		t.Helper()
		if _, err := repo.CreateSale(ctx, domain.Sale{
			CustomerName:  "Acme Traders",
			SaleDate:      date,
			EmployeeName:  employee,
			SaleType:      domain.SaleTypeWithoutTax,
			SubtotalCents: totalCents,
			TotalCents:    totalCents,
			CreatedAt:     date,
			UpdatedAt:     date,
		}); err != nil {
			t.Fatalf("seed sale failed: %v", err)
		}
	}
	seed("Priya", time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC), 500)
	seed("Priya", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC), 750)
	seed("Rahul", time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC), 1000)

	comparisons, err := svc.EmployeeComparison(ctx)
	if err != nil {
		t.Fatalf("comparison failed: %v", err)
	}
	byName := make(map[string]domain.EmployeeComparison, len(comparisons))
	for _, c := range comparisons {
		byName[c.EmployeeName] = c
	}
	if got := byName["Priya"]; got.GrowthPercent != 50 || got.CurrentMonthCents != 750 || got.PreviousMonthCents != 500 {
		t.Fatalf("unexpected Priya comparison: %+v", got)
	}
	if got := byName["Rahul"]; got.GrowthPercent != 100 || got.PreviousMonthCents != 0 {
		t.Fatalf("unexpected Rahul comparison: %+v", got)
	}
}

func TestIncentiveComputation(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	if err := repo.SetEmployeeTarget(ctx, "Priya", 55_000_000); err != nil {
		t.Fatalf("set target failed: %v", err)
	}
	if _, err := repo.CreateSale(ctx, domain.Sale{
		CustomerName:  "Acme Traders",
		SaleDate:      time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
		EmployeeName:  "Priya",
		SaleType:      domain.SaleTypeWithoutTax,
		SubtotalCents: 60_000_000,
		TotalCents:    60_000_000,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}); err != nil {
		t.Fatalf("seed sale failed: %v", err)
	}

	snapshots, err := svc.Incentives(ctx, true)
	if err != nil {
		t.Fatalf("incentives failed: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(snapshots))
	}
	snap := snapshots[0]
	if snap.ExceedingCents != 5_000_000 {
		t.Fatalf("expected exceeding 5000000, got %d", snap.ExceedingCents)
	}
	if snap.IncentiveEarnedCents != 50_000 {
		t.Fatalf("expected incentive 50000, got %d", snap.IncentiveEarnedCents)
	}
	if snap.Status != domain.IncentiveStatusAchieved {
		t.Fatalf("expected achieved status, got %s", snap.Status)
	}

	// Upsert key is (employee, month, year): recomputing must not duplicate.
	if _, err := svc.Incentives(ctx, true); err != nil {
		t.Fatalf("second incentive run failed: %v", err)
	}
	stored, err := repo.ListIncentiveSnapshots(ctx, int(testNow.Month()), testNow.Year())
	if err != nil {
		t.Fatalf("list snapshots failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected one stored snapshot, got %d", len(stored))
	}
}

func TestSummaryEmptyPeriodIsZero(t *testing.T) {
	svc, _ := newTestService()

	summary, err := svc.Summary(context.Background(), domain.PeriodMonth)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.SaleCount != 0 || summary.RevenueCents != 0 || summary.BalanceCents != 0 {
		t.Fatalf("expected all-zero summary, got %+v", summary)
	}
}

func TestSummaryAggregatesWindow(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	req := saleRequest()
	req.AmountReceivedCents = 10000
	if _, err := svc.CreateSale(ctx, req); err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	summary, err := svc.Summary(ctx, domain.PeriodMonth)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.SaleCount != 1 || summary.RevenueCents != 24780 || summary.ReceivedCents != 10000 || summary.BalanceCents != 14780 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if _, err := svc.Summary(ctx, "decade"); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for unknown period, got %v", err)
	}
}

func TestLinkOrdersMatchesAndSynthesizes(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	resp, err := svc.CreateSale(ctx, saleRequest())
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	for _, req := range []domain.InventoryUpsertRequest{
		{SerialNo: "SN-1", ModelName: "Tracker X1", CustomerName: "ACME traders", SaleDate: "2026-03-10"},
		{SerialNo: "SN-2", ModelName: "Tracker X1", CustomerName: "Unknown Buyer", SaleDate: "2026-03-11"},
	} {
		if _, err := svc.UpsertInventory(ctx, req); err != nil {
			t.Fatalf("upsert inventory failed: %v", err)
		}
	}

	result, err := svc.LinkOrders(ctx)
	if err != nil {
		t.Fatalf("link orders failed: %v", err)
	}
	if result.LinkedGroups != 2 || result.LinkedDevices != 2 {
		t.Fatalf("unexpected link result: %+v", result)
	}
	if len(result.SyntheticOrders) != 1 {
		t.Fatalf("expected one synthetic order, got %v", result.SyntheticOrders)
	}
	if result.SyntheticOrders[0] != "9000001" {
		t.Fatalf("expected synthetic order from the reserved range, got %s", result.SyntheticOrders[0])
	}

	items, err := svc.ListInventory(ctx, 0)
	if err != nil {
		t.Fatalf("list inventory failed: %v", err)
	}
	for _, item := range items {
		switch item.SerialNo {
		case "SN-1":
			if item.OrderID != resp.OrderID {
				t.Fatalf("expected SN-1 linked to %s, got %s", resp.OrderID, item.OrderID)
			}
		case "SN-2":
			if item.OrderID != "9000001" {
				t.Fatalf("expected SN-2 linked to synthetic order, got %s", item.OrderID)
			}
		}
	}

	// Everything is linked now, a second pass is a no-op.
	again, err := svc.LinkOrders(ctx)
	if err != nil {
		t.Fatalf("second link failed: %v", err)
	}
	if again.LinkedGroups != 0 || len(again.SyntheticOrders) != 0 {
		t.Fatalf("expected idempotent second pass, got %+v", again)
	}
}

func TestUpsertInventorySkipsExistingSerial(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.UpsertInventory(ctx, domain.InventoryUpsertRequest{
		SerialNo: "SN-9", ModelName: "Tracker X1", OrderID: "1001",
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if !first.Inserted {
		t.Fatalf("expected insert on first upsert")
	}

	second, err := svc.UpsertInventory(ctx, domain.InventoryUpsertRequest{
		SerialNo: "SN-9", ModelName: "Different Model", OrderID: "2002",
	})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if second.Inserted {
		t.Fatalf("existing serial must not be overwritten")
	}
	if second.OrderID != "1001" {
		t.Fatalf("expected existing order id back, got %s", second.OrderID)
	}
}

func TestUpsertDispatchResolvesOrderByCustomerAndDate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	resp, err := svc.CreateSale(ctx, saleRequest())
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	outcome, err := svc.UpsertDispatch(ctx, domain.DispatchUpsertRequest{
		SerialNo:     "SN-20",
		CustomerName: "acme traders",
		DispatchDate: "2026-03-10",
		QCStatus:     "passed",
	})
	if err != nil {
		t.Fatalf("upsert dispatch failed: %v", err)
	}
	if !outcome.Inserted {
		t.Fatalf("expected dispatch insert")
	}
	if outcome.OrderID != resp.OrderID {
		t.Fatalf("expected resolved order %s, got %s", resp.OrderID, outcome.OrderID)
	}
}

func TestInventoryStatusDerivedFromDispatchDate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.UpsertInventory(ctx, domain.InventoryUpsertRequest{
		SerialNo: "SN-30", ModelName: "Tracker X1",
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if _, err := svc.UpsertInventory(ctx, domain.InventoryUpsertRequest{
		SerialNo: "SN-31", ModelName: "Tracker X1", DispatchDate: "2026-03-01",
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	items, err := svc.ListInventory(ctx, 0)
	if err != nil {
		t.Fatalf("list inventory failed: %v", err)
	}
	for _, item := range items {
		switch item.SerialNo {
		case "SN-30":
			if item.Status() != domain.InventoryStatusInStock {
				t.Fatalf("expected in stock, got %s", item.Status())
			}
		case "SN-31":
			if item.Status() != domain.InventoryStatusDispatched {
				t.Fatalf("expected dispatched, got %s", item.Status())
			}
		}
	}
}

func TestLeadLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	lead, err := svc.CreateLead(ctx, domain.LeadCreateRequest{
		CustomerName: "Bright Mart",
		MobileNumber: "9876543210",
	})
	if err != nil {
		t.Fatalf("create lead failed: %v", err)
	}
	if lead.Status != domain.LeadStatusNew {
		t.Fatalf("expected new status, got %s", lead.Status)
	}
	if lead.CustomerCode != 1001 {
		t.Fatalf("expected first customer code 1001, got %d", lead.CustomerCode)
	}

	second, err := svc.CreateLead(ctx, domain.LeadCreateRequest{
		CustomerName: "Acme Traders",
		MobileNumber: "9123456780",
	})
	if err != nil {
		t.Fatalf("create second lead failed: %v", err)
	}
	if second.CustomerCode != 1002 {
		t.Fatalf("expected customer code 1002, got %d", second.CustomerCode)
	}

	updated, err := svc.UpdateLead(ctx, lead.ID, domain.LeadUpdateRequest{
		CustomerName: "Bright Mart",
		MobileNumber: "9876543210",
		Status:       "Contacted",
	})
	if err != nil {
		t.Fatalf("update lead failed: %v", err)
	}
	if updated.Status != "Contacted" || updated.CustomerCode != 1001 {
		t.Fatalf("unexpected updated lead: %+v", updated)
	}

	if err := svc.DeleteLead(ctx, lead.ID); err != nil {
		t.Fatalf("delete lead failed: %v", err)
	}
	if _, err := svc.GetLead(ctx, lead.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestUpdateLeadStatusOnlyKeepsOtherFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	lead, err := svc.CreateLead(ctx, domain.LeadCreateRequest{
		CustomerName: "Bright Mart",
		MobileNumber: "9876543210",
		Location:     "Pune",
	})
	if err != nil {
		t.Fatalf("create lead failed: %v", err)
	}

	updated, err := svc.UpdateLead(ctx, lead.ID, domain.LeadUpdateRequest{Status: "Contacted"})
	if err != nil {
		t.Fatalf("status-only update failed: %v", err)
	}
	if updated.Status != "Contacted" {
		t.Fatalf("expected status Contacted, got %s", updated.Status)
	}
	if updated.CustomerName != "Bright Mart" || updated.MobileNumber != "9876543210" || updated.Location != "Pune" {
		t.Fatalf("partial update clobbered stored fields: %+v", updated)
	}
	if updated.CustomerCode != lead.CustomerCode {
		t.Fatalf("customer code changed on update: %d -> %d", lead.CustomerCode, updated.CustomerCode)
	}

	renamed, err := svc.UpdateLead(ctx, lead.ID, domain.LeadUpdateRequest{CustomerName: "Bright Mart Pvt Ltd"})
	if err != nil {
		t.Fatalf("rename update failed: %v", err)
	}
	if renamed.CustomerName != "Bright Mart Pvt Ltd" || renamed.Status != "Contacted" {
		t.Fatalf("rename dropped earlier update: %+v", renamed)
	}

	if _, err := svc.UpdateLead(ctx, "missing-id", domain.LeadUpdateRequest{Status: "Contacted"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown lead, got %v", err)
	}
}

func TestGetSaleUnknownOrder(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.GetSale(context.Background(), "9999"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
