package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"salesdesk/backend/internal/config"
	"salesdesk/backend/internal/domain"
	"salesdesk/backend/internal/service"
	"salesdesk/backend/internal/store"
	pgstore "salesdesk/backend/internal/store/postgres"
	sqlitestore "salesdesk/backend/internal/store/sqlite"
)

func main() {
	var (
		filePath = flag.String("file", "", "path to an .xlsx or .csv export")
		kind     = flag.String("kind", "inventory", "row kind: inventory or dispatch")
		link     = flag.Bool("link", false, "run order reconciliation after the import")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if *filePath == "" {
		logger.Fatal("-file is required")
	}
	if *kind != "inventory" && *kind != "dispatch" {
		logger.Fatal("-kind must be inventory or dispatch", zap.String("kind", *kind))
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var repo store.Repository
	var closeRepo func() error
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres unavailable", zap.Error(err))
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("postgres migration failed", zap.Error(err))
		}
		repo, closeRepo = pg, pg.Close
	case cfg.SQLitePath != "":
		lite, err := sqlitestore.New(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal("sqlite unavailable", zap.Error(err))
		}
		repo, closeRepo = lite, lite.Close
	default:
		logger.Fatal("set DATABASE_URL or SQLITE_PATH; an import needs a persistent store")
	}
	defer func() { _ = closeRepo() }()

	svc := service.New(repo, service.Options{
		Logger:                    logger,
		GSTRate:                   cfg.GSTRate,
		IncentiveRate:             cfg.IncentiveRate,
		DefaultMonthlyTargetCents: cfg.DefaultMonthlyTargetCents,
	})

	rows, err := readRows(*filePath)
	if err != nil {
		logger.Fatal("read file", zap.String("file", *filePath), zap.Error(err))
	}
	records := mapRows(rows)

	var inserted, skipped, failed int
	for _, record := range records {
		var outcome domain.UpsertOutcome
		var err error
		if *kind == "inventory" {
			outcome, err = svc.UpsertInventory(ctx, record.inventory())
		} else {
			outcome, err = svc.UpsertDispatch(ctx, record.dispatch())
		}
		if err != nil {
			failed++
			logger.Warn("row rejected", zap.String("serial_no", record.serialNo), zap.Error(err))
			continue
		}
		if outcome.Inserted {
			inserted++
		} else {
			skipped++
		}
	}

	fmt.Printf("rows: %d  inserted: %d  skipped: %d  failed: %d\n", len(records), inserted, skipped, failed)

	if *link {
		result, err := svc.LinkOrders(ctx)
		if err != nil {
			logger.Fatal("link orders", zap.Error(err))
		}
		fmt.Printf("linked groups: %d  linked devices: %d  synthetic orders: %d\n",
			result.LinkedGroups, result.LinkedDevices, len(result.SyntheticOrders))
		for _, orderID := range result.SyntheticOrders {
			fmt.Printf("  synthetic order %s\n", orderID)
		}
	}
}

// importRecord is a column-remapped spreadsheet row. Dates are already
// normalized to the wire format.
type importRecord struct {
	serialNo     string
	modelName    string
	inDate       string
	dispatchDate string
	saleDate     string
	customerName string
	orderID      string
	courier      string
	trackingNo   string
	qcStatus     string
	warranty     bool
}

func (r importRecord) inventory() domain.InventoryUpsertRequest {
	return domain.InventoryUpsertRequest{
		SerialNo:     r.serialNo,
		ModelName:    r.modelName,
		InDate:       r.inDate,
		DispatchDate: r.dispatchDate,
		SaleDate:     r.saleDate,
		CustomerName: r.customerName,
		OrderID:      r.orderID,
		Warranty:     r.warranty,
	}
}

func (r importRecord) dispatch() domain.DispatchUpsertRequest {
	return domain.DispatchUpsertRequest{
		SerialNo:     r.serialNo,
		OrderID:      r.orderID,
		CustomerName: r.customerName,
		Courier:      r.courier,
		TrackingNo:   r.trackingNo,
		QCStatus:     r.qcStatus,
		DispatchDate: r.dispatchDate,
	}
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path)
	case ".csv":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q, want .xlsx or .csv", filepath.Ext(path))
	}
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

// columnAliases maps the header spellings seen in real exports onto
// canonical field names.
var columnAliases = map[string]string{
	"serial_no":        "serial_no",
	"serial_number":    "serial_no",
	"device_serial_no": "serial_no",
	"imei":             "serial_no",
	"model":            "model_name",
	"model_name":       "model_name",
	"device_model":     "model_name",
	"in_date":          "in_date",
	"inward_date":      "in_date",
	"dispatch_date":    "dispatch_date",
	"dispatched_on":    "dispatch_date",
	"sale_date":        "sale_date",
	"date_of_sale":     "sale_date",
	"customer":         "customer_name",
	"customer_name":    "customer_name",
	"party_name":       "customer_name",
	"order_id":         "order_id",
	"order_no":         "order_id",
	"courier":          "courier",
	"courier_name":     "courier",
	"tracking_no":      "tracking_no",
	"awb_no":           "tracking_no",
	"qc_status":        "qc_status",
	"qc":               "qc_status",
	"warranty":         "warranty",
}

// normalizeHeader lowercases a header cell and collapses every run of
// non-alphanumeric characters to a single underscore.
func normalizeHeader(raw string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// mapRows turns raw sheet rows into records. The first row is the header;
// rows without a serial number are dropped.
func mapRows(rows [][]string) []importRecord {
	if len(rows) < 2 {
		return nil
	}

	fieldByColumn := make(map[int]string)
	for i, header := range rows[0] {
		if field, ok := columnAliases[normalizeHeader(header)]; ok {
			fieldByColumn[i] = field
		}
	}

	records := make([]importRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var record importRecord
		for i, cell := range row {
			value := strings.TrimSpace(cell)
			if value == "" {
				continue
			}
			switch fieldByColumn[i] {
			case "serial_no":
				record.serialNo = value
			case "model_name":
				record.modelName = value
			case "in_date":
				record.inDate = normalizeDate(value)
			case "dispatch_date":
				record.dispatchDate = normalizeDate(value)
			case "sale_date":
				record.saleDate = normalizeDate(value)
			case "customer_name":
				record.customerName = value
			case "order_id":
				record.orderID = value
			case "courier":
				record.courier = value
			case "tracking_no":
				record.trackingNo = value
			case "qc_status":
				record.qcStatus = value
			case "warranty":
				record.warranty = parseBool(value)
			}
		}
		if record.serialNo == "" {
			continue
		}
		records = append(records, record)
	}
	return records
}

var dateLayouts = []string{
	domain.DateLayout,
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"2-Jan-2006",
	"2 Jan 2006",
	"January 2, 2006",
}

// normalizeDate converts a spreadsheet date cell, either a recognized text
// layout or an Excel serial number, to the wire format. Unparseable values
// pass through untouched so the service can reject them with context.
func normalizeDate(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(domain.DateLayout)
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 {
		return excelEpochDate(serial).Format(domain.DateLayout)
	}
	return value
}

// excelEpochDate converts an Excel serial day number to a date. Excel's
// epoch is 1899-12-30 because of its historical leap-year bug.
func excelEpochDate(serial float64) time.Time {
	epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	return epoch.AddDate(0, 0, int(serial))
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "true", "1", "active":
		return true
	default:
		return false
	}
}
