package main

import "testing"

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"Serial No":           "serial_no",
		"  DEVICE SERIAL NO ": "device_serial_no",
		"Dispatch Date":       "dispatch_date",
		"AWB No.":             "awb_no",
		"model":               "model",
		"Sr. No":              "sr_no",
	}
	for raw, want := range cases {
		if got := normalizeHeader(raw); got != want {
			t.Fatalf("normalizeHeader(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := map[string]string{
		"2026-03-10": "2026-03-10",
		"10-03-2026": "2026-03-10",
		"10/03/2026": "2026-03-10",
		"2 Jan 2026": "2026-01-02",
		"45999":      "2025-12-08",
		"not-a-date": "not-a-date",
		"":           "",
	}
	for raw, want := range cases {
		if got := normalizeDate(raw); got != want {
			t.Fatalf("normalizeDate(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestMapRowsRemapsColumnsAndDropsBlankSerials(t *testing.T) {
	rows := [][]string{
		{"Sr. No", "Serial No", "Model", "Dispatch Date", "Party Name", "Order No", "Warranty"},
		{"1", "SN-100", "Tracker X1", "10-03-2026", "Acme Traders", "1001", "Yes"},
		{"2", "", "Tracker X1", "", "", "", ""},
		{"3", "SN-101", "Tracker X2", "45999", "Nova Retail", "", "no"},
	}

	records := mapRows(rows)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.serialNo != "SN-100" || first.modelName != "Tracker X1" {
		t.Fatalf("unexpected first record %+v", first)
	}
	if first.dispatchDate != "2026-03-10" {
		t.Fatalf("expected remapped dispatch date, got %q", first.dispatchDate)
	}
	if first.customerName != "Acme Traders" || first.orderID != "1001" {
		t.Fatalf("unexpected customer/order %+v", first)
	}
	if !first.warranty {
		t.Fatalf("expected warranty true")
	}

	second := records[1]
	if second.serialNo != "SN-101" {
		t.Fatalf("unexpected second record %+v", second)
	}
	if second.dispatchDate != "2025-12-08" {
		t.Fatalf("expected excel serial date conversion, got %q", second.dispatchDate)
	}
	if second.warranty {
		t.Fatalf("expected warranty false")
	}
}

func TestMapRowsHeaderOnly(t *testing.T) {
	rows := [][]string{{"Serial No", "Model"}}
	if records := mapRows(rows); records != nil {
		t.Fatalf("expected nil for header-only input, got %v", records)
	}
}
