package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestReadCSV_RaggedRowsAndBOM(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pds.csv",
		"\ufeffState_Name, District_Name ,month\n"+
			"Uttar Pradesh,Agra,2024-01-01\n"+
			"\n"+
			"Uttar Pradesh,Lucknow\n")

	tbl, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	if tbl.Columns[0] != "State_Name" {
		t.Errorf("BOM not stripped: got %q", tbl.Columns[0])
	}
	if tbl.Len() != 2 {
		t.Fatalf("Expected 2 rows (blank dropped), got %d", tbl.Len())
	}
	if got := tbl.Value(1, 2); got != "" {
		t.Errorf("Ragged cell should be empty, got %q", got)
	}
	if got := tbl.Value(0, 1); got != "Agra" {
		t.Errorf("Value(0,1) = %q, want Agra", got)
	}
}

func TestReadXLSX_FirstSheet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pds.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"state_name", "district_name", "month", "total_wheat_allocated"},
		{"Uttar Pradesh", "Agra", "2024-01-01", 1000},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	tbl, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if len(tbl.Columns) != 4 || tbl.Len() != 1 {
		t.Fatalf("Unexpected shape: %d cols, %d rows", len(tbl.Columns), tbl.Len())
	}
	if got := tbl.Value(0, 3); got != "1000" {
		t.Errorf("allocation cell = %q, want 1000", got)
	}
}

func TestReadTable_UnsupportedExtension(t *testing.T) {
	_, err := ReadTable("report.pdf")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLatestFile_PrefersFirstPattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "up_aggregated_matches_2025-12.csv", "source_file\n")
	writeFile(t, dir, "pgsm_grievance_signals_2024-01.csv", "month,grievance_signals\n")
	writeFile(t, dir, "pgsm_grievance_signals_2024-06.csv", "month,grievance_signals\n")

	path, err := LatestFile(dir, DefaultGrievancePatterns...)
	if err != nil {
		t.Fatalf("LatestFile failed: %v", err)
	}
	if !strings.HasSuffix(path, "pgsm_grievance_signals_2024-06.csv") {
		t.Errorf("Expected newest structured export, got %s", path)
	}
}

func TestLatestFile_FallsBackToLegacy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "up_aggregated_matches_2023-01.csv", "source_file\n")

	path, err := LatestFile(dir, DefaultGrievancePatterns...)
	if err != nil {
		t.Fatalf("LatestFile failed: %v", err)
	}
	if filepath.Base(path) != "up_aggregated_matches_2023-01.csv" {
		t.Errorf("Expected legacy file, got %s", path)
	}
}

func TestGlobSource_NoFiles(t *testing.T) {
	src := NewGlobSource(t.TempDir(), DefaultGrievancePatterns...)
	_, err := src.Fetch(context.Background())
	if !errors.Is(err, ErrNoSourceFile) {
		t.Errorf("Expected ErrNoSourceFile, got %v", err)
	}
}

func TestFileSource_FingerprintChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.csv", "x\n1\n")
	src := NewFileSource(path)

	fp1, err := src.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	writeFile(t, dir, "a.csv", "x\n1\n2\n")
	fp2, err := src.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if fp1 == fp2 {
		t.Error("Fingerprint should change when file size changes")
	}
}

func TestStaticSource_FetchReturnsCopy(t *testing.T) {
	src := NewStaticSource("fixture", &Table{
		Columns: []string{"District", "Month"},
		Rows:    [][]string{{"Agra", "2024-01"}},
	})

	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	got.Rows[0][0] = "Changed"

	again, _ := src.Fetch(context.Background())
	if again.Value(0, 0) != "Agra" {
		t.Errorf("Fetch should not expose the backing table, got %q", again.Value(0, 0))
	}

	fp, err := src.Fingerprint()
	if err != nil || fp != "static:fixture|1" {
		t.Errorf("Fingerprint: got %q, %v", fp, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Fetch(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch on cancelled context: got %v", err)
	}
}
