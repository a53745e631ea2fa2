package handlers

import (
	"testing"

	"github.com/dvloznov/sie-import/internal/sie"
)

func TestCleanFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"bokslut.se", "bokslut.se"},
		{"/tmp/exports/2026.se", "2026.se"},
		{`C:\exports\2026.SE`, "2026.SE"},
		{"file.se?token=abc", "file.se"},
		{"", "upload.se"},
		{"/", "upload.se"},
	}

	for _, tt := range tests {
		if got := cleanFilename(tt.in); got != tt.want {
			t.Errorf("cleanFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDocumentSource(t *testing.T) {
	doc := &Document{Filename: "a.se"}
	if got := doc.source(); got != "a.se" {
		t.Errorf("source() = %q, want a.se", got)
	}

	doc.GCSURI = "gs://bucket/sie/acme/a.se"
	if got := doc.source(); got != doc.GCSURI {
		t.Errorf("source() = %q, want %q", got, doc.GCSURI)
	}
}

func TestSummarize(t *testing.T) {
	doc := &Document{
		ID:       "doc-1",
		Filename: "a.se",
		Result: sie.Parse(`#SIETYP 4
#FNAMN "Exempel AB"
#RAR 0 20260101 20261231
#KONTO 1910 "Kassa"
#UB 0 1910 100
#VER A 1 20260105 "Kaffe"
{
#TRANS 1910 {} -50
#TRANS 5460 {} 50
}
`),
	}

	got := Summarize(doc)

	if got.DocumentID != "doc-1" || got.Company.Name != "Exempel AB" {
		t.Errorf("got %+v", got)
	}
	if got.Accounts != 1 || got.ClosingBalances != 1 || got.Transactions != 1 || got.PeriodBalances != 0 {
		t.Errorf("counts = %d accounts, %d closing, %d transactions, %d period balances",
			got.Accounts, got.ClosingBalances, got.Transactions, got.PeriodBalances)
	}
	if got.Issues == nil || len(got.Issues) != 0 {
		t.Errorf("Issues = %v, want empty non-nil slice", got.Issues)
	}
	if len(got.FiscalYears) != 1 || got.FiscalYears[0].Start != "20260101" {
		t.Errorf("FiscalYears = %v", got.FiscalYears)
	}
}
