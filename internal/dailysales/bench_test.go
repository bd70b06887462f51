package dailysales

import (
	"fmt"
	"io"
	"testing"
	"time"
)

func benchReports(n int) []Report {
	out := make([]Report, n)
	for i := range out {
		out[i] = Report{
			ID:                    int64(i + 1),
			StoreID:               fmt.Sprint(190 + i%6),
			ReportDate:            time.Date(2026, 10, 1+i%28, 0, 0, 0, 0, time.UTC),
			CashSales:             dec("1000.00"),
			ElectronicSales:       dec("500.00"),
			SystemTakeawaySales:   dec("200.00"),
			VoucherAmount:         dec("50.00"),
			TakeawayPlatformSales: dec("200.00"),
			BankDeposit:           dec("995.00"),
			BankFee:               dec("5.00"),
		}
	}
	return out
}

func BenchmarkReconcile(b *testing.B) {
	r := benchReports(1)[0]
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Reconcile(r, DefaultTolerance)
	}
}

func BenchmarkSelectDuplicates(b *testing.B) {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	cands := make([]DuplicateCandidate, 0, 6*30*3)
	id := int64(1)
	for store := 0; store < 6; store++ {
		for day := 0; day < 30; day++ {
			for copyN := 0; copyN < 3; copyN++ {
				cands = append(cands, DuplicateCandidate{
					ID:         id,
					StoreID:    fmt.Sprint(store),
					ReportDate: base.AddDate(0, 0, day),
					CreatedAt:  base.Add(time.Duration(copyN) * time.Hour),
				})
				id++
			}
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if got := selectDuplicates(cands); len(got) != 6*30*2 {
			b.Fatalf("expected %d duplicates, got %d", 6*30*2, len(got))
		}
	}
}

// A month of reports for every store should export well under a second.
func BenchmarkWriteXLSX(b *testing.B) {
	reports := benchReports(6 * 31)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := WriteXLSX(io.Discard, reports, DefaultTolerance); err != nil {
			b.Fatal(err)
		}
	}
}
