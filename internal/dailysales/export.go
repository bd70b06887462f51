package dailysales

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Reports"

var exportHeadings = []string{
	"ID", "Store", "Store name", "Report date", "Created by",
	"Cash (C)", "Electronic (P)", "System takeaway (D)", "Vouchers (R)", "Cash diff (A)", "Electronic diff (B)",
	"Takeaway platform (Q2)", "Bank deposit", "Bank fee",
	"POS total", "Expected bank", "Bank variance", "Takeaway variance", "Actual sales",
	"Submitted", "Status", "Archived", "Remark",
}

func cellMoney(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	f, _ := d.Decimal.Float64()
	return f
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// WriteXLSX writes the reports as a spreadsheet with one row per report.
func WriteXLSX(w io.Writer, reports []Report, tolerance decimal.Decimal) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("dailysales: export sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeadings); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeadings), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, bold); err != nil {
		return err
	}
	for i, r := range reports {
		rec := Reconcile(r, tolerance)
		f64 := func(d decimal.Decimal) float64 { v, _ := d.Float64(); return v }
		row := []any{
			r.ID, r.StoreID, r.StoreName, r.Day(), r.CreatedBy,
			cellMoney(r.CashSales), cellMoney(r.ElectronicSales), cellMoney(r.SystemTakeawaySales), cellMoney(r.VoucherAmount),
			cellMoney(r.CashDifference), cellMoney(r.ElectronicDifference),
			cellMoney(r.TakeawayPlatformSales), cellMoney(r.BankDeposit), cellMoney(r.BankFee),
			f64(rec.POSTotal), f64(rec.ExpectedBank), f64(rec.BankVariance), f64(rec.TakeawayVariance), f64(rec.ActualSales),
			yesNo(r.Submitted), r.Status.Label(), yesNo(r.Archived), r.Remark,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}
	if len(reports) > 0 {
		from, _ := excelize.CoordinatesToCellName(6, 2)
		to, _ := excelize.CoordinatesToCellName(19, len(reports)+1)
		if err := f.SetCellStyle(exportSheet, from, to, money); err != nil {
			return err
		}
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return f.Write(w)
}
