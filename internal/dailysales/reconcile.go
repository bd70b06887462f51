package dailysales

import "github.com/shopspring/decimal"

// DefaultTolerance is the absolute variance still treated as balanced.
var DefaultTolerance = decimal.NewFromInt(1)

// Reconciliation is the derived cash flow picture of one report.
type Reconciliation struct {
	POSTotal           decimal.Decimal
	ExpectedCash       decimal.Decimal
	ExpectedElectronic decimal.Decimal
	ExpectedBank       decimal.Decimal
	BankVariance       decimal.Decimal
	TakeawayVariance   decimal.Decimal
	ActualSales        decimal.Decimal
	Verified           bool
	BankBalanced       bool
	TakeawayBalanced   bool
	Tolerance          decimal.Decimal
}

// Balanced is true when both variances are within tolerance.
func (r Reconciliation) Balanced() bool {
	return r.BankBalanced && r.TakeawayBalanced
}

func val(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func money(d decimal.Decimal) decimal.Decimal {
	// decimal.Round rounds half away from zero.
	return d.Round(2)
}

func within(v, tolerance decimal.Decimal) bool {
	return v.Abs().LessThanOrEqual(tolerance)
}

// Reconcile derives totals and variances. Missing figures count as zero.
func Reconcile(r Report, tolerance decimal.Decimal) Reconciliation {
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}
	c, p, d := val(r.CashSales), val(r.ElectronicSales), val(r.SystemTakeawaySales)
	a, b := val(r.CashDifference), val(r.ElectronicDifference)

	out := Reconciliation{Tolerance: tolerance}
	out.POSTotal = money(c.Add(p).Add(d))
	out.ExpectedCash = money(c.Sub(a))
	out.ExpectedElectronic = money(p.Sub(b))
	out.ExpectedBank = money(out.ExpectedCash.Sub(val(r.BankFee)))
	out.BankVariance = money(val(r.BankDeposit).Sub(out.ExpectedBank))
	out.TakeawayVariance = money(val(r.TakeawayPlatformSales).Sub(d))
	out.ActualSales, out.Verified = ActualSales(r)
	out.BankBalanced = within(out.BankVariance, tolerance)
	out.TakeawayBalanced = within(out.TakeawayVariance, tolerance)
	return out
}

// ActualSales prefers the finance verified amounts and falls back to deposit plus vouchers.
func ActualSales(r Report) (decimal.Decimal, bool) {
	if r.VerifiedBankAmount.Valid || r.VerifiedVoucherAmount.Valid {
		return money(val(r.VerifiedBankAmount).Add(val(r.VerifiedVoucherAmount))), true
	}
	return money(val(r.BankDeposit).Add(val(r.VoucherAmount))), false
}
