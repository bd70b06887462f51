package dailysales

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestReconcile(t *testing.T) {
	r := Report{
		CashSales:             dec("1000.00"),
		ElectronicSales:       dec("500.00"),
		SystemTakeawaySales:   dec("200.00"),
		VoucherAmount:         dec("50.00"),
		CashDifference:        dec("-10.00"),
		ElectronicDifference:  dec("5.00"),
		TakeawayPlatformSales: dec("200.50"),
		BankDeposit:           dec("1005.00"),
		BankFee:               dec("4.50"),
	}
	rec := Reconcile(r, DefaultTolerance)

	assert.Equal(t, "1700.00", rec.POSTotal.StringFixed(2))
	assert.Equal(t, "1010.00", rec.ExpectedCash.StringFixed(2))
	assert.Equal(t, "495.00", rec.ExpectedElectronic.StringFixed(2))
	assert.Equal(t, "1005.50", rec.ExpectedBank.StringFixed(2))
	assert.Equal(t, "-0.50", rec.BankVariance.StringFixed(2))
	assert.Equal(t, "0.50", rec.TakeawayVariance.StringFixed(2))
	assert.Equal(t, "1055.00", rec.ActualSales.StringFixed(2))
	assert.False(t, rec.Verified)
	assert.True(t, rec.Balanced())
}

func TestReconcileToleranceBoundary(t *testing.T) {
	r := Report{CashSales: dec("100"), BankDeposit: dec("101.00")}
	assert.True(t, Reconcile(r, DefaultTolerance).BankBalanced, "exactly at tolerance")

	r.BankDeposit = dec("101.01")
	rec := Reconcile(r, DefaultTolerance)
	assert.False(t, rec.BankBalanced)
	assert.Equal(t, "1.01", rec.BankVariance.StringFixed(2))

	assert.True(t, Reconcile(r, decimal.RequireFromString("2")).BankBalanced)
}

func TestReconcileNullsCountAsZero(t *testing.T) {
	rec := Reconcile(Report{}, DefaultTolerance)
	assert.True(t, rec.POSTotal.IsZero())
	assert.True(t, rec.ActualSales.IsZero())
	assert.True(t, rec.Balanced())
}

func TestActualSalesPrefersVerifiedAmounts(t *testing.T) {
	r := Report{BankDeposit: dec("900"), VoucherAmount: dec("100"), VerifiedBankAmount: dec("880.555")}
	got, verified := ActualSales(r)
	assert.True(t, verified)
	assert.Equal(t, "880.56", got.StringFixed(2), "half away from zero")

	r.VerifiedBankAmount = decimal.NullDecimal{}
	got, verified = ActualSales(r)
	assert.False(t, verified)
	assert.Equal(t, "1000.00", got.StringFixed(2))
}
