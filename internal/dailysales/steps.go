package dailysales

import (
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// Form field names shared by the handler, templates and validation.
const (
	FieldCashSales             = "cash_sales"
	FieldElectronicSales       = "electronic_sales"
	FieldSystemTakeawaySales   = "system_takeaway_sales"
	FieldVoucherAmount         = "voucher_amount"
	FieldCashDifference        = "cash_difference"
	FieldElectronicDifference  = "electronic_difference"
	FieldTakeawayPlatformSales = "takeaway_platform_sales"
	FieldBankDeposit           = "bank_deposit"
	FieldBankFee               = "bank_fee"
)

// StepForm is the raw POST of one step. Amounts stay strings until validated.
type StepForm struct {
	StoreID    string
	ReportDate string
	Step       Step
	Values     map[string]string
	// RequestKey identifies one rendering of the form.
	RequestKey string
}

// StepFormFromValues reads the posted form.
func StepFormFromValues(v url.Values) StepForm {
	form := StepForm{
		StoreID:    strings.TrimSpace(v.Get("store_id")),
		ReportDate: strings.TrimSpace(v.Get("report_date")),
		Step:       Step(strings.TrimSpace(v.Get("step"))),
		Values:     map[string]string{},
		RequestKey: strings.TrimSpace(v.Get("idempotency_key")),
	}
	for _, f := range []string{
		FieldCashSales, FieldElectronicSales, FieldSystemTakeawaySales, FieldVoucherAmount,
		FieldCashDifference, FieldElectronicDifference, FieldTakeawayPlatformSales,
		FieldBankDeposit, FieldBankFee,
	} {
		form.Values[f] = strings.TrimSpace(v.Get(f))
	}
	return form
}

// ParseDate reads report_date, falling back to today in loc.
func ParseDate(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(DateLayout, raw)
}

type amountRule struct {
	field         string
	required      bool
	allowNegative bool
}

// parseAmount validates one money field. An empty optional field yields a null decimal.
func parseAmount(raw string, rule amountRule, errs shared.ValidationErrors) decimal.NullDecimal {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		if rule.required {
			errs.Add(rule.field, "This field is required")
		}
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		errs.Add(rule.field, "Enter a valid amount")
		return decimal.NullDecimal{}
	}
	if !rule.allowNegative && d.IsNegative() {
		errs.Add(rule.field, "Amount must not be negative")
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d.Round(2), Valid: true}
}

// ApplyStep validates form against the step rules and writes the values onto r.
// r is untouched when validation fails.
func ApplyStep(r *Report, form StepForm, thirdParty bool, now time.Time) error {
	errs := shared.ValidationErrors{}
	v := form.Values
	switch form.Step {
	case StepPOS:
		c := parseAmount(v[FieldCashSales], amountRule{field: FieldCashSales, required: true}, errs)
		p := parseAmount(v[FieldElectronicSales], amountRule{field: FieldElectronicSales, required: true}, errs)
		d := parseAmount(v[FieldSystemTakeawaySales], amountRule{field: FieldSystemTakeawaySales, required: true}, errs)
		rv := parseAmount(v[FieldVoucherAmount], amountRule{field: FieldVoucherAmount, required: true}, errs)
		a := parseAmount(v[FieldCashDifference], amountRule{field: FieldCashDifference, allowNegative: true}, errs)
		b := parseAmount(v[FieldElectronicDifference], amountRule{field: FieldElectronicDifference, allowNegative: true}, errs)
		if len(errs) > 0 {
			return errs
		}
		r.CashSales, r.ElectronicSales, r.SystemTakeawaySales, r.VoucherAmount = c, p, d, rv
		r.CashDifference, r.ElectronicDifference = a, b
		r.POSCompleted = true
	case StepTakeaway:
		q2 := decimal.NullDecimal{Decimal: decimal.Zero, Valid: true}
		if thirdParty {
			q2 = parseAmount(v[FieldTakeawayPlatformSales], amountRule{field: FieldTakeawayPlatformSales, required: true}, errs)
		}
		if len(errs) > 0 {
			return errs
		}
		r.TakeawayPlatformSales = q2
		r.TakeawayCompleted = true
	case StepBank:
		dep := parseAmount(v[FieldBankDeposit], amountRule{field: FieldBankDeposit, required: true}, errs)
		fee := parseAmount(v[FieldBankFee], amountRule{field: FieldBankFee}, errs)
		if len(errs) > 0 {
			return errs
		}
		r.BankDeposit, r.BankFee = dep, fee
		r.BankCompleted = true
	case StepSubmit:
		if !r.AllStepsCompleted() {
			return ErrStepsIncomplete
		}
		r.Submitted = true
		at := now
		r.SubmittedAt = &at
	default:
		errs.Add("step", "Unknown step")
		return errs
	}
	return nil
}

// FormValues renders the stored figures back into form strings for prefill.
func (r Report) FormValues() map[string]string {
	str := func(d decimal.NullDecimal) string {
		if !d.Valid {
			return ""
		}
		return d.Decimal.StringFixed(2)
	}
	return map[string]string{
		FieldCashSales:             str(r.CashSales),
		FieldElectronicSales:       str(r.ElectronicSales),
		FieldSystemTakeawaySales:   str(r.SystemTakeawaySales),
		FieldVoucherAmount:         str(r.VoucherAmount),
		FieldCashDifference:        str(r.CashDifference),
		FieldElectronicDifference:  str(r.ElectronicDifference),
		FieldTakeawayPlatformSales: str(r.TakeawayPlatformSales),
		FieldBankDeposit:           str(r.BankDeposit),
		FieldBankFee:               str(r.BankFee),
	}
}
