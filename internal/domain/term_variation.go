package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TermVariationType names the kind of mid-life adjustment a variation carries.
type TermVariationType string

const (
	// VariationDueDate moves the first installment due after ApplicableFrom to DateValue.
	VariationDueDate TermVariationType = "DUE_DATE"
	// VariationInterestRate changes the annual rate to DecimalValue from ApplicableFrom.
	VariationInterestRate TermVariationType = "INTEREST_RATE"
	// VariationInterestPause suspends accrual from ApplicableFrom to EndDate inclusive.
	VariationInterestPause TermVariationType = "INTEREST_PAUSE"
	// VariationPrincipalPause makes installments due in [ApplicableFrom, EndDate] interest only.
	VariationPrincipalPause TermVariationType = "PRINCIPAL_PAUSE"
	// VariationEmiAmount fixes the installment to DecimalValue for installments due after ApplicableFrom.
	VariationEmiAmount TermVariationType = "EMI_AMOUNT"
	// VariationExtendRepaymentPeriod appends Count installments.
	VariationExtendRepaymentPeriod TermVariationType = "EXTEND_REPAYMENT_PERIOD"
)

// TermVariation is an adjustment of the loan terms effective from a date.
type TermVariation struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	LoanID         string            `json:"loan_id" db:"loan_id"`
	Type           TermVariationType `json:"type" db:"type"`
	ApplicableFrom time.Time         `json:"applicable_from" db:"applicable_from"`
	DateValue      *time.Time        `json:"date_value,omitempty" db:"date_value"`
	DecimalValue   decimal.Decimal   `json:"decimal_value" db:"decimal_value"`
	EndDate        *time.Time        `json:"end_date,omitempty" db:"end_date"`
	Count          int               `json:"count" db:"count"`
}

// DueDateVariation returns the first due-date variation of vs, if any.
func DueDateVariation(vs []TermVariation) (TermVariation, bool) {
	for _, v := range vs {
		if v.Type == VariationDueDate {
			return v, true
		}
	}
	return TermVariation{}, false
}
