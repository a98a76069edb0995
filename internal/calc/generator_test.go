package calc

import (
	"errors"
	"testing"
	"time"

	"github.com/segyhp/progressive-loan-engine/internal/domain"
	apperrors "github.com/segyhp/progressive-loan-engine/pkg/errors"
	"github.com/segyhp/progressive-loan-engine/pkg/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T, terms domain.LoanTerms, txs ...domain.Transaction) *Schedule {
	t.Helper()
	s, err := NewGenerator(nil).Generate(snapshotOf(terms, txs...))
	require.NoError(t, err)
	return s
}

// assertWellFormed checks the structural guarantees every generated schedule keeps.
func assertWellFormed(t *testing.T, s *Schedule) {
	t.Helper()
	for i := 0; i < s.Len(); i++ {
		rp := s.Period(i)
		if prev, ok := s.Previous(i); ok {
			assert.Equal(t, s.Period(prev).Due(), rp.From(), "period %d does not start where %d ends", i, prev)
		}
		assert.True(t, rp.Due().After(rp.From()), "period %d is empty", i)
		assert.False(t, rp.DuePrincipal().IsNegative(), "period %d due principal", i)
		assert.False(t, rp.Emi().IsNegative(), "period %d emi", i)

		from := rp.From()
		for j := 0; j < rp.InterestPeriodCount(); j++ {
			ip := rp.InterestPeriod(j)
			assert.Equal(t, from, ip.From(), "gap in period %d at interest period %d", i, j)
			assert.Equal(t, i, ip.Parent())
			assert.False(t, ip.OutstandingLoanBalance().IsNegative(), "period %d interest period %d balance", i, j)
			from = ip.Due()
		}
		assert.Equal(t, rp.Due(), from, "interest periods of %d do not reach its due date", i)
	}
}

func totalDuePrincipal(s *Schedule) money.Money {
	total := money.Zero(money.USD, money.DefaultMathContext)
	for i := 0; i < s.Len(); i++ {
		total = total.Plus(s.Period(i).DuePrincipal())
	}
	return total
}

// assertConserved checks that the due principal adds up to the principal lent
// and that every repaid unit is paid, allocated and outstanding exactly once.
func assertConserved(t *testing.T, s *Schedule, principal, repaid money.Money) {
	t.Helper()
	paidPrincipal := money.Zero(money.USD, money.DefaultMathContext)
	paidInterest := money.Zero(money.USD, money.DefaultMathContext)
	for i := 0; i < s.Len(); i++ {
		rp := s.Period(i)
		assert.False(t, rp.PaidPrincipal().GreaterThan(rp.DuePrincipal()), "period %d paid more principal than due", i)
		paidPrincipal = paidPrincipal.Plus(rp.PaidPrincipal())
		paidInterest = paidInterest.Plus(rp.PaidInterest())
	}
	allocated := money.Zero(money.USD, money.DefaultMathContext)
	for _, a := range s.Allocations() {
		allocated = allocated.Plus(a.Principal).Plus(a.Interest)
	}

	assert.Equal(t, principal.String(), totalDuePrincipal(s).String(), "due principal")
	assert.Equal(t, repaid.String(), paidPrincipal.Plus(paidInterest).Plus(s.Overpaid()).String(), "paid total")
	assert.Equal(t, repaid.String(), allocated.String(), "allocated total")
	assert.Equal(t, totalDuePrincipal(s).Minus(paidPrincipal).String(), s.OutstandingPrincipal().String(), "outstanding principal")
	if s.Overpaid().IsPositive() {
		assert.True(t, s.OutstandingPrincipal().IsZero(), "overpaid %s with principal outstanding", s.Overpaid())
	}
}

func TestGenerate_FirstPeriodInterest(t *testing.T) {
	s := generate(t, baseTerms(), tx(domain.TransactionDisbursement, day(2024, time.April, 1), "100000"))

	require.Equal(t, 12, s.Len())
	assert.Equal(t, StateGenerated, s.State())
	assert.Equal(t, "LOAN-1", s.LoanID())

	first := s.Period(0)
	assert.Equal(t, day(2024, time.April, 1), first.From())
	assert.Equal(t, day(2024, time.May, 1), first.Due())
	assert.True(t, first.FirstInterestPeriod().RateFactor().Equal(decimal.RequireFromString("0.00986301369863")))
	assert.Equal(t, "986.30 USD", first.DueInterest().String())
	assert.Equal(t, "100000.00 USD", first.FirstInterestPeriod().OutstandingLoanBalance().String())
	assert.Equal(t, day(2025, time.April, 1), s.MaturityDate())

	assertWellFormed(t, s)
}

func TestGenerate_WithoutDisbursementUsesPrincipal(t *testing.T) {
	s := generate(t, baseTerms())

	assert.Equal(t, "100000.00 USD", s.Period(0).FirstInterestPeriod().OutstandingLoanBalance().String())
	assert.Equal(t, "986.30 USD", s.Period(0).DueInterest().String())
}

func TestGenerate_EqualInstallmentRepaysPrincipal(t *testing.T) {
	s := generate(t, baseTerms())

	assert.Equal(t, "100000.00 USD", totalDuePrincipal(s).String())
	assert.True(t, s.Period(0).Emi().Equal(s.Period(5).Emi()))
	assert.True(t, s.Period(11).ClosingBalance().IsZero())
	assertWellFormed(t, s)
}

func TestGenerate_EqualPrincipal(t *testing.T) {
	terms := baseTerms()
	terms.EmiMethod = domain.EmiEqualPrincipal
	s := generate(t, terms)

	assert.Equal(t, "8333.33 USD", s.Period(0).DuePrincipal().String())
	assert.Equal(t, "8333.37 USD", s.Period(11).DuePrincipal().String())
	assert.Equal(t, "100000.00 USD", totalDuePrincipal(s).String())
	assert.True(t, s.Period(0).Emi().GreaterThan(s.Period(1).Emi()))
}

func TestGenerate_MidPeriodDisbursementSplitsInterestPeriod(t *testing.T) {
	s := generate(t, baseTerms(),
		tx(domain.TransactionDisbursement, day(2024, time.April, 1), "100000"),
		tx(domain.TransactionDisbursement, day(2024, time.April, 11), "20000"),
	)

	first := s.Period(0)
	require.Equal(t, 2, first.InterestPeriodCount())

	left, right := first.InterestPeriod(0), first.InterestPeriod(1)
	assert.Equal(t, day(2024, time.April, 11), left.Due())
	assert.Equal(t, day(2024, time.April, 11), right.From())
	assert.Equal(t, "20000.00 USD", left.DisbursementAmount().String())
	assert.Equal(t, left.OutstandingLoanBalance().Plus(usd("20000")).String(), right.OutstandingLoanBalance().String())
	assert.Equal(t, "120000.00 USD", right.OutstandingLoanBalance().String())

	// the added principal is amortized over the remaining installments
	assert.Equal(t, "120000.00 USD", totalDuePrincipal(s).String())
	assertWellFormed(t, s)
}

func TestGenerate_CapitalizedIncomeRaisesBalance(t *testing.T) {
	s := generate(t, baseTerms(),
		tx(domain.TransactionDisbursement, day(2024, time.April, 1), "100000"),
		tx(domain.TransactionCapitalizedIncome, day(2024, time.April, 11), "1000"),
	)

	first := s.Period(0)
	require.Equal(t, 2, first.InterestPeriodCount())
	assert.Equal(t, "1000.00 USD", first.InterestPeriod(0).CapitalizedIncomePrincipal().String())
	assert.Equal(t, "101000.00 USD", first.InterestPeriod(1).OutstandingLoanBalance().String())
	assert.Equal(t, "101000.00 USD", totalDuePrincipal(s).String())
}

func TestGenerate_IsIdempotent(t *testing.T) {
	snapshot := snapshotOf(baseTerms(),
		tx(domain.TransactionDisbursement, day(2024, time.April, 1), "100000"),
		tx(domain.TransactionDisbursement, day(2024, time.April, 11), "20000"),
		tx(domain.TransactionRepayment, day(2024, time.May, 1), "10000"),
		tx(domain.TransactionRepayment, day(2024, time.June, 10), "5000"),
	)
	gen := NewGenerator(nil)

	a, err := gen.Generate(snapshot)
	require.NoError(t, err)
	b, err := gen.Generate(snapshot)
	require.NoError(t, err)

	pa, pb := a.ToSchedulePeriods(), b.ToSchedulePeriods()
	require.Len(t, pb, len(pa))
	for i := range pa {
		pa[i].ID = pb[i].ID
		pa[i].CreatedAt = pb[i].CreatedAt
		assert.Equal(t, pa[i], pb[i], "period %d", i+1)
	}
	assertWellFormed(t, a)
}

func TestGenerate_RepaymentOnDueDate(t *testing.T) {
	s := generate(t, baseTerms(),
		tx(domain.TransactionDisbursement, day(2024, time.April, 1), "100000"),
		tx(domain.TransactionRepayment, day(2024, time.May, 1), "10000"),
	)

	first := s.Period(0)
	assert.True(t, first.IsFullyPaid())
	assert.Equal(t, "986.30 USD", first.PaidInterest().String())

	total := money.Zero(money.USD, money.DefaultMathContext)
	for _, a := range s.Allocations() {
		total = total.Plus(a.Principal).Plus(a.Interest)
	}
	assert.Equal(t, "10000.00 USD", total.String())
	assert.True(t, s.Overpaid().IsZero())
	assertWellFormed(t, s)
}

func TestGenerate_LatePaymentBeyondTotalIsOverpaid(t *testing.T) {
	baseline := generate(t, baseTerms())
	owed := money.Zero(money.USD, money.DefaultMathContext)
	for i := 0; i < baseline.Len(); i++ {
		owed = owed.Plus(baseline.Period(i).DuePrincipal()).Plus(baseline.Period(i).DueInterest())
	}

	s := generate(t, baseTerms(), tx(domain.TransactionRepayment, day(2025, time.May, 1), "200000"))

	for i := 0; i < s.Len(); i++ {
		assert.True(t, s.Period(i).IsFullyPaid(), "period %d", i)
	}
	assert.Equal(t, usd("200000").Minus(owed).String(), s.Overpaid().String())
	assert.True(t, s.OutstandingPrincipal().IsZero())
}

func TestGenerate_Prepayment(t *testing.T) {
	disbursed := tx(domain.TransactionDisbursement, day(2024, time.April, 1), "100000")
	baseline := generate(t, baseTerms(), disbursed)

	tests := []struct {
		name        string
		date        time.Time
		amount      string
		overpaid    string
		outstanding string
		check       func(t *testing.T, s *Schedule)
	}{
		{
			name:        "Pays off the loan on a due date",
			date:        day(2024, time.May, 1),
			amount:      "200000",
			overpaid:    "99013.70 USD",
			outstanding: "0.00 USD",
			check: func(t *testing.T, s *Schedule) {
				assert.Equal(t, "100000.00 USD", s.Period(0).PaidPrincipal().String())
				for i := 0; i < s.Len(); i++ {
					assert.True(t, s.Period(i).IsFullyPaid(), "period %d", i)
				}
			},
		},
		{
			name:        "Pays off the loan mid-period",
			date:        day(2024, time.April, 16),
			amount:      "200000",
			overpaid:    "99506.85 USD",
			outstanding: "0.00 USD",
			check: func(t *testing.T, s *Schedule) {
				// fifteen days of interest on the full balance
				assert.Equal(t, "493.15 USD", s.Period(0).DueInterest().String())
				assert.Equal(t, "493.15 USD", s.Period(0).PaidInterest().String())
				assert.True(t, s.Period(1).DueInterest().IsZero())
			},
		},
		{
			name:        "Partial prepayment on a due date re-amortizes the rest",
			date:        day(2024, time.May, 1),
			amount:      "50000",
			overpaid:    "0.00 USD",
			outstanding: "50986.30 USD",
			check: func(t *testing.T, s *Schedule) {
				assert.True(t, s.Period(0).IsFullyPaid())
				assert.True(t, s.Period(0).PrepaidPrincipal().IsPositive())
				assert.True(t, s.Period(1).Emi().Equal(s.Period(10).Emi()))
				assert.True(t, s.Period(1).Emi().LessThan(baseline.Period(1).Emi()))
			},
		},
		{
			name:     "Partial prepayment mid-period lowers later installments",
			date:     day(2024, time.April, 16),
			amount:   "30000",
			overpaid: "0.00 USD",
			check: func(t *testing.T, s *Schedule) {
				assert.True(t, s.OutstandingPrincipal().LessThan(usd("75000")))
				assert.True(t, s.Period(1).Emi().LessThan(baseline.Period(1).Emi()))
				assert.True(t, s.Period(0).DueInterest().LessThan(baseline.Period(0).DueInterest()))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := generate(t, baseTerms(), disbursed, tx(domain.TransactionRepayment, tt.date, tt.amount))

			assert.Equal(t, tt.overpaid, s.Overpaid().String())
			if tt.outstanding != "" {
				assert.Equal(t, tt.outstanding, s.OutstandingPrincipal().String())
			}
			tt.check(t, s)
			assertConserved(t, s, usd("100000"), usd(tt.amount))
			assertWellFormed(t, s)
		})
	}
}

func TestGenerate_Chargeback(t *testing.T) {
	disbursed := tx(domain.TransactionDisbursement, day(2024, time.April, 1), "100000")
	repaid := tx(domain.TransactionRepayment, day(2024, time.May, 1), "10000")
	baseline := generate(t, baseTerms(), disbursed, repaid)

	tests := []struct {
		name      string
		principal string
		interest  string
		amount    string
		credited  string
	}{
		{name: "Principal and interest portions", principal: "1000", interest: "50", amount: "1050", credited: "1000.00 USD"},
		{name: "No portions credits the amount as principal", principal: "0", interest: "0", amount: "700", credited: "700.00 USD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chargeback := tx(domain.TransactionChargeback, day(2024, time.May, 15), tt.amount)
			chargeback.PrincipalPortion = decimal.RequireFromString(tt.principal)
			chargeback.InterestPortion = decimal.RequireFromString(tt.interest)

			s := generate(t, baseTerms(), disbursed, repaid, chargeback)

			second := s.Period(1)
			assert.Equal(t, tt.credited, second.CreditedPrincipal().String())
			assert.Equal(t, usd(tt.interest).String(), second.CreditedInterest().String())
			assert.True(t, second.DuePrincipal().GreaterThan(baseline.Period(1).DuePrincipal()))
			assert.True(t, second.DueInterest().GreaterThan(baseline.Period(1).DueInterest().Plus(usd(tt.interest))))

			assertConserved(t, s, usd("100000").Plus(second.CreditedPrincipal()), usd("10000"))
			assertWellFormed(t, s)
		})
	}
}

func TestGenerate_CreditBalanceRefund(t *testing.T) {
	baseline := generate(t, baseTerms())
	owed := money.Zero(money.USD, money.DefaultMathContext)
	for i := 0; i < baseline.Len(); i++ {
		owed = owed.Plus(baseline.Period(i).DuePrincipal()).Plus(baseline.Period(i).DueInterest())
	}
	maturity := baseline.MaturityDate()

	tests := []struct {
		name        string
		refund      string
		overpaid    string
		outstanding string
	}{
		{name: "Refund within the overpayment", refund: "60", overpaid: "40.00 USD", outstanding: "0.00 USD"},
		{name: "Refund beyond the overpayment is owed again", refund: "300", overpaid: "0.00 USD", outstanding: "200.00 USD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repayment := tx(domain.TransactionRepayment, maturity, owed.Plus(usd("100")).Amount().String())
			refund := tx(domain.TransactionCreditBalanceRefund, maturity, tt.refund)

			s := generate(t, baseTerms(), repayment, refund)

			assert.Equal(t, tt.overpaid, s.Overpaid().String())
			assert.Equal(t, tt.outstanding, s.OutstandingPrincipal().String())

			refunded := money.Min(usd("100"), usd(tt.refund))
			var refundAllocation *Allocation
			for _, a := range s.Allocations() {
				if a.TransactionID == refund.ID {
					a := a
					refundAllocation = &a
				}
			}
			require.NotNil(t, refundAllocation)
			assert.Equal(t, overpaymentPeriod, refundAllocation.Period)
			assert.Equal(t, refunded.Negate().String(), refundAllocation.Principal.String())

			principal := usd("100000").Plus(usd(tt.refund)).Minus(refunded)
			assertConserved(t, s, principal, owed.Plus(usd("100")).Minus(refunded))
			assertWellFormed(t, s)
		})
	}
}

func TestGenerate_ReversedTransactionsAreIgnored(t *testing.T) {
	reversed := tx(domain.TransactionRepayment, day(2024, time.May, 1), "10000")
	reversed.Reversed = true

	with := generate(t, baseTerms(), reversed)
	without := generate(t, baseTerms())

	assert.Equal(t, without.Period(0).DuePrincipal().String(), with.Period(0).DuePrincipal().String())
	assert.True(t, with.Period(0).PaidPrincipal().IsZero())
	assert.Empty(t, with.Allocations())
}

func TestGenerate_TermVariations(t *testing.T) {
	t.Run("interest pause", func(t *testing.T) {
		terms := baseTerms()
		terms.TermVariations = []domain.TermVariation{{
			Type:           domain.VariationInterestPause,
			ApplicableFrom: day(2024, time.May, 1),
			EndDate:        datePtr(2024, time.May, 31),
		}}
		s := generate(t, terms)

		assert.True(t, s.Period(1).FirstInterestPeriod().Paused())
		assert.True(t, s.Period(1).DueInterest().IsZero())
		assert.True(t, s.Period(2).DueInterest().IsPositive())
		assertWellFormed(t, s)
	})

	t.Run("interest rate change splits the period", func(t *testing.T) {
		terms := baseTerms()
		terms.TermVariations = []domain.TermVariation{{
			Type:           domain.VariationInterestRate,
			ApplicableFrom: day(2024, time.May, 16),
			DecimalValue:   decimal.NewFromInt(6),
		}}
		s := generate(t, terms)
		plain := generate(t, baseTerms())

		require.Equal(t, 2, s.Period(1).InterestPeriodCount())
		assert.Equal(t, day(2024, time.May, 16), s.Period(1).InterestPeriod(1).From())
		assert.True(t, s.Period(1).DueInterest().LessThan(plain.Period(1).DueInterest()))
		assert.Equal(t, plain.Period(0).DueInterest().String(), s.Period(0).DueInterest().String())
		assertWellFormed(t, s)
	})

	t.Run("principal pause", func(t *testing.T) {
		terms := baseTerms()
		terms.TermVariations = []domain.TermVariation{{
			Type:           domain.VariationPrincipalPause,
			ApplicableFrom: day(2024, time.May, 1),
			EndDate:        datePtr(2024, time.May, 1),
		}}
		s := generate(t, terms)

		assert.True(t, s.Period(0).InterestOnly())
		assert.True(t, s.Period(0).DuePrincipal().IsZero())
		assert.Equal(t, "986.30 USD", s.Period(0).Emi().String())
		assert.Equal(t, "100000.00 USD", totalDuePrincipal(s).String())
	})

	t.Run("due date", func(t *testing.T) {
		terms := baseTerms()
		terms.TermVariations = []domain.TermVariation{{
			Type:           domain.VariationDueDate,
			ApplicableFrom: day(2024, time.June, 1),
			DateValue:      datePtr(2024, time.June, 15),
		}}
		s := generate(t, terms)

		assert.Equal(t, day(2024, time.June, 1), s.Period(1).Due())
		assert.Equal(t, day(2024, time.June, 15), s.Period(2).Due())
		assert.Equal(t, day(2024, time.July, 15), s.Period(3).Due())
		assertWellFormed(t, s)
	})

	t.Run("extension", func(t *testing.T) {
		terms := baseTerms()
		terms.TermVariations = []domain.TermVariation{{
			Type:           domain.VariationExtendRepaymentPeriod,
			ApplicableFrom: day(2024, time.April, 1),
			Count:          2,
		}}
		s := generate(t, terms)

		assert.Equal(t, 14, s.Len())
		assert.Equal(t, day(2025, time.June, 1), s.MaturityDate())
	})

	t.Run("fixed installment", func(t *testing.T) {
		terms := baseTerms()
		terms.TermVariations = []domain.TermVariation{{
			Type:           domain.VariationEmiAmount,
			ApplicableFrom: day(2024, time.April, 1),
			DecimalValue:   decimal.NewFromInt(5000),
		}}
		s := generate(t, terms)

		assert.Equal(t, "5000.00 USD", s.Period(0).Emi().String())
		assert.Equal(t, "5000.00 USD", s.Period(10).Emi().String())
		// the last installment settles whatever is left
		assert.True(t, s.Period(11).Emi().GreaterThan(usd("5000")))
		assert.Equal(t, "100000.00 USD", totalDuePrincipal(s).String())
	})
}

func TestGenerate_InvalidTerms(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*domain.LoanTerms)
	}{
		{name: "zero principal", modify: func(l *domain.LoanTerms) { l.Principal = decimal.Zero }},
		{name: "negative rate", modify: func(l *domain.LoanTerms) { l.AnnualInterestRate = decimal.NewFromInt(-1) }},
		{name: "no installments", modify: func(l *domain.LoanTerms) { l.NumberOfInstallments = 0 }},
		{name: "no frequency", modify: func(l *domain.LoanTerms) { l.RepaymentEvery = 0 }},
		{name: "unknown frequency", modify: func(l *domain.LoanTerms) { l.RepaymentFrequency = "YEARS" }},
		{name: "unknown day count", modify: func(l *domain.LoanTerms) { l.DayCount = "BUSINESS_252" }},
		{name: "unknown emi method", modify: func(l *domain.LoanTerms) { l.EmiMethod = "BALLOON" }},
		{name: "bad currency", modify: func(l *domain.LoanTerms) { l.CurrencyCode = "dollars" }},
		{name: "bad rounding mode", modify: func(l *domain.LoanTerms) { l.RoundingMode = "sideways" }},
		{name: "missing disbursement date", modify: func(l *domain.LoanTerms) { l.ExpectedDisbursementDate = time.Time{} }},
		{name: "first repayment before disbursement", modify: func(l *domain.LoanTerms) {
			l.FirstRepaymentDate = datePtr(2024, time.March, 1)
		}},
		{name: "pause without end date", modify: func(l *domain.LoanTerms) {
			l.TermVariations = []domain.TermVariation{{Type: domain.VariationInterestPause, ApplicableFrom: day(2024, time.May, 1)}}
		}},
		{name: "unknown variation", modify: func(l *domain.LoanTerms) {
			l.TermVariations = []domain.TermVariation{{Type: "HOLIDAY", ApplicableFrom: day(2024, time.May, 1)}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := baseTerms()
			tt.modify(&terms)

			s, err := NewGenerator(nil).Generate(snapshotOf(terms))
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidLoanTerms), "got %v", err)
		})
	}
}

func TestGenerate_InvalidTransactions(t *testing.T) {
	tests := []struct {
		name string
		tx   domain.Transaction
	}{
		{name: "before disbursement", tx: tx(domain.TransactionRepayment, day(2024, time.March, 1), "10")},
		{name: "negative amount", tx: tx(domain.TransactionRepayment, day(2024, time.May, 1), "-10")},
		{name: "disbursement at maturity", tx: tx(domain.TransactionDisbursement, day(2025, time.April, 1), "10")},
		{name: "unknown type", tx: tx("FEE", day(2024, time.May, 1), "10")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(nil).Generate(snapshotOf(baseTerms(), tt.tx))
			assert.True(t, errors.Is(err, apperrors.ErrInvalidTransaction), "got %v", err)
		})
	}
}
