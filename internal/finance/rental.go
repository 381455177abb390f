package finance

import (
	"math"

	"github.com/kalambet/propeval/internal/listing"
)

const (
	rentalInterestRate  = 0.048
	deductibleShare     = 0.80
	occupiedWeeks       = 50
	vacancyWeeks        = 2
	rentalAccounting    = 1100
	bankFees            = 0
	managementRate      = 0.10
	lettingFee          = 300
	lettingFeeGST       = 1.15
	repairs             = 500
	chattelsDepreciable = 0.1
	rentalTaxRate       = 0.175
	rentalYieldTarget   = 0.09
)

// Rental models one year of holding the renovated property on full debt.
// A non-positive price or rent yields the zero result.
func Rental(in Inputs) *listing.RentalFinancials {
	price := in.PurchasePrice
	weekly := in.WeeklyRent
	if price <= 0 || weekly <= 0 {
		return &listing.RentalFinancials{InterestRate: rentalInterestRate, VacancyWeeks: vacancyWeeks}
	}

	reno := in.RenovationCost
	total := price + purchaseCosts + reno
	annualRent := weekly * occupiedWeeks

	rate := in.rate(rentalInterestRate)
	interest := total * rate
	deductible := interest * deductibleShare
	management := annualRent*managementRate + lettingFee*lettingFeeGST

	expenses := rentalAccounting + bankFees + in.AnnualInsurance + deductible +
		management + in.AnnualRates + repairs

	surplus := annualRent - expenses
	depreciation := reno * chattelsDepreciable
	taxable := surplus - depreciation

	var refund, owed float64
	if taxable < 0 {
		refund = math.Abs(taxable) * rentalTaxRate
	} else {
		owed = taxable * rentalTaxRate
	}
	overall := surplus + refund - owed

	var gross, net float64
	if total > 0 {
		gross = annualRent / total
		net = overall / total
	}

	return &listing.RentalFinancials{
		PurchasePrice:         round2(price),
		RenovationCost:        round2(reno),
		PurchaseCosts:         purchaseCosts,
		TotalInvested:         round2(total),
		TargetValuation:       round2(in.ARV),
		WeeklyRent:            round2(weekly),
		AnnualRent:            round2(annualRent),
		VacancyWeeks:          vacancyWeeks,
		Accounting:            rentalAccounting,
		BankFees:              bankFees,
		Insurance:             round2(in.AnnualInsurance),
		InterestRate:          rate,
		AnnualInterest:        round2(interest),
		TaxDeductibleInterest: round2(deductible),
		PropertyManagement:    round2(management),
		AnnualRates:           round2(in.AnnualRates),
		Repairs:               repairs,
		TotalExpenses:         round2(expenses),
		NetCashSurplus:        round2(surplus),
		ChattelsDepreciation:  round2(depreciation),
		TaxableIncome:         round2(taxable),
		TaxRefund:             round2(refund),
		TaxOwed:               round2(owed),
		OverallAnnualCashflow: round2(overall),
		GrossYieldPercentage:  round2(gross * 100),
		NetYieldPercentage:    round2(net * 100),
		Meets9Yield:           gross >= rentalYieldTarget,
	}
}
