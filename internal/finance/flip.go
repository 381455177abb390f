package finance

import "github.com/kalambet/propeval/internal/listing"

const (
	flipInterestRate  = 0.054
	gstRate           = 0.15
	weeksPerMonth     = 4.33
	holdingInsurance  = 1000
	commissionRate    = 0.0345
	legalSell         = 2000
	marketing         = 8500
	flipAccounting    = 2500
	incomeTaxRate     = 0.33
	defaultSaleUplift = 1.2
	flipROITarget     = 0.15
)

// Flip models buying, renovating and reselling at the ARV. A non-positive
// purchase price yields the zero result.
func Flip(in Inputs) *listing.FlipFinancials {
	price := in.PurchasePrice
	if price <= 0 {
		return &listing.FlipFinancials{InterestRate: flipInterestRate}
	}

	reno := in.RenovationCost
	sale := in.ARV
	if sale <= 0 {
		sale = price * defaultSaleUplift
	}

	gst := reno * gstRate
	netReno := reno - gst

	months := float64(in.TimelineWeeks) / weeksPerMonth
	rate := in.rate(flipInterestRate)
	interest := price * rate * months / 12
	insurance := holdingInsurance * months / 12
	rates := in.AnnualRates * months / 12

	commission := sale * commissionRate

	total := price + purchaseCosts + netReno + interest + insurance + rates +
		commission + legalSell + marketing + flipAccounting

	gross := sale - total
	var tax float64
	if gross > 0 {
		tax = gross * incomeTaxRate
	}
	net := gross - tax

	cash := price + purchaseCosts + reno
	var roi float64
	if cash > 0 {
		roi = net / cash
	}

	return &listing.FlipFinancials{
		PurchasePrice:  round2(price),
		RenovationCost: round2(reno),
		GSTRefund:      round2(gst),
		NetRenoCost:    round2(netReno),
		ARV:            round2(sale),
		TimelineWeeks:  in.TimelineWeeks,
		TimelineMonths: round1(months),
		InterestRate:   rate,
		InterestCost:   round2(interest),
		InsuranceCost:  round2(insurance),
		RatesCost:      round2(rates),
		PurchaseCosts:  purchaseCosts,
		Commission:     round2(commission),
		LegalSell:      legalSell,
		Marketing:      marketing,
		Accounting:     flipAccounting,
		TotalExpenses:  round2(total),
		GrossProfit:    round2(gross),
		Tax:            round2(tax),
		NetProfit:      round2(net),
		CashInvested:   round2(cash),
		ROIPercentage:  round2(roi * 100),
		Meets15ROI:     roi >= flipROITarget,
	}
}
