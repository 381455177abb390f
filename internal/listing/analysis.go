package listing

import "time"

// RenoLevel grades the amount of renovation a property needs.
type RenoLevel string

const (
	RenoNone     RenoLevel = "NONE"
	RenoCosmetic RenoLevel = "COSMETIC"
	RenoModerate RenoLevel = "MODERATE"
	RenoMajor    RenoLevel = "MAJOR"
	RenoFullGut  RenoLevel = "FULL_GUT"
)

// Valid reports whether r is one of the known levels.
func (r RenoLevel) Valid() bool {
	switch r {
	case RenoNone, RenoCosmetic, RenoModerate, RenoMajor, RenoFullGut:
		return true
	}
	return false
}

// Heavy reports whether r is MAJOR or FULL_GUT.
func (r RenoLevel) Heavy() bool {
	return r == RenoMajor || r == RenoFullGut
}

type Verdict string

const (
	VerdictStrongBuy Verdict = "STRONG_BUY"
	VerdictBuy       Verdict = "BUY"
	VerdictMaybe     Verdict = "MAYBE"
	VerdictPass      Verdict = "PASS"
)

// Analysis is the derived record for one listing. Every stage writes its
// own typed sub-document; nil means the stage has not produced output.
type Analysis struct {
	ID        int64 `json:"id"`
	ListingID int64 `json:"listing_id"`

	Population    *PopulationData `json:"population_data,omitempty"`
	DemandProfile *DemandProfile  `json:"demand_profile,omitempty"`

	Insurability     *Insurability        `json:"insurability,omitempty"`
	ImageAnalysis    *ImageAnalysis       `json:"image_analysis,omitempty"`
	VisionPhotosHash string               `json:"vision_photos_hash,omitempty"`
	Renovation       *RenovationEstimate  `json:"renovation_estimate,omitempty"`
	Timeline         *TimelineEstimate    `json:"timeline_estimate,omitempty"`
	ARV              *ARVEstimate         `json:"arv_estimate,omitempty"`
	RentalEstimate   *RentalEstimate      `json:"rental_estimate,omitempty"`
	CouncilRates     *CouncilRates        `json:"council_rates,omitempty"`
	Subdivision      *SubdivisionAnalysis `json:"subdivision_analysis,omitempty"`
	SubdivisionHash  string               `json:"subdivision_input_hash,omitempty"`

	Flip     *FlipFinancials   `json:"flip_financials,omitempty"`
	Rental   *RentalFinancials `json:"rental_financials,omitempty"`
	Strategy *StrategyDecision `json:"strategy_decision,omitempty"`

	CompositeScore  *float64         `json:"composite_score,omitempty"`
	ComponentScores *ComponentScores `json:"component_scores,omitempty"`
	Verdict         Verdict          `json:"verdict,omitempty"`
	Rank            *int             `json:"rank,omitempty"`
	Flags           []string         `json:"flags"`
	NextSteps       []string         `json:"next_steps"`
	ConfidenceLevel string           `json:"confidence_level,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PopulationData struct {
	CurrentPop      *int     `json:"current_pop"`
	District        string   `json:"district"`
	Region          string   `json:"region"`
	GrowthRate      *float64 `json:"growth_rate"`
	ProjectedGrowth *float64 `json:"projected_growth,omitempty"`
	Note            string   `json:"note,omitempty"`
}

type DemandProfile struct {
	IsStudentTown      bool     `json:"is_student_town"`
	IsFamilyArea       bool     `json:"is_family_area"`
	IsRetirementArea   bool     `json:"is_retirement_area"`
	BedroomDemandMatch bool     `json:"bedroom_demand_match"`
	DemandNotes        []string `json:"demand_notes"`
}

type Insurability struct {
	Insurable       bool    `json:"insurable"`
	AnnualInsurance float64 `json:"annual_insurance"`
	Insurer         string  `json:"insurer"`
	Source          string  `json:"source"`
	Note            string  `json:"note,omitempty"`
}

// ImageAnalysis is the renovation signal derived from listing photos.
type ImageAnalysis struct {
	RoofCondition      string    `json:"roof_condition"`
	ExteriorCondition  string    `json:"exterior_condition"`
	InteriorQuality    string    `json:"interior_quality"`
	KitchenAge         string    `json:"kitchen_age"`
	BathroomAge        string    `json:"bathroom_age"`
	StructuralConcerns []string  `json:"structural_concerns"`
	OverallRenoLevel   RenoLevel `json:"overall_reno_level"`
	KeyRenovationItems []string  `json:"key_renovation_items"`
	Confidence         string    `json:"confidence"`

	EstimatedRenovationCost *float64 `json:"estimated_renovation_cost_nzd,omitempty"`
	EstimatedTimelineWeeks  *int     `json:"estimated_timeline_weeks,omitempty"`

	Source string `json:"source"`
	Note   string `json:"note,omitempty"`

	HealthyHomes *HealthyHomesSignals `json:"healthy_homes_text,omitempty"`
}

// HasRenoTimeline reports whether the provider supplied its own usable
// renovation cost and timeline.
func (a *ImageAnalysis) HasRenoTimeline() bool {
	if a == nil || a.EstimatedRenovationCost == nil || a.EstimatedTimelineWeeks == nil {
		return false
	}
	return *a.EstimatedRenovationCost > 0 && *a.EstimatedTimelineWeeks > 0
}

type HealthyHomesSignals struct {
	Present         bool              `json:"present"`
	Confidence      string            `json:"confidence"`
	ClaimsCompliant bool              `json:"claims_compliant"`
	Signals         HealthyHomesFlags `json:"signals"`
	Evidence        []Evidence        `json:"evidence"`
	Notes           string            `json:"notes"`
}

type HealthyHomesFlags struct {
	HasHeating           bool `json:"has_heating"`
	HasInsulation        bool `json:"has_insulation"`
	HasVentilation       bool `json:"has_ventilation"`
	MentionsDamp         bool `json:"mentions_damp"`
	MentionsMould        bool `json:"mentions_mould"`
	MentionsCondensation bool `json:"mentions_condensation"`
	MentionsDraughts     bool `json:"mentions_draughts"`
}

// AnyRisk reports whether any damp, mould, condensation or draught cue was found.
func (f HealthyHomesFlags) AnyRisk() bool {
	return f.MentionsDamp || f.MentionsMould || f.MentionsCondensation || f.MentionsDraughts
}

type Evidence struct {
	Key    string `json:"key"`
	Phrase string `json:"phrase"`
}

type RenovationEstimate struct {
	RenovationLevel       RenoLevel `json:"renovation_level"`
	FloorAreaUsed         float64   `json:"floor_area_used"`
	CostPerSqm            float64   `json:"cost_per_sqm"`
	BaseRenovation        float64   `json:"base_renovation"`
	AdditionalItems       float64   `json:"additional_items"`
	AdditionalDetails     []string  `json:"additional_details"`
	HealthyHomesAllowance float64   `json:"healthy_homes_allowance"`
	Contingency           float64   `json:"contingency"`
	TotalEstimated        float64   `json:"total_estimated"`
	KeyItems              []string  `json:"key_items"`
	Source                string    `json:"source"`
}

type TimelineEstimate struct {
	EstimatedWeeks    int       `json:"estimated_weeks"`
	Within8WeekTarget bool      `json:"within_8_week_target"`
	RenovationLevel   RenoLevel `json:"renovation_level"`
	Notes             string    `json:"notes"`
	Source            string    `json:"source"`
}

type ARVEstimate struct {
	EstimatedARV       float64      `json:"estimated_arv"`
	MedianCompPrice    *float64     `json:"median_comp_price"`
	AvgCompPrice       *float64     `json:"avg_comp_price"`
	UpperQuartilePrice *float64     `json:"upper_quartile_price"`
	ComparablesUsed    int          `json:"comparables_used"`
	ConfidenceScore    float64      `json:"confidence_score"`
	MarketEstimate     *float64     `json:"market_estimate"`
	ComparableSales    []NearbySale `json:"comparable_sales"`
	Source             string       `json:"source"`
}

type RentalComp struct {
	Location   string  `json:"location"`
	Bedrooms   int     `json:"bedrooms"`
	WeeklyRent float64 `json:"weekly_rent"`
}

type RentalEstimate struct {
	EstimatedWeeklyRent       float64      `json:"estimated_weekly_rent"`
	AnnualRent                float64      `json:"annual_rent"`
	IndicativeYieldPercentage float64      `json:"indicative_yield_percentage"`
	BondSamples               int          `json:"bond_samples"`
	MarketEstimate            *float64     `json:"market_estimate"`
	TenancyEstimate           *float64     `json:"tenancy_estimate"`
	Source                    string       `json:"source"`
	RentalComps               []RentalComp `json:"rental_comps"`
}

type CouncilRates struct {
	AnnualRates       float64 `json:"annual_rates"`
	WaterCharges      float64 `json:"water_charges"`
	TotalCouncilCosts float64 `json:"total_council_costs"`
	Source            string  `json:"source"`
	District          string  `json:"district"`
}

type SubdivisionAnalysis struct {
	SubdivisionPotential bool     `json:"subdivision_potential"`
	Reason               string   `json:"reason"`
	LandArea             *float64 `json:"land_area,omitempty"`
	Zoning               string   `json:"zoning,omitempty"`
	ZoningSource         string   `json:"zoning_source,omitempty"`
	MinLotSize           float64  `json:"min_lot_size,omitempty"`
	ExtraLotsPossible    int      `json:"extra_lots_possible"`
	EstimatedUplift      float64  `json:"estimated_uplift"`
	SubdivisionCosts     float64  `json:"subdivision_costs"`
	NetValueAdd          float64  `json:"net_value_add"`
}

// Viable reports whether subdivision is possible and adds value.
func (s *SubdivisionAnalysis) Viable() bool {
	return s != nil && s.SubdivisionPotential && s.NetValueAdd > 0
}

type FlipFinancials struct {
	PurchasePrice  float64 `json:"purchase_price"`
	RenovationCost float64 `json:"renovation_cost"`
	GSTRefund      float64 `json:"gst_refund"`
	NetRenoCost    float64 `json:"net_reno_cost"`
	ARV            float64 `json:"arv"`
	TimelineWeeks  int     `json:"timeline_weeks"`
	TimelineMonths float64 `json:"timeline_months"`
	InterestRate   float64 `json:"interest_rate"`
	InterestCost   float64 `json:"interest_cost"`
	InsuranceCost  float64 `json:"insurance_cost"`
	RatesCost      float64 `json:"rates_cost"`
	PurchaseCosts  float64 `json:"purchase_costs"`
	Commission     float64 `json:"commission"`
	LegalSell      float64 `json:"legal_sell"`
	Marketing      float64 `json:"marketing"`
	Accounting     float64 `json:"accounting"`
	TotalExpenses  float64 `json:"total_expenses"`
	GrossProfit    float64 `json:"gross_profit"`
	Tax            float64 `json:"tax"`
	NetProfit      float64 `json:"net_profit"`
	CashInvested   float64 `json:"cash_invested"`
	ROIPercentage  float64 `json:"roi_percentage"`
	Meets15ROI     bool    `json:"meets_15_roi"`
}

type RentalFinancials struct {
	PurchasePrice         float64 `json:"purchase_price"`
	RenovationCost        float64 `json:"renovation_cost"`
	PurchaseCosts         float64 `json:"purchase_costs"`
	TotalInvested         float64 `json:"total_invested"`
	TargetValuation       float64 `json:"target_valuation"`
	WeeklyRent            float64 `json:"weekly_rent"`
	AnnualRent            float64 `json:"annual_rent"`
	VacancyWeeks          int     `json:"vacancy_weeks"`
	Accounting            float64 `json:"accounting"`
	BankFees              float64 `json:"bank_fees"`
	Insurance             float64 `json:"insurance"`
	InterestRate          float64 `json:"interest_rate"`
	AnnualInterest        float64 `json:"annual_interest"`
	TaxDeductibleInterest float64 `json:"tax_deductible_interest"`
	PropertyManagement    float64 `json:"property_management"`
	AnnualRates           float64 `json:"annual_rates"`
	Repairs               float64 `json:"repairs"`
	TotalExpenses         float64 `json:"total_expenses"`
	NetCashSurplus        float64 `json:"net_cash_surplus"`
	ChattelsDepreciation  float64 `json:"chattels_depreciation"`
	TaxableIncome         float64 `json:"taxable_income"`
	TaxRefund             float64 `json:"tax_refund"`
	TaxOwed               float64 `json:"tax_owed"`
	OverallAnnualCashflow float64 `json:"overall_annual_cashflow"`
	GrossYieldPercentage  float64 `json:"gross_yield_percentage"`
	NetYieldPercentage    float64 `json:"net_yield_percentage"`
	Meets9Yield           bool    `json:"meets_9_yield"`
}

type StrategyDecision struct {
	RecommendedStrategy string   `json:"recommended_strategy"`
	Reason              string   `json:"reason"`
	FlipROI             float64  `json:"flip_roi"`
	RentalYield         float64  `json:"rental_yield"`
	SubdivisionBonus    float64  `json:"subdivision_bonus"`
	RiskTolerance       string   `json:"risk_tolerance"`
	MarketTrend         string   `json:"market_trend,omitempty"`
	RiskAssessment      []string `json:"risk_assessment"`
}

type ComponentScores struct {
	ROI          float64 `json:"roi_score"`
	Timeline     float64 `json:"timeline_score"`
	Confidence   float64 `json:"confidence_score"`
	Subdivision  float64 `json:"subdivision_score"`
	Location     float64 `json:"location_score"`
	Insurability float64 `json:"insurability_score"`
}
