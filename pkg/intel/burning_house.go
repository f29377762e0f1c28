// Package intel computes strategic sales intelligence: a purchase-urgency
// score and the market-context block injected into deep-analysis prompts.
// Everything here is pure computation over injected inputs; no network
// calls are made on any request path.
package intel

import "fmt"

// 2026 Polish tax and market constants.
const (
	iceAmortizationLimit = 100_000 // PLN, dropped from 150k
	evAmortizationLimit  = 225_000 // PLN, unchanged
	citTaxRate           = 0.19

	dieselPricePerLiter    = 6.03 // PLN, 2026 Q1
	dieselLitersPer100km   = 8.5
	nightTariffPerKWh      = 0.46 // PLN, G12 night tariff
	evKWhPer100km          = 16.0
	defaultMonthlyDistance = 2000 // km

	subsidyAmount       = 18_750 // PLN, NaszEauto base
	subsidyCriticalDays = 90
	subsidyBonusPoints  = 20
)

// ClientType distinguishes business and private buyers for tax treatment.
type ClientType string

const (
	ClientB2B ClientType = "B2B"
	ClientB2C ClientType = "B2C"
)

// FireLevel buckets the urgency score for the UI.
type FireLevel string

const (
	FireCold    FireLevel = "cold"
	FireWarm    FireLevel = "warm"
	FireHot     FireLevel = "hot"
	FireBurning FireLevel = "burning"
)

// UrgencyInput carries what is known about the client's situation. Optional
// fields are pointers; a nil field skips its factor.
type UrgencyInput struct {
	FuelCostMonthly      *float64
	VehicleAgeMonths     *int
	ClientType           ClientType
	VehicleValuePLN      *int
	IsICE                bool
	SubsidyDaysRemaining *int
	MonthlyDistanceKm    int
	Language             string
}

// UrgencyScore is the computed purchase-urgency breakdown.
type UrgencyScore struct {
	Score            int            `json:"score"`
	FireLevel        FireLevel      `json:"fire_level"`
	MonthlyDelayCost int            `json:"monthly_delay_cost_pln"`
	Factors          map[string]any `json:"factors"`
	Messages         []string       `json:"messages"`
	UrgencyMessage   string         `json:"urgency_message"`
}

// ScoreUrgency computes the burning-house score from four factors: the
// 2026 B2B ICE amortization penalty, fuel-versus-night-tariff savings,
// subsidy expiration, and vehicle replacement timing.
func ScoreUrgency(in UrgencyInput) UrgencyScore {
	if in.MonthlyDistanceKm <= 0 {
		in.MonthlyDistanceKm = defaultMonthlyDistance
	}
	if in.Language != "en" {
		in.Language = "pl"
	}

	acc := &urgencyAccumulator{
		input:   in,
		factors: map[string]any{},
	}
	acc.taxPenalty()
	acc.fuelSavings()
	acc.subsidyUrgency()
	acc.vehicleAge()

	score := min(100, acc.score)
	level := fireLevel(score)

	return UrgencyScore{
		Score:            score,
		FireLevel:        level,
		MonthlyDelayCost: acc.monthlyLoss,
		Factors:          acc.factors,
		Messages:         acc.messages,
		UrgencyMessage:   urgencyMessage(in.Language, level, acc.monthlyLoss),
	}
}

// EstimateInput carries the raw figures a seller collects in conversation,
// before they are reduced to an UrgencyInput.
type EstimateInput struct {
	FuelConsumptionL100km *float64
	MonthlyDistanceKm     *int
	FuelPricePerLiter     *float64
	VehicleAgeMonths      *int
	PurchaseType          string // "private" or "business"
	PlannedVehiclePLN     *int
	SubsidyDeadlineDays   *int
	Language              string
}

// ScoreFromEstimates reduces raw conversation estimates to an UrgencyInput
// and scores them. Monthly fuel cost is derived only when both consumption
// and distance are known; a business purchase is treated as B2B replacing
// an ICE vehicle.
func ScoreFromEstimates(e EstimateInput) UrgencyScore {
	in := UrgencyInput{
		VehicleAgeMonths:     e.VehicleAgeMonths,
		ClientType:           ClientB2C,
		VehicleValuePLN:      e.PlannedVehiclePLN,
		IsICE:                true,
		SubsidyDaysRemaining: e.SubsidyDeadlineDays,
		Language:             e.Language,
	}
	if e.PurchaseType == "business" {
		in.ClientType = ClientB2B
	}
	if e.MonthlyDistanceKm != nil {
		in.MonthlyDistanceKm = *e.MonthlyDistanceKm
	}
	if e.FuelConsumptionL100km != nil && e.MonthlyDistanceKm != nil {
		price := dieselPricePerLiter
		if e.FuelPricePerLiter != nil && *e.FuelPricePerLiter > 0 {
			price = *e.FuelPricePerLiter
		}
		cost := *e.FuelConsumptionL100km / 100 * float64(*e.MonthlyDistanceKm) * price
		in.FuelCostMonthly = &cost
	}
	return ScoreUrgency(in)
}

type urgencyAccumulator struct {
	input       UrgencyInput
	score       int
	monthlyLoss int
	messages    []string
	factors     map[string]any
}

// taxPenalty models the 2026 amortization change: the deductible limit for
// combustion vehicles dropped to 100k PLN while EVs keep 225k, so a B2B
// buyer of an expensive ICE vehicle loses real deduction money.
func (a *urgencyAccumulator) taxPenalty() {
	in := a.input
	if in.ClientType != ClientB2B || in.VehicleValuePLN == nil {
		a.factors["tax_penalty"] = map[string]any{"applicable": false}
		return
	}

	value := *in.VehicleValuePLN
	if !in.IsICE || value <= iceAmortizationLimit {
		a.factors["tax_penalty"] = map[string]any{
			"applicable":   false,
			"within_limit": true,
		}
		return
	}

	excess := value - iceAmortizationLimit
	lostDeduction := int(float64(excess) * citTaxRate)
	monthlyLoss := lostDeduction / 60 // amortized over 5 years
	added := min(30, excess*30/100_000)

	a.score += added
	a.monthlyLoss += monthlyLoss
	a.factors["tax_penalty"] = map[string]any{
		"applicable":         true,
		"vehicle_value":      value,
		"limit_2026":         iceAmortizationLimit,
		"excess_amount":      excess,
		"lost_deduction_pln": lostDeduction,
		"monthly_loss_pln":   monthlyLoss,
		"score_added":        added,
	}

	if in.Language == "pl" {
		a.messages = append(a.messages, fmt.Sprintf(
			"KARA PODATKOWA 2026: Limit amortyzacji dla ICE spadł do %dk PLN! Przy wartości %dk PLN tracisz %d PLN odliczenia (%d PLN/mies). EV ma limit %dk!",
			iceAmortizationLimit/1000, value/1000, lostDeduction, monthlyLoss, evAmortizationLimit/1000))
	} else {
		a.messages = append(a.messages, fmt.Sprintf(
			"TAX PENALTY 2026: ICE amortization limit dropped to %dk PLN! At %dk PLN you lose %d PLN deduction (%d PLN/month). EVs keep the %dk limit!",
			iceAmortizationLimit/1000, value/1000, lostDeduction, monthlyLoss, evAmortizationLimit/1000))
	}
}

func (a *urgencyAccumulator) fuelSavings() {
	in := a.input
	km := float64(in.MonthlyDistanceKm)

	dieselMonthly := km / 100 * dieselLitersPer100km * dieselPricePerLiter
	evMonthly := km / 100 * evKWhPer100km * nightTariffPerKWh

	actualFuelCost := dieselMonthly
	if in.FuelCostMonthly != nil {
		actualFuelCost = *in.FuelCostMonthly
	}
	savings := int(actualFuelCost - evMonthly)

	added := min(25, savings*25/1000)
	if added < 0 {
		added = 0
	}
	a.score += added
	a.monthlyLoss += max(0, savings)
	a.factors["fuel_savings"] = map[string]any{
		"monthly_distance_km":  in.MonthlyDistanceKm,
		"actual_fuel_monthly":  int(actualFuelCost),
		"ev_cost_monthly_g12":  int(evMonthly),
		"monthly_savings_pln":  savings,
		"score_added":          added,
	}

	if savings <= 0 {
		return
	}
	if in.Language == "pl" {
		a.messages = append(a.messages, fmt.Sprintf(
			"OSZCZĘDNOŚĆ PALIWA: Diesel %.2f PLN/l vs G12 nocna %.2f PLN/kWh. Przy %d km/mies. oszczędzasz %d PLN miesięcznie!",
			dieselPricePerLiter, nightTariffPerKWh, in.MonthlyDistanceKm, savings))
	} else {
		a.messages = append(a.messages, fmt.Sprintf(
			"FUEL SAVINGS: Diesel %.2f PLN/l vs G12 night %.2f PLN/kWh. At %d km/month you save %d PLN monthly!",
			dieselPricePerLiter, nightTariffPerKWh, in.MonthlyDistanceKm, savings))
	}
}

func (a *urgencyAccumulator) subsidyUrgency() {
	in := a.input
	if in.SubsidyDaysRemaining == nil {
		a.factors["subsidy"] = map[string]any{"applicable": false}
		return
	}

	days := *in.SubsidyDaysRemaining
	if days > subsidyCriticalDays {
		a.score += 5
		a.factors["subsidy"] = map[string]any{
			"applicable":     true,
			"days_remaining": days,
			"urgency_level":  "low",
		}
		return
	}

	a.score += subsidyBonusPoints
	monthlyImpact := subsidyAmount
	if days > 0 {
		monthlyImpact = subsidyAmount / max(1, days/30)
	}
	a.monthlyLoss += monthlyImpact

	urgency := "high"
	if days <= 30 {
		urgency = "critical"
	}
	a.factors["subsidy"] = map[string]any{
		"applicable":         true,
		"days_remaining":     days,
		"subsidy_value_pln":  subsidyAmount,
		"urgency_level":      urgency,
		"bonus_points_added": subsidyBonusPoints,
		"monthly_impact_pln": monthlyImpact,
	}

	if in.Language == "pl" {
		a.messages = append(a.messages, fmt.Sprintf(
			"PILNE - NaszEauto: Tylko %d dni do końca programu! Dotacja %d PLN przepada. Działaj teraz!",
			days, subsidyAmount))
	} else {
		a.messages = append(a.messages, fmt.Sprintf(
			"URGENT - NaszEauto: Only %d days until program ends! Subsidy of %d PLN expires. Act now!",
			days, subsidyAmount))
	}
}

func (a *urgencyAccumulator) vehicleAge() {
	in := a.input
	if in.VehicleAgeMonths == nil {
		a.factors["vehicle_age"] = map[string]any{"applicable": false}
		return
	}

	age := *in.VehicleAgeMonths
	var (
		added      int
		category   string
		repairRisk int
	)
	switch {
	case age >= 36 && age <= 48:
		added, category = 15, "optimal"
		if in.Language == "pl" {
			a.messages = append(a.messages, fmt.Sprintf(
				"IDEALNY MOMENT: %d miesięcy - koniec typowego leasingu. Maksymalna wartość trade-in, minimalne ryzyko napraw.", age))
		} else {
			a.messages = append(a.messages, fmt.Sprintf(
				"PERFECT TIMING: %d months - typical leasing end. Maximum trade-in value, minimal repair risk.", age))
		}
	case age > 48 && age <= 60:
		added, category = 10, "good"
	case age > 60 && age <= 84:
		added, category, repairRisk = 5, "fair", 200
	case age > 84:
		added, category, repairRisk = 12, "urgent", 400
		if in.Language == "pl" {
			a.messages = append(a.messages, fmt.Sprintf(
				"RYZYKO NAPRAW: %d miesięcy (%d lat). Szacowany koszt napraw: ~%d PLN/mies. Czas na wymianę!",
				age, age/12, repairRisk))
		} else {
			a.messages = append(a.messages, fmt.Sprintf(
				"REPAIR RISK: %d months (%d years). Estimated repair cost: ~%d PLN/month. Time for replacement!",
				age, age/12, repairRisk))
		}
	default:
		added, category = 3, "too_new"
	}

	a.score += added
	a.monthlyLoss += repairRisk
	a.factors["vehicle_age"] = map[string]any{
		"applicable":          true,
		"age_months":          age,
		"category":            category,
		"repair_risk_monthly": repairRisk,
		"score_added":         added,
	}
}

func fireLevel(score int) FireLevel {
	switch {
	case score >= 75:
		return FireBurning
	case score >= 50:
		return FireHot
	case score >= 30:
		return FireWarm
	default:
		return FireCold
	}
}

func urgencyMessage(language string, level FireLevel, monthlyLoss int) string {
	if language == "en" {
		switch level {
		case FireBurning:
			return fmt.Sprintf("FIRE! Delaying costs you ~%d PLN monthly. ACT NOW!", monthlyLoss)
		case FireHot:
			return fmt.Sprintf("HOT! Each month of delay = ~%d PLN lost.", monthlyLoss)
		case FireWarm:
			return fmt.Sprintf("Good timing for decision. Potential savings: ~%d PLN/month.", monthlyLoss)
		default:
			return fmt.Sprintf("You can analyze calmly. Delay cost: ~%d PLN/month.", monthlyLoss)
		}
	}
	switch level {
	case FireBurning:
		return fmt.Sprintf("POŻAR! Zwlekanie kosztuje Cię ~%d PLN miesięcznie. DZIAŁAJ TERAZ!", monthlyLoss)
	case FireHot:
		return fmt.Sprintf("GORĄCO! Każdy miesiąc zwłoki = ~%d PLN strat.", monthlyLoss)
	case FireWarm:
		return fmt.Sprintf("Dobry moment na decyzję. Potencjalne oszczędności: ~%d PLN/mies.", monthlyLoss)
	default:
		return fmt.Sprintf("Możesz spokojnie analizować. Koszt zwłoki: ~%d PLN/mies.", monthlyLoss)
	}
}
