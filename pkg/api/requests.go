package api

// newSessionRequest is the body for POST /api/v1/sessions/new.
type newSessionRequest struct {
	Language string `json:"language"`
}

// sendRequest is the body for POST /api/v1/sessions/send.
type sendRequest struct {
	SessionID string `json:"session_id"`
	UserInput string `json:"user_input"`
	Language  string `json:"language"`
	Stage     string `json:"journey_stage"`
}

// feedbackRequest is the body for POST /api/v1/sessions/feedback.
type feedbackRequest struct {
	SessionID     string `json:"session_id"`
	EntryRef      int64  `json:"log_id"`
	Polarity      string `json:"polarity"`
	OriginalInput string `json:"original_input"`
	BadSuggestion string `json:"bad_suggestion"`
	Comment       string `json:"comment"`
	Language      string `json:"language"`
}

// refineRequest is the body for POST /api/v1/sessions/refine.
type refineRequest struct {
	SessionID     string `json:"session_id"`
	OriginalInput string `json:"original_input"`
	BadSuggestion string `json:"bad_suggestion"`
	FeedbackNote  string `json:"feedback_note"`
	Language      string `json:"language"`
}

// endSessionRequest is the body for POST /api/v1/sessions/end.
type endSessionRequest struct {
	SessionID string `json:"session_id"`
	Outcome   string `json:"outcome"`
}

// retryRequest is the body for POST /api/v1/sessions/retry_slowpath.
type retryRequest struct {
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
}

// urgencyScoreRequest is the body for POST /api/v1/intel/burning_house.
// Every figure is optional; the scorer skips factors it has no data for.
type urgencyScoreRequest struct {
	FuelConsumptionL100km *float64 `json:"current_fuel_consumption_l_100km"`
	MonthlyDistanceKm     *int     `json:"monthly_distance_km"`
	FuelPricePerLiter     *float64 `json:"fuel_price_pln_l"`
	VehicleAgeMonths      *int     `json:"vehicle_age_months"`
	PurchaseType          string   `json:"purchase_type"`
	PlannedVehiclePLN     *int     `json:"vehicle_price_planned"`
	SubsidyDeadlineDays   *int     `json:"subsidy_deadline_days"`
	Language              string   `json:"language"`
}

// addNuggetRequest is the body for POST /api/v1/admin/rag/add.
type addNuggetRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords"`
	Language string   `json:"language"`
	Type     string   `json:"type"`
	Tags     []string `json:"tags"`
}

// createStandardRequest is the body for POST /api/v1/admin/feedback/create_standard.
type createStandardRequest struct {
	FeedbackID int64  `json:"feedback_id"`
	Situation  string `json:"situation"`
	Response   string `json:"response"`
	Language   string `json:"language"`
}
