package domain

// ProjectType is one COI requirement preset from GET /api/project-types.
// The backend keys presets by id; the client flattens them into a list.
type ProjectType struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	GLPerOccurrence  string  `json:"gl_per_occurrence"`
	GLAggregate      string  `json:"gl_aggregate"`
	UmbrellaRequired bool    `json:"umbrella_required"`
	UmbrellaMinimum  *string `json:"umbrella_minimum"`
}

// StateRules summarizes one state's insurance rules from GET /api/states.
type StateRules struct {
	Code                 string `json:"code"`
	WCRequired           bool   `json:"wc_required"`
	WCThreshold          any    `json:"wc_threshold"`
	MonopolisticWC       bool   `json:"monopolistic_wc"`
	AntiIndemnityType    string `json:"anti_indemnity_type"`
	VoidsAICoverage      bool   `json:"voids_ai_coverage"`
	GLRequiredForLicense bool   `json:"gl_required_for_license"`
	RiskLevel            string `json:"risk_level"`
}

// StateDetail is the full rule set for one state from GET /api/state/{code}.
type StateDetail struct {
	State            string                `json:"state"`
	WorkersComp      StateWorkersComp      `json:"workers_comp"`
	AntiIndemnity    StateAntiIndemnity    `json:"anti_indemnity"`
	GeneralLiability StateGeneralLiability `json:"general_liability"`
	AutoLiability    StateAutoLiability    `json:"auto_liability"`
}

type StateWorkersComp struct {
	Required             bool   `json:"required"`
	Threshold            any    `json:"threshold"`
	ConstructionSpecific any    `json:"construction_specific"`
	Monopolistic         bool   `json:"monopolistic"`
	Notes                string `json:"notes"`
}

type StateAntiIndemnity struct {
	Type                   string `json:"type"`
	VoidsAIForNegligence   bool   `json:"voids_ai_for_negligence"`
	InsuranceSavingsClause bool   `json:"insurance_savings_clause"`
	Notes                  string `json:"notes"`
	RiskLevel              string `json:"risk_level"`
}

type StateGeneralLiability struct {
	RequiredForLicense   bool    `json:"required_for_license"`
	MinimumPerOccurrence *string `json:"minimum_per_occurrence"`
	Notes                string  `json:"notes"`
}

// StateAutoLiability carries the minimums both as dollar strings and in the
// 25/50/25 shorthand.
type StateAutoLiability struct {
	BodilyInjuryPerPerson   string `json:"bodily_injury_per_person"`
	BodilyInjuryPerAccident string `json:"bodily_injury_per_accident"`
	PropertyDamage          string `json:"property_damage"`
	CombinedFormat          string `json:"combined_format"`
}

// Offer is one affiliate promotion shown while an analysis runs.
type Offer struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
	Blurb string `json:"blurb" yaml:"blurb"`
}

// AffiliateRotationState is the currently displayed offer.
type AffiliateRotationState struct {
	CurrentOffer *Offer `json:"current_offer"`
	OfferIndex   int    `json:"offer_index"`
	Running      bool   `json:"running"`
}
