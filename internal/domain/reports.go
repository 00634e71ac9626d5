package domain

import (
	"encoding/json"
	"fmt"
)

// ============================================================
// Analyzer reports
// ============================================================
//
// Reports form a closed union: one struct per analyzable document type.
// All of them expose the generated letter/script artifact through Letter().

// Tab selects which half of a report the view shows.
type Tab string

const (
	TabReport Tab = "report"
	TabLetter Tab = "letter"
)

// ParseTab accepts "report" or "letter".
func ParseTab(s string) (Tab, error) {
	switch Tab(s) {
	case TabReport, TabLetter:
		return Tab(s), nil
	}
	return "", &ErrValidation{Field: "tab", Message: fmt.Sprintf("unknown tab %q", s)}
}

// Report is implemented by every analyzer report.
type Report interface {
	Kind() DocumentType
	Letter() string
	Risk() RiskSummary
	Meta() ReportMeta
}

// RiskSummary is the headline shown above every report. Score is nil for
// compliance reports, which grade pass/fail instead of scoring.
type RiskSummary struct {
	Level string `json:"level"`
	Score *int   `json:"score,omitempty"`
}

// ReportMeta carries the unlock bookkeeping the backend attaches to reports.
type ReportMeta struct {
	DocumentHash *string `json:"document_hash,omitempty"`
	IsPremium    bool    `json:"is_premium"`
	TotalIssues  *int    `json:"total_issues,omitempty"`
}

// Meta returns the bookkeeping fields.
func (m ReportMeta) Meta() ReportMeta { return m }

// RedFlag is a risky clause. The backend names the remediation "protection"
// for most report types and "what_to_ask" for insurance policies; both decode
// into Remediation.
type RedFlag struct {
	Name        string  `json:"name"`
	Severity    string  `json:"severity"`
	ClauseText  *string `json:"clause_text"`
	Explanation string  `json:"explanation"`
	Remediation string  `json:"remediation"`
}

func (f *RedFlag) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        string  `json:"name"`
		Severity    string  `json:"severity"`
		ClauseText  *string `json:"clause_text"`
		Explanation string  `json:"explanation"`
		Remediation string  `json:"remediation"`
		Protection  string  `json:"protection"`
		WhatToAsk   string  `json:"what_to_ask"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = RedFlag{
		Name:        raw.Name,
		Severity:    raw.Severity,
		ClauseText:  raw.ClauseText,
		Explanation: raw.Explanation,
		Remediation: firstNonEmpty(raw.Remediation, raw.Protection, raw.WhatToAsk),
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Assessment holds the fields shared by the seven contract-style reports.
type Assessment struct {
	OverallRisk string    `json:"overall_risk"`
	RiskScore   int       `json:"risk_score"`
	RedFlags    []RedFlag `json:"red_flags"`
	Summary     string    `json:"summary"`
}

func (a Assessment) Risk() RiskSummary {
	score := a.RiskScore
	return RiskSummary{Level: a.OverallRisk, Score: &score}
}

// --- COI compliance ---

type COIData struct {
	InsuredName                string  `json:"insured_name"`
	PolicyNumber               *string `json:"policy_number"`
	Carrier                    *string `json:"carrier"`
	EffectiveDate              *string `json:"effective_date"`
	ExpirationDate             *string `json:"expiration_date"`
	GLLimitPerOccurrence       *string `json:"gl_limit_per_occurrence"`
	GLLimitAggregate           *string `json:"gl_limit_aggregate"`
	WorkersComp                bool    `json:"workers_comp"`
	AutoLiability              bool    `json:"auto_liability"`
	UmbrellaLimit              *string `json:"umbrella_limit"`
	AdditionalInsuredChecked   bool    `json:"additional_insured_checked"`
	WaiverOfSubrogationChecked bool    `json:"waiver_of_subrogation_checked"`
	PrimaryNoncontributory     bool    `json:"primary_noncontributory"`
	CertificateHolder          *string `json:"certificate_holder"`
	DescriptionOfOperations    *string `json:"description_of_operations"`
	CG2010Endorsement          bool    `json:"cg_20_10_endorsement"`
	CG2037Endorsement          bool    `json:"cg_20_37_endorsement"`
}

type ComplianceRequirement struct {
	Name          string `json:"name"`
	RequiredValue string `json:"required_value"`
	ActualValue   string `json:"actual_value"`
	Status        string `json:"status"`
	Explanation   string `json:"explanation"`
}

type ExtractionMetadata struct {
	OverallConfidence   float64  `json:"overall_confidence"`
	NeedsHumanReview    bool     `json:"needs_human_review"`
	ReviewReasons       []string `json:"review_reasons"`
	LowConfidenceFields []string `json:"low_confidence_fields"`
	ExtractionNotes     *string  `json:"extraction_notes"`
}

// ComplianceReport is returned by /api/check-coi-compliance.
type ComplianceReport struct {
	ReportMeta
	OverallStatus      string                  `json:"overall_status"`
	COIData            COIData                 `json:"coi_data"`
	CriticalGaps       []ComplianceRequirement `json:"critical_gaps"`
	Warnings           []ComplianceRequirement `json:"warnings"`
	Passed             []ComplianceRequirement `json:"passed"`
	RiskExposure       string                  `json:"risk_exposure"`
	FixRequestLetter   string                  `json:"fix_request_letter"`
	ExtractionMetadata *ExtractionMetadata     `json:"extraction_metadata,omitempty"`
}

func (r ComplianceReport) Kind() DocumentType { return DocCOI }
func (r ComplianceReport) Letter() string     { return r.FixRequestLetter }
func (r ComplianceReport) Risk() RiskSummary  { return RiskSummary{Level: r.OverallStatus} }

// --- Lease ---

type LeaseInsuranceClause struct {
	ClauseType     string `json:"clause_type"`
	OriginalText   string `json:"original_text"`
	Summary        string `json:"summary"`
	RiskLevel      string `json:"risk_level"`
	Explanation    string `json:"explanation"`
	Recommendation string `json:"recommendation"`
}

type LeaseReport struct {
	ReportMeta
	Assessment
	LeaseType             string                 `json:"lease_type"`
	LandlordName          *string                `json:"landlord_name"`
	TenantName            *string                `json:"tenant_name"`
	PropertyAddress       *string                `json:"property_address"`
	LeaseTerm             *string                `json:"lease_term"`
	InsuranceRequirements []LeaseInsuranceClause `json:"insurance_requirements"`
	MissingProtections    []string               `json:"missing_protections"`
	NegotiationLetter     string                 `json:"negotiation_letter"`
}

func (r LeaseReport) Kind() DocumentType { return DocLease }
func (r LeaseReport) Letter() string     { return r.NegotiationLetter }

// --- Gym ---

type GymReport struct {
	ReportMeta
	Assessment
	GymName                *string  `json:"gym_name"`
	ContractType           string   `json:"contract_type"`
	MonthlyFee             *string  `json:"monthly_fee"`
	CancellationDifficulty string   `json:"cancellation_difficulty"`
	StateProtections       []string `json:"state_protections"`
	CancellationGuide      string   `json:"cancellation_guide"`
}

func (r GymReport) Kind() DocumentType { return DocGym }
func (r GymReport) Letter() string     { return r.CancellationGuide }

// --- Employment ---

type EmploymentReport struct {
	ReportMeta
	Assessment
	ContractKind          string   `json:"document_type"`
	HasNonCompete         bool     `json:"has_non_compete"`
	NonCompeteEnforceable *string  `json:"non_compete_enforceable"`
	HasArbitration        bool     `json:"has_arbitration"`
	HasIPAssignment       bool     `json:"has_ip_assignment"`
	StateNotes            []string `json:"state_notes"`
	NegotiationPoints     string   `json:"negotiation_points"`
}

func (r EmploymentReport) Kind() DocumentType { return DocEmployment }
func (r EmploymentReport) Letter() string     { return r.NegotiationPoints }

// --- Freelancer ---

type FreelancerReport struct {
	ReportMeta
	Assessment
	ContractType       string   `json:"contract_type"`
	PaymentTerms       *string  `json:"payment_terms"`
	IPOwnership        string   `json:"ip_ownership"`
	HasKillFee         bool     `json:"has_kill_fee"`
	RevisionLimit      *string  `json:"revision_limit"`
	MissingProtections []string `json:"missing_protections"`
	SuggestedChanges   string   `json:"suggested_changes"`
}

func (r FreelancerReport) Kind() DocumentType { return DocFreelancer }
func (r FreelancerReport) Letter() string     { return r.SuggestedChanges }

// --- Influencer ---

type InfluencerReport struct {
	ReportMeta
	Assessment
	BrandName           *string `json:"brand_name"`
	CampaignType        string  `json:"campaign_type"`
	UsageRightsDuration *string `json:"usage_rights_duration"`
	ExclusivityScope    *string `json:"exclusivity_scope"`
	PaymentTerms        *string `json:"payment_terms"`
	HasPerpetualRights  bool    `json:"has_perpetual_rights"`
	HasAITrainingRights bool    `json:"has_ai_training_rights"`
	FTCCompliance       string  `json:"ftc_compliance"`
	NegotiationScript   string  `json:"negotiation_script"`
}

func (r InfluencerReport) Kind() DocumentType { return DocInfluencer }
func (r InfluencerReport) Letter() string     { return r.NegotiationScript }

// --- Timeshare ---

type TimeshareReport struct {
	ReportMeta
	Assessment
	ResortName          *string  `json:"resort_name"`
	OwnershipType       string   `json:"ownership_type"`
	HasPerpetuityClause bool     `json:"has_perpetuity_clause"`
	RescissionDeadline  *string  `json:"rescission_deadline"`
	Estimated10YrCost   *string  `json:"estimated_10yr_cost"`
	ExitOptions         []string `json:"exit_options"`
	RescissionLetter    string   `json:"rescission_letter"`
}

func (r TimeshareReport) Kind() DocumentType { return DocTimeshare }
func (r TimeshareReport) Letter() string     { return r.RescissionLetter }

// --- Insurance policy ---

type InsurancePolicyReport struct {
	ReportMeta
	Assessment
	PolicyType        string   `json:"policy_type"`
	Carrier           *string  `json:"carrier"`
	CoverageType      string   `json:"coverage_type"`
	ValuationMethod   string   `json:"valuation_method"`
	DeductibleType    string   `json:"deductible_type"`
	HasArbitration    bool     `json:"has_arbitration"`
	CoverageGaps      []string `json:"coverage_gaps"`
	QuestionsForAgent string   `json:"questions_for_agent"`
}

func (r InsurancePolicyReport) Kind() DocumentType { return DocInsurancePolicy }
func (r InsurancePolicyReport) Letter() string     { return r.QuestionsForAgent }

// DecodeReport decodes a raw analyzer response into the report variant for t.
func DecodeReport(t DocumentType, data []byte) (Report, error) {
	var r Report
	switch t {
	case DocCOI:
		var v ComplianceReport
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		r = v
	case DocLease:
		var v LeaseReport
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		r = v
	case DocGym:
		var v GymReport
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		r = v
	case DocEmployment:
		var v EmploymentReport
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		r = v
	case DocFreelancer:
		var v FreelancerReport
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		r = v
	case DocInfluencer:
		var v InfluencerReport
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		r = v
	case DocTimeshare:
		var v TimeshareReport
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		r = v
	case DocInsurancePolicy:
		var v InsurancePolicyReport
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		r = v
	default:
		return nil, &ErrValidation{Field: "document_type", Message: fmt.Sprintf("no report for %q", t)}
	}
	return r, nil
}
