package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
)

// RouteContext is what request bodies are built from.
type RouteContext struct {
	Text    string
	Options domain.AnalysisOptions
}

type route struct {
	endpoint     string
	errorMessage string
	body         func(rc RouteContext) any
}

// Request bodies. State is always serialized, as null when unset; optional
// supplements are omitted.
type (
	coiRequest struct {
		COIText     string  `json:"coi_text"`
		ProjectType string  `json:"project_type"`
		State       *string `json:"state"`
	}
	leaseRequest struct {
		LeaseText string  `json:"lease_text"`
		State     *string `json:"state"`
		LeaseType string  `json:"lease_type"`
	}
	gymRequest struct {
		ContractText string  `json:"contract_text"`
		State        *string `json:"state"`
	}
	employmentRequest struct {
		ContractText string  `json:"contract_text"`
		State        *string `json:"state"`
		Salary       *int    `json:"salary,omitempty"`
	}
	freelancerRequest struct {
		ContractText string `json:"contract_text"`
		ProjectValue *int   `json:"project_value,omitempty"`
	}
	influencerRequest struct {
		ContractText string `json:"contract_text"`
		BaseRate     *int   `json:"base_rate,omitempty"`
	}
	timeshareRequest struct {
		ContractText  string  `json:"contract_text"`
		State         *string `json:"state"`
		PurchasePrice *int    `json:"purchase_price,omitempty"`
		AnnualFee     *int    `json:"annual_fee,omitempty"`
	}
	insurancePolicyRequest struct {
		PolicyText string  `json:"policy_text"`
		State      *string `json:"state"`
		PolicyType *string `json:"policy_type,omitempty"`
	}
)

var routes = map[domain.DocumentType]route{
	domain.DocCOI: {
		endpoint:     "/api/check-coi-compliance",
		errorMessage: "Failed to check COI compliance. Please try again.",
		body: func(rc RouteContext) any {
			return coiRequest{COIText: rc.Text, ProjectType: rc.Options.ProjectType, State: rc.Options.State}
		},
	},
	domain.DocLease: {
		endpoint:     "/api/analyze-lease",
		errorMessage: "Failed to analyze lease. Please try again.",
		body: func(rc RouteContext) any {
			return leaseRequest{LeaseText: rc.Text, State: rc.Options.State, LeaseType: rc.Options.LeaseType}
		},
	},
	domain.DocGym: {
		endpoint:     "/api/analyze-gym",
		errorMessage: "Failed to analyze gym contract. Please try again.",
		body: func(rc RouteContext) any {
			return gymRequest{ContractText: rc.Text, State: rc.Options.State}
		},
	},
	domain.DocEmployment: {
		endpoint:     "/api/analyze-employment",
		errorMessage: "Failed to analyze employment contract. Please try again.",
		body: func(rc RouteContext) any {
			return employmentRequest{ContractText: rc.Text, State: rc.Options.State, Salary: rc.Options.Salary}
		},
	},
	domain.DocFreelancer: {
		endpoint:     "/api/analyze-freelancer",
		errorMessage: "Failed to analyze freelancer contract. Please try again.",
		body: func(rc RouteContext) any {
			return freelancerRequest{ContractText: rc.Text, ProjectValue: rc.Options.ProjectValue}
		},
	},
	domain.DocInfluencer: {
		endpoint:     "/api/analyze-influencer",
		errorMessage: "Failed to analyze influencer contract. Please try again.",
		body: func(rc RouteContext) any {
			return influencerRequest{ContractText: rc.Text, BaseRate: rc.Options.BaseRate}
		},
	},
	domain.DocTimeshare: {
		endpoint:     "/api/analyze-timeshare",
		errorMessage: "Failed to analyze timeshare contract. Please try again.",
		body: func(rc RouteContext) any {
			return timeshareRequest{
				ContractText:  rc.Text,
				State:         rc.Options.State,
				PurchasePrice: rc.Options.PurchasePrice,
				AnnualFee:     rc.Options.AnnualFee,
			}
		},
	},
	domain.DocInsurancePolicy: {
		endpoint:     "/api/analyze-insurance-policy",
		errorMessage: "Failed to analyze insurance policy. Please try again.",
		body: func(rc RouteContext) any {
			return insurancePolicyRequest{PolicyText: rc.Text, State: rc.Options.State, PolicyType: rc.Options.PolicyType}
		},
	},
}

// Endpoint returns the backend path serving docType.
func Endpoint(docType domain.DocumentType) (string, bool) {
	r, ok := routes[docType]
	return r.endpoint, ok
}

// Dispatcher maps a document type to exactly one analyzer. It holds no
// state of its own.
type Dispatcher struct {
	analyzers map[domain.DocumentType]AnalyzerHandle
}

// NewDispatcher indexes the given analyzers by kind.
func NewDispatcher(analyzers ...AnalyzerHandle) *Dispatcher {
	m := make(map[domain.DocumentType]AnalyzerHandle, len(analyzers))
	for _, a := range analyzers {
		m[a.Kind()] = a
	}
	return &Dispatcher{analyzers: m}
}

// Route invokes the analyzer for docType once. Types without a route are a
// validation error; the workspace filters them out before routing.
func (d *Dispatcher) Route(ctx context.Context, docType domain.DocumentType, rc RouteContext) error {
	r, ok := routes[docType]
	target, found := d.analyzers[docType]
	if !ok || !found {
		return &domain.ErrValidation{
			Field:   "document_type",
			Message: fmt.Sprintf("no analyzer for %q", docType),
		}
	}

	return target.Analyze(ctx, AnalyzeConfig{
		Endpoint:     r.endpoint,
		ErrorMessage: r.errorMessage,
		Body:         func() any { return r.body(rc) },
	})
}
