package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
)

func TestRedFlag_RemediationAliases(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"name":"a","protection":"Negotiate a cap"}`, "Negotiate a cap"},
		{`{"name":"b","what_to_ask":"Is flood covered?"}`, "Is flood covered?"},
		{`{"name":"c","remediation":"Strike it","protection":"ignored"}`, "Strike it"},
		{`{"name":"d"}`, ""},
	}
	for _, tt := range tests {
		var f domain.RedFlag
		if err := json.Unmarshal([]byte(tt.body), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.body, err)
		}
		if f.Remediation != tt.want {
			t.Errorf("%s: remediation = %q, want %q", tt.body, f.Remediation, tt.want)
		}
	}

	out, _ := json.Marshal(domain.RedFlag{Name: "x", Remediation: "fix"})
	var raw map[string]any
	_ = json.Unmarshal(out, &raw)
	if raw["remediation"] != "fix" {
		t.Errorf("remediation should be written canonically, got %s", out)
	}
}

func TestDecodeReport(t *testing.T) {
	tests := []struct {
		docType    domain.DocumentType
		body       string
		wantLetter string
		wantLevel  string
	}{
		{domain.DocCOI, `{"overall_status":"compliant","fix_request_letter":"L1"}`, "L1", "compliant"},
		{domain.DocLease, `{"overall_risk":"high","risk_score":70,"negotiation_letter":"L2"}`, "L2", "high"},
		{domain.DocGym, `{"overall_risk":"low","cancellation_guide":"L3"}`, "L3", "low"},
		{domain.DocEmployment, `{"overall_risk":"medium","document_type":"offer","negotiation_points":"L4"}`, "L4", "medium"},
		{domain.DocFreelancer, `{"overall_risk":"low","suggested_changes":"L5"}`, "L5", "low"},
		{domain.DocInfluencer, `{"overall_risk":"high","negotiation_script":"L6"}`, "L6", "high"},
		{domain.DocTimeshare, `{"overall_risk":"high","rescission_letter":"L7"}`, "L7", "high"},
		{domain.DocInsurancePolicy, `{"overall_risk":"medium","questions_for_agent":"L8"}`, "L8", "medium"},
	}
	for _, tt := range tests {
		t.Run(string(tt.docType), func(t *testing.T) {
			r, err := domain.DecodeReport(tt.docType, []byte(tt.body))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if r.Kind() != tt.docType {
				t.Errorf("kind = %s", r.Kind())
			}
			if r.Letter() != tt.wantLetter {
				t.Errorf("letter = %q", r.Letter())
			}
			if r.Risk().Level != tt.wantLevel {
				t.Errorf("risk level = %q", r.Risk().Level)
			}
		})
	}
}

func TestDecodeReport_Metadata(t *testing.T) {
	r, err := domain.DecodeReport(domain.DocLease, []byte(`{"overall_risk":"low","risk_score":12,"document_hash":"h1","is_premium":true,"total_issues":4}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	meta := r.Meta()
	if meta.DocumentHash == nil || *meta.DocumentHash != "h1" || !meta.IsPremium || meta.TotalIssues == nil || *meta.TotalIssues != 4 {
		t.Errorf("unexpected meta %+v", meta)
	}
	if score := r.Risk().Score; score == nil || *score != 12 {
		t.Errorf("unexpected score %v", score)
	}

	coi, _ := domain.DecodeReport(domain.DocCOI, []byte(`{"overall_status":"non-compliant"}`))
	if coi.Risk().Score != nil {
		t.Error("compliance reports have no score")
	}
}

func TestDecodeReport_Errors(t *testing.T) {
	if _, err := domain.DecodeReport(domain.DocLease, []byte(`not json`)); err == nil {
		t.Error("expected a decode error")
	}
	_, err := domain.DecodeReport(domain.DocContract, []byte(`{}`))
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Errorf("expected ErrValidation for a type without a report, got %v", err)
	}
}

func TestParseTab(t *testing.T) {
	if tab, err := domain.ParseTab("letter"); err != nil || tab != domain.TabLetter {
		t.Errorf("unexpected %v, %v", tab, err)
	}
	if _, err := domain.ParseTab("summary"); err == nil {
		t.Error("expected an error for an unknown tab")
	}
}
