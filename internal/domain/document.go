package domain

import (
	"encoding/json"
	"strings"
)

// ============================================================
// Document types & classification
// ============================================================

// DocumentType is the classifier's verdict for an uploaded document.
type DocumentType string

const (
	DocCOI             DocumentType = "coi"
	DocLease           DocumentType = "lease"
	DocGym             DocumentType = "gym"
	DocTimeshare       DocumentType = "timeshare"
	DocInfluencer      DocumentType = "influencer"
	DocFreelancer      DocumentType = "freelancer"
	DocEmployment      DocumentType = "employment"
	DocInsurancePolicy DocumentType = "insurance_policy"
	DocContract        DocumentType = "contract"
	DocUnknown         DocumentType = "unknown"
)

// AnalyzableTypes lists the eight document types that have a report flow,
// in the order the front end presents them.
var AnalyzableTypes = []DocumentType{
	DocCOI,
	DocLease,
	DocGym,
	DocEmployment,
	DocFreelancer,
	DocInfluencer,
	DocTimeshare,
	DocInsurancePolicy,
}

// The classifier still emits the long names for contract types.
var documentTypeAliases = map[string]DocumentType{
	"gym_contract":        DocGym,
	"employment_contract": DocEmployment,
	"freelancer_contract": DocFreelancer,
	"influencer_contract": DocInfluencer,
	"timeshare_contract":  DocTimeshare,
	"policy":              DocInsurancePolicy,
}

var documentTypeNames = map[DocumentType]string{
	DocCOI:             "Certificate of Insurance",
	DocLease:           "Property Lease",
	DocGym:             "Gym/Fitness Membership",
	DocEmployment:      "Employment Contract",
	DocFreelancer:      "Freelancer Agreement",
	DocInfluencer:      "Influencer/Sponsorship",
	DocTimeshare:       "Timeshare Contract",
	DocInsurancePolicy: "Insurance Policy",
	DocContract:        "Contract",
	DocUnknown:         "Unknown Document",
}

// ParseDocumentType normalizes a backend type string. Anything not recognized
// becomes DocUnknown.
func ParseDocumentType(s string) DocumentType {
	s = strings.ToLower(strings.TrimSpace(s))
	if alias, ok := documentTypeAliases[s]; ok {
		return alias
	}
	t := DocumentType(s)
	if _, ok := documentTypeNames[t]; ok {
		return t
	}
	return DocUnknown
}

// Analyzable reports whether the type has a dedicated analyzer.
func (t DocumentType) Analyzable() bool {
	for _, a := range AnalyzableTypes {
		if a == t {
			return true
		}
	}
	return false
}

// DisplayName returns the human-readable name, falling back to the
// unknown-document label for values outside the table.
func (t DocumentType) DisplayName() string {
	if name, ok := documentTypeNames[t]; ok {
		return name
	}
	return documentTypeNames[DocUnknown]
}

// Classification is the result of POST /api/classify. It is replaced
// wholesale, never merged.
type Classification struct {
	DocumentType DocumentType `json:"document_type"`
	Confidence   float64      `json:"confidence"`
	Description  string       `json:"description"`
	Supported    bool         `json:"supported"`
}

// UnknownClassification is what a failed or empty classification collapses to.
func UnknownClassification() Classification {
	return Classification{DocumentType: DocUnknown, Confidence: 0, Supported: false}
}

// UnmarshalJSON normalizes aliases, clamps confidence to [0,1] and refuses
// to mark non-analyzable types as supported.
func (c *Classification) UnmarshalJSON(data []byte) error {
	var raw struct {
		DocumentType string  `json:"document_type"`
		Type         string  `json:"type"`
		Confidence   float64 `json:"confidence"`
		Description  string  `json:"description"`
		Reason       string  `json:"reason"`
		Supported    bool    `json:"supported"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	typ := raw.DocumentType
	if typ == "" {
		typ = raw.Type
	}
	desc := raw.Description
	if desc == "" {
		desc = raw.Reason
	}

	c.DocumentType = ParseDocumentType(typ)
	c.Confidence = clamp01(raw.Confidence)
	c.Description = desc
	c.Supported = raw.Supported && c.DocumentType.Analyzable()
	return nil
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// ============================================================
// Uploads
// ============================================================

// FileUpload is one dropped file as received from the intake surface.
type FileUpload struct {
	Name     string
	MIMEType string
	Data     []byte
}

// UploadedDocument is the document currently held by the upload coordinator.
type UploadedDocument struct {
	FileName       *string         `json:"file_name"`
	MIMEType       string          `json:"mime_type,omitempty"`
	PageCount      int             `json:"page_count,omitempty"`
	RawText        string          `json:"raw_text"`
	Classification *Classification `json:"classification"`
}

// OCRRequest is the body of POST /api/ocr.
type OCRRequest struct {
	FileData string `json:"file_data"`
	FileType string `json:"file_type"`
	FileName string `json:"file_name"`
}

// OCRResponse is the body returned by POST /api/ocr.
type OCRResponse struct {
	Text string `json:"text"`
}

// WaitlistRequest is the body of POST /api/waitlist.
type WaitlistRequest struct {
	Email        string       `json:"email"`
	DocumentType DocumentType `json:"document_type"`
	DocumentText string       `json:"document_text"`
}

// UnsupportedFlow is the state of the waitlist sub-flow shown when a
// document cannot be analyzed.
type UnsupportedFlow struct {
	Open         bool         `json:"open"`
	DocumentType DocumentType `json:"document_type"`
	DisplayName  string       `json:"display_name"`
	Email        string       `json:"email"`
	Submitted    bool         `json:"submitted"`
}
