package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/boddenberg/doc-intake-bfa-go/internal/domain"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/filecheck"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/observability"
	"github.com/boddenberg/doc-intake-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/doc-intake-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// User-visible upload notices.
const (
	MsgOCRFailed       = "Failed to extract text from file. Please try again or paste the text directly."
	MsgUnsupportedFile = "Unsupported file type. Please upload a PDF, image, or text file."
	MsgUnreadablePDF   = "This PDF could not be read. It may be damaged or password protected."
	MsgUnreadableText  = "This text file could not be read."
)

// UploadConfig tunes the upload coordinator.
type UploadConfig struct {
	MaxPDFPages            int
	EditInvalidatesReports bool
}

// UploadState is a snapshot of the upload coordinator.
type UploadState struct {
	Document    domain.UploadedDocument `json:"document"`
	OCRLoading  bool                    `json:"ocr_loading"`
	Classifying bool                    `json:"classifying"`
	Unsupported domain.UnsupportedFlow  `json:"unsupported"`
}

// UploadCoordinator owns the current document: its text, file metadata and
// classification, plus the waitlist flow for unsupported documents.
type UploadCoordinator struct {
	ocr          port.TextExtractor
	classifier   port.Classifier
	waitlist     port.WaitlistSubmitter
	bulkhead     *resilience.Bulkhead
	resetReports func()
	alert        func(string)
	cfg          UploadConfig
	metrics      *observability.Metrics
	logger       *zap.Logger

	mu          sync.Mutex
	doc         domain.UploadedDocument
	textGen     uint64 // bumped on every text change
	uploadGen   uint64 // bumped when a validated upload starts and on reset
	ocrOwner    uint64 // upload that last set ocrLoading
	classifyGen uint64
	ocrLoading  bool
	classifying bool
	unsupported domain.UnsupportedFlow
}

// NewUploadCoordinator wires the coordinator. resetReports invalidates every
// analyzer report; alert shows a notice to the user.
func NewUploadCoordinator(
	ocr port.TextExtractor,
	classifier port.Classifier,
	waitlist port.WaitlistSubmitter,
	bulkhead *resilience.Bulkhead,
	resetReports func(),
	alert func(string),
	cfg UploadConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *UploadCoordinator {
	return &UploadCoordinator{
		ocr:          ocr,
		classifier:   classifier,
		waitlist:     waitlist,
		bulkhead:     bulkhead,
		resetReports: resetReports,
		alert:        alert,
		cfg:          cfg,
		metrics:      metrics,
		logger:       logger,
	}
}

// Drop accepts exactly one file.
func (u *UploadCoordinator) Drop(ctx context.Context, files []domain.FileUpload) error {
	if len(files) != 1 {
		return &domain.ErrValidation{Field: "files", Message: fmt.Sprintf("drop exactly one file, got %d", len(files))}
	}
	return u.Upload(ctx, files[0])
}

// Upload extracts text from f, replaces the current document and classifies
// it. On failure the current document is left untouched.
func (u *UploadCoordinator) Upload(ctx context.Context, f domain.FileUpload) error {
	ctx, span := tracer.Start(ctx, "UploadCoordinator.Upload")
	defer span.End()

	kind, mimeType, err := filecheck.Detect(f.Name, f.MIMEType, f.Data)
	if err != nil {
		u.metrics.IncrUpload("rejected")
		u.alert(MsgUnsupportedFile)
		return &domain.ErrValidation{Field: "file", Message: err.Error()}
	}
	span.SetAttributes(attribute.String("upload.kind", kind.String()), attribute.Int("upload.bytes", len(f.Data)))

	var (
		text  string
		pages int
		gen   uint64
	)
	switch kind {
	case filecheck.KindText:
		text, err = filecheck.DecodeText(f.Data)
		if err != nil {
			u.metrics.IncrUpload("rejected")
			u.alert(MsgUnreadableText)
			return &domain.ErrValidation{Field: "file", Message: err.Error()}
		}
		gen = u.begin(false)
	case filecheck.KindPDF:
		pages, err = filecheck.PDFPageCount(f.Data)
		if err != nil {
			u.metrics.IncrUpload("rejected")
			u.alert(MsgUnreadablePDF)
			return &domain.ErrValidation{Field: "file", Message: err.Error()}
		}
		if u.cfg.MaxPDFPages > 0 && pages > u.cfg.MaxPDFPages {
			msg := fmt.Sprintf("This PDF has %d pages; the limit is %d.", pages, u.cfg.MaxPDFPages)
			u.metrics.IncrUpload("rejected")
			u.alert(msg)
			return &domain.ErrValidation{Field: "file", Message: msg}
		}
		fallthrough
	default:
		gen = u.begin(true)
		text, err = u.extract(ctx, gen, f, mimeType)
		if err != nil {
			if errors.Is(err, errSuperseded) {
				return nil
			}
			u.metrics.IncrUpload("error")
			u.logger.Warn("text extraction failed", zap.String("file_name", f.Name), zap.Error(err))
			u.alert(MsgOCRFailed)
			return err
		}
	}

	if u.resetReports != nil {
		u.resetReports()
	}

	u.mu.Lock()
	if gen != u.uploadGen {
		u.mu.Unlock()
		return nil
	}
	name := f.Name
	u.textGen++
	u.doc = domain.UploadedDocument{
		FileName:  &name,
		MIMEType:  mimeType,
		PageCount: pages,
		RawText:   text,
	}
	u.unsupported = domain.UnsupportedFlow{}
	u.mu.Unlock()

	u.metrics.IncrUpload("ok")
	u.logger.Info("document uploaded",
		zap.String("file_name", f.Name),
		zap.String("kind", kind.String()),
		zap.Int("chars", len(text)),
	)

	u.Classify(ctx)
	return nil
}

var errSuperseded = errors.New("superseded by a newer upload")

// begin claims the upload slot once local checks have passed. Rejected files
// never get here, so they cannot supersede an upload still in OCR. ocr says
// whether the new upload owns the OCR flag; a text upload drops it.
func (u *UploadCoordinator) begin(ocr bool) uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploadGen++
	u.ocrLoading = ocr
	u.ocrOwner = u.uploadGen
	return u.uploadGen
}

// extract runs OCR. The flag raised by begin is cleared when this upload
// settles, unless a newer upload has claimed it since.
func (u *UploadCoordinator) extract(ctx context.Context, gen uint64, f domain.FileUpload, mimeType string) (string, error) {
	defer func() {
		u.mu.Lock()
		if u.ocrOwner == gen {
			u.ocrLoading = false
		}
		u.mu.Unlock()
	}()

	if u.bulkhead != nil {
		if err := u.bulkhead.Acquire(ctx); err != nil {
			return "", err
		}
		defer u.bulkhead.Release()
	}

	text, err := u.ocr.ExtractText(ctx, &domain.OCRRequest{
		FileData: base64.StdEncoding.EncodeToString(f.Data),
		FileType: mimeType,
		FileName: f.Name,
	})

	u.mu.Lock()
	stale := u.uploadGen != gen
	u.mu.Unlock()
	if stale {
		return "", errSuperseded
	}
	return text, err
}

// Classify classifies the current text. Failures and empty answers collapse
// to the unknown classification; unsupported results open the waitlist flow.
// Results for text that changed in the meantime are dropped.
func (u *UploadCoordinator) Classify(ctx context.Context) domain.Classification {
	ctx, span := tracer.Start(ctx, "UploadCoordinator.Classify")
	defer span.End()

	u.mu.Lock()
	text := u.doc.RawText
	textGen := u.textGen
	u.classifyGen++
	gen := u.classifyGen
	u.classifying = true
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		if u.classifyGen == gen {
			u.classifying = false
		}
		u.mu.Unlock()
	}()

	result := domain.UnknownClassification()
	cls, err := u.classifier.Classify(ctx, text)
	switch {
	case err != nil:
		u.logger.Warn("classification failed", zap.Error(err))
	case cls == nil:
		u.logger.Warn("classification returned no result")
	default:
		result = *cls
	}
	span.SetAttributes(attribute.String("document_type", string(result.DocumentType)))

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.textGen != textGen {
		return result
	}
	stored := result
	u.doc.Classification = &stored
	if !result.Supported {
		u.openUnsupportedLocked(result)
	}
	u.metrics.IncrClassification(result.DocumentType)
	return result
}

// EditText replaces the text with a direct edit. The classification is
// always dropped; file metadata is kept; reports are invalidated when the
// coordinator is configured to.
func (u *UploadCoordinator) EditText(text string) {
	u.mu.Lock()
	if text == u.doc.RawText {
		u.mu.Unlock()
		return
	}
	u.textGen++
	u.doc.RawText = text
	u.doc.Classification = nil
	u.unsupported = domain.UnsupportedFlow{}
	u.mu.Unlock()

	if u.cfg.EditInvalidatesReports && u.resetReports != nil {
		u.resetReports()
	}
}

// OpenUnsupported shows the waitlist flow for cls.
func (u *UploadCoordinator) OpenUnsupported(cls domain.Classification) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.openUnsupportedLocked(cls)
}

func (u *UploadCoordinator) openUnsupportedLocked(cls domain.Classification) {
	u.unsupported = domain.UnsupportedFlow{
		Open:         true,
		DocumentType: cls.DocumentType,
		DisplayName:  cls.DocumentType.DisplayName(),
	}
}

// SetWaitlistEmail records the email typed into the waitlist form.
func (u *UploadCoordinator) SetWaitlistEmail(email string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.unsupported.Open {
		return &domain.ErrValidation{Field: "waitlist", Message: "no unsupported document is pending"}
	}
	u.unsupported.Email = strings.TrimSpace(email)
	return nil
}

// SubmitWaitlist posts the waitlist entry. Delivery is best effort: backend
// errors are logged and the flow is marked submitted regardless.
func (u *UploadCoordinator) SubmitWaitlist(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "UploadCoordinator.SubmitWaitlist")
	defer span.End()

	u.mu.Lock()
	if !u.unsupported.Open {
		u.mu.Unlock()
		return &domain.ErrValidation{Field: "waitlist", Message: "no unsupported document is pending"}
	}
	if _, err := mail.ParseAddress(u.unsupported.Email); err != nil {
		u.mu.Unlock()
		return &domain.ErrValidation{Field: "email", Message: "enter a valid email address"}
	}
	req := &domain.WaitlistRequest{
		Email:        u.unsupported.Email,
		DocumentType: u.unsupported.DocumentType,
		DocumentText: u.doc.RawText,
	}
	u.mu.Unlock()

	if err := u.waitlist.JoinWaitlist(ctx, req); err != nil {
		u.logger.Warn("waitlist submission failed",
			zap.String("document_type", string(req.DocumentType)),
			zap.Error(err),
		)
	}
	u.metrics.IncrWaitlist()

	u.mu.Lock()
	if u.unsupported.Open {
		u.unsupported.Submitted = true
	}
	u.mu.Unlock()
	return nil
}

// DismissUnsupported closes the waitlist flow.
func (u *UploadCoordinator) DismissUnsupported() {
	u.mu.Lock()
	u.unsupported = domain.UnsupportedFlow{}
	u.mu.Unlock()
}

// Reset drops the document and abandons in-flight OCR and classification.
func (u *UploadCoordinator) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.textGen++
	u.uploadGen++
	u.ocrOwner = u.uploadGen
	u.classifyGen++
	u.doc = domain.UploadedDocument{}
	u.ocrLoading = false
	u.classifying = false
	u.unsupported = domain.UnsupportedFlow{}
}

// Text returns the current document text.
func (u *UploadCoordinator) Text() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.doc.RawText
}

// Classification returns the current classification, nil when the text has
// not been classified since its last change.
func (u *UploadCoordinator) Classification() *domain.Classification {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.doc.Classification == nil {
		return nil
	}
	c := *u.doc.Classification
	return &c
}

// Snapshot returns the coordinator state for rendering.
func (u *UploadCoordinator) Snapshot() UploadState {
	u.mu.Lock()
	defer u.mu.Unlock()

	doc := u.doc
	if doc.FileName != nil {
		name := *doc.FileName
		doc.FileName = &name
	}
	if doc.Classification != nil {
		c := *doc.Classification
		doc.Classification = &c
	}
	return UploadState{
		Document:    doc,
		OCRLoading:  u.ocrLoading,
		Classifying: u.classifying,
		Unsupported: u.unsupported,
	}
}
