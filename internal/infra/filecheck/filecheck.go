// Package filecheck vets uploads before any network call: MIME allowlist,
// local decoding of plain text and PDF page counting.
package filecheck

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Kind is how an accepted upload is turned into text.
type Kind int

const (
	KindText Kind = iota + 1
	KindPDF
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPDF:
		return "pdf"
	case KindImage:
		return "image"
	}
	return "unknown"
}

// imageExtensions is the allowlist for image/* uploads.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".bmp": true, ".tif": true, ".tiff": true, ".heic": true,
}

// RejectedError explains why a file is not accepted.
type RejectedError struct {
	Name     string
	MIMEType string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("file %q (%s) is not a PDF, supported image or plain text file", e.Name, e.MIMEType)
}

// Detect resolves the media type of an upload and decides how to read it.
// An empty or generic declared type is resolved from the extension, then
// from the content.
func Detect(name, declared string, data []byte) (Kind, string, error) {
	mt := declared
	if mt == "" || mt == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
			mt = byExt
		} else {
			mt = http.DetectContentType(data)
		}
	}
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	mt = strings.ToLower(mt)

	switch {
	case mt == "application/pdf":
		return KindPDF, mt, nil
	case mt == "text/plain":
		return KindText, mt, nil
	case strings.HasPrefix(mt, "image/") && imageExtensions[strings.ToLower(filepath.Ext(name))]:
		return KindImage, mt, nil
	}
	return 0, mt, &RejectedError{Name: name, MIMEType: mt}
}

// DecodeText reads a text/plain upload. A UTF-8 or UTF-16 byte order mark
// selects the encoding; without one, valid UTF-8 is kept and anything else
// is read as Windows-1252.
func DecodeText(data []byte) (string, error) {
	var fallback encoding.Encoding = unicode.UTF8
	if !utf8.Valid(data) && !hasUTF16BOM(data) {
		fallback = charmap.Windows1252
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(fallback.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(out), nil
}

func hasUTF16BOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xFE, 0xFF}) || bytes.HasPrefix(data, []byte{0xFF, 0xFE})
}

// PDFPageCount parses the PDF enough to count its pages.
func PDFPageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return n, nil
}
