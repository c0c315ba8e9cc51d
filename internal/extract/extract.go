package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"legaldocs-backend/internal/shared/storage/object"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDOC  = "application/msword"
	MimeText = "text/plain"
)

// ErrUnsupported is returned for types that carry no extractable text.
var ErrUnsupported = errors.New("unsupported mime type")

// HasText reports whether documents of this mime type are expected to yield text.
func HasText(mimeType string) bool {
	switch normalize(mimeType) {
	case MimePDF, MimeDOCX, MimeDOC, MimeText:
		return true
	default:
		return false
	}
}

// FromStore reads the object at key and extracts its text.
func FromStore(ctx context.Context, store object.ObjectStore, key, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := store.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("extract text key=%s mime=%s: %w", key, mimeType, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("extract text key=%s mime=%s: read: %w", key, mimeType, err)
	}
	text, err := FromBytes(ctx, raw, mimeType)
	if err != nil {
		return "", fmt.Errorf("extract text key=%s mime=%s: %w", key, mimeType, err)
	}
	return text, nil
}

// FromBytes extracts text from an in-memory payload.
func FromBytes(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := normalize(mimeType)
	if clean == "application/zip" && mimetype.Detect(data).Is(MimeDOCX) {
		clean = MimeDOCX
	}
	switch clean {
	case MimePDF:
		return extractPDF(data)
	case MimeDOCX:
		return extractDOCX(data)
	case MimeText:
		return extractPlain(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, clean)
	}
}

func normalize(mimeType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
}

func extractPlain(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), ""), nil
	}
	return string(data), nil
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf package panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return stripDocxXML(string(raw)), nil
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
