package documents

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"legaldocs-backend/internal/extract"
)

const (
	MaxUploadBytes     = 10 << 20
	MaxFilesPerRequest = 10
	maxTitleLen        = 200
	maxDescriptionLen  = 1000
)

var allowedMimes = []string{
	extract.MimePDF,
	extract.MimeDOC,
	extract.MimeDOCX,
	extract.MimeText,
	"image/jpeg",
	"image/png",
	"image/gif",
}

const invalidTypeMessage = "Invalid file type. Only PDF, DOC, DOCX, TXT, and image files are allowed."

// containerUpgrades maps generic container types that mimetype may report for
// office files to the declared type they can legitimately carry.
var containerUpgrades = map[string][]string{
	"application/zip":           {extract.MimeDOCX},
	"application/x-ole-storage": {extract.MimeDOC},
}

// DetectMime sniffs the head of an upload and returns the allowed mime type it
// resolves to. A declared type other than application/octet-stream must agree
// with the sniffed type.
func DetectMime(head []byte, declared string) (string, error) {
	declared = baseMime(declared)
	detected := mimetype.Detect(head)

	sniffed := ""
	for m := detected; m != nil; m = m.Parent() {
		if allowed := matchAllowed(m); allowed != "" {
			sniffed = allowed
			break
		}
	}
	if sniffed == "" {
		for _, candidate := range containerUpgrades[baseMime(detected.String())] {
			if candidate == declared {
				sniffed = candidate
			}
		}
	}
	if sniffed == "" {
		return "", fmt.Errorf("%w: detected %s", ErrUnsupportedType, detected.String())
	}
	if declared != "" && declared != "application/octet-stream" && declared != sniffed {
		return "", fmt.Errorf("%w: declared %s but content is %s", ErrUnsupportedType, declared, sniffed)
	}
	return sniffed, nil
}

func matchAllowed(m *mimetype.MIME) string {
	for _, allowed := range allowedMimes {
		if m.Is(allowed) {
			return allowed
		}
	}
	return ""
}

// UploadMeta is the optional form metadata sent alongside a file.
type UploadMeta struct {
	Title       string
	Description string
	Category    string
}

// normalize trims the metadata, applies defaults and collects violations.
func (m UploadMeta) normalize(fileName string, forUpdate bool) (UploadMeta, error) {
	out := UploadMeta{
		Title:       strings.TrimSpace(m.Title),
		Description: strings.TrimSpace(m.Description),
		Category:    strings.TrimSpace(m.Category),
	}
	var msgs []string
	if out.Title == "" {
		if forUpdate {
			msgs = append(msgs, "Title must be at least 1 character long")
		} else {
			out.Title = strings.TrimSuffix(fileName, filepath.Ext(fileName))
		}
	}
	if utf8.RuneCountInString(out.Title) > maxTitleLen {
		msgs = append(msgs, "Title must not exceed 200 characters")
	}
	if utf8.RuneCountInString(out.Description) > maxDescriptionLen {
		msgs = append(msgs, "Description must not exceed 1000 characters")
	}
	if out.Category == "" {
		if forUpdate {
			msgs = append(msgs, "Category is required")
		} else {
			out.Category = DefaultCategory
		}
	} else if !IsValidCategory(out.Category) {
		msgs = append(msgs, "Category must be one of: "+strings.Join(Categories, ", "))
	}
	if len(msgs) > 0 {
		return UploadMeta{}, &ValidationError{Messages: msgs}
	}
	return out, nil
}
