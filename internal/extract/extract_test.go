package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"legaldocs-backend/internal/shared/storage/object/local"
)

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	ct, err := zw.Create("[Content_Types].xml")
	if err != nil {
		t.Fatalf("create content types: %v", err)
	}
	_, _ = ct.Write([]byte(`<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`))
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create document.xml: %v", err)
	}
	_, _ = w.Write([]byte(body))
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestFromBytesDocx(t *testing.T) {
	data := buildDocx(t, `<w:document xmlns:w="w"><w:body><w:p><w:r><w:t>Rent is 1000 USD.</w:t></w:r></w:p><w:p><w:r><w:t>Term is 12 months.</w:t></w:r></w:p></w:body></w:document>`)
	text, err := FromBytes(context.Background(), data, MimeDOCX)
	if err != nil {
		t.Fatalf("extract docx: %v", err)
	}
	if text != "Rent is 1000 USD.\nTerm is 12 months." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestFromBytesPlain(t *testing.T) {
	text, err := FromBytes(context.Background(), []byte("Lease: rent is 1000 USD"), "text/plain; charset=utf-8")
	if err != nil || text != "Lease: rent is 1000 USD" {
		t.Fatalf("unexpected %q %v", text, err)
	}
}

func TestFromBytesRealZipRejected(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("notes.txt")
	_, _ = w.Write([]byte("hello"))
	_ = zw.Close()

	_, err := FromBytes(context.Background(), buf.Bytes(), "application/zip")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestFromBytesImageUnsupported(t *testing.T) {
	if _, err := FromBytes(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if HasText("image/png") {
		t.Fatalf("images carry no text")
	}
	if !HasText("application/pdf") || !HasText("TEXT/PLAIN") {
		t.Fatalf("pdf and text must carry text")
	}
}

func TestFromBytesCorruptPDF(t *testing.T) {
	if _, err := FromBytes(context.Background(), []byte("%PDF-1.4 garbage"), MimePDF); err == nil {
		t.Fatalf("expected error for corrupt pdf")
	}
}

func TestFromStore(t *testing.T) {
	store := local.New(t.TempDir())
	ctx := context.Background()
	if _, err := store.Put(ctx, "documents/u1/a.txt", MimeText, strings.NewReader("clause one"), 10); err != nil {
		t.Fatalf("put: %v", err)
	}
	text, err := FromStore(ctx, store, "documents/u1/a.txt", MimeText)
	if err != nil || text != "clause one" {
		t.Fatalf("unexpected %q %v", text, err)
	}
	if _, err := FromStore(ctx, store, "documents/u1/missing.txt", MimeText); err == nil {
		t.Fatalf("expected error for missing object")
	}
}
