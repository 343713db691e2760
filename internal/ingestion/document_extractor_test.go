package ingestion

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsBinaryData(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{name: "plain text", content: "Jane Wanjiru\nBackend Engineer\n6 years experience", want: false},
		{name: "empty", content: "", want: false},
		{name: "tabs and newlines", content: "Name:\tJane\r\nRole:\tEngineer", want: false},
		{name: "single control char", content: "Jane Wanjiru\x00\nGo developer with Kubernetes experience", want: false},
		{name: "pdf header", content: "%PDF-1.7\n%%EOF", want: true},
		{name: "docx zip header", content: "PK\x03\x04\x14\x00\x00\x00", want: true},
		{name: "mostly control chars", content: strings.Repeat("\x01", 400) + strings.Repeat("x", 600), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBinaryData(tt.content); got != tt.want {
				t.Errorf("IsBinaryData() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsSupportedDocument(t *testing.T) {
	tests := map[string]bool{
		"cv.pdf":       true,
		"CV.PDF":       true,
		"resume.txt":   true,
		"letter.doc":   true,
		"letter.docx":  true,
		"photo.jpg":    false,
		"answers.xlsx": false,
		"noext":        false,
	}

	for filename, want := range tests {
		t.Run(filename, func(t *testing.T) {
			if got := IsSupportedDocument(filename); got != want {
				t.Errorf("IsSupportedDocument(%q) = %v, want %v", filename, got, want)
			}
		})
	}
}

func TestExtractText_TXT(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.txt")
	if err := os.WriteFile(path, []byte("Jane Wanjiru\nGo engineer"), 0644); err != nil {
		t.Fatal(err)
	}

	text, err := ExtractText(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if text != "Jane Wanjiru\nGo engineer" {
		t.Errorf("ExtractText() = %q", text)
	}
}

func TestExtractText_TXTWithBinaryContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "renamed.txt")
	if err := os.WriteFile(path, []byte("%PDF-1.4\nbinary"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ExtractText(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "binary content") {
		t.Errorf("expected binary content error, got %v", err)
	}
}

func TestExtractText_MissingTXT(t *testing.T) {
	_, err := ExtractText(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExtractText_UnsupportedType(t *testing.T) {
	for _, filename := range []string{"cv.jpg", "cv.png", "report.xlsx", "cv.unknown"} {
		t.Run(filename, func(t *testing.T) {
			_, err := ExtractText(context.Background(), filename)
			if err == nil {
				t.Fatalf("ExtractText(%q) should fail", filename)
			}
			if !strings.Contains(err.Error(), "unsupported file type") {
				t.Errorf("error should mention unsupported file type, got: %v", err)
			}
		})
	}
}

func TestExtractText_MissingDOCX(t *testing.T) {
	_, err := ExtractText(context.Background(), "letter.docx")
	if err == nil || !strings.Contains(err.Error(), "DOCX") {
		t.Errorf("expected DOCX error, got %v", err)
	}
}

const (
	docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`
	docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Amina Otieno</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Go &amp; SQL</w:t><w:tab/><w:t>6 years</w:t></w:r></w:p>` +
		`</w:body></w:document>`
)

func writeDocx(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"word/document.xml":            docxBody,
		"word/_rels/document.xml.rels": docxRels,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractText_DOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Amina_CV.docx")
	writeDocx(t, path)

	text, err := ExtractText(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if want := "Amina Otieno\nGo & SQL\t6 years"; text != want {
		t.Errorf("ExtractText() = %q, want %q", text, want)
	}
}
