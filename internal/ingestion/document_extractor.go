package ingestion

import (
	"context"
	"fmt"
	"html"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

const (
	// MinExtractedTextLength is the minimum text length required for successful extraction
	MinExtractedTextLength = 50
	// BinarySampleSize is the number of bytes to sample for binary detection
	BinarySampleSize = 1000
	// BinaryThreshold is the proportion of non-printable characters that indicates binary data
	BinaryThreshold = 0.3
)

var documentExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".doc":  true,
	".docx": true,
}

// IsSupportedDocument reports whether filename has a resume/cover letter extension
func IsSupportedDocument(filename string) bool {
	return documentExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ExtractText returns the text of a PDF, DOC or TXT file
func ExtractText(ctx context.Context, filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".txt":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", filePath, err)
		}
		text := string(data)
		if IsBinaryData(text) {
			return "", fmt.Errorf("file %s has a .txt extension but binary content", filepath.Base(filePath))
		}
		return text, nil
	case ".pdf":
		return extractPDF(ctx, filePath)
	case ".docx", ".doc":
		return extractDOC(ctx, filePath)
	default:
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}
}

// extractPDF extracts text from PDF using pdftotext
func extractPDF(ctx context.Context, filePath string) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", filePath, "-")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("PDF extraction requires 'pdftotext' (install poppler-utils): %w", err)
	}

	text := string(output)
	if len(strings.TrimSpace(text)) < MinExtractedTextLength {
		return "", fmt.Errorf("extracted text is too short (scanned image or empty PDF): %s", filepath.Base(filePath))
	}

	return text, nil
}

// extractDOC extracts text from .doc with antiword and from .docx directly
func extractDOC(ctx context.Context, filePath string) (string, error) {
	if strings.ToLower(filepath.Ext(filePath)) == ".docx" {
		return extractDOCX(filePath)
	}

	cmd := exec.CommandContext(ctx, "antiword", filePath)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("DOC extraction requires 'antiword': %w", err)
	}
	return string(output), nil
}

var (
	docxBreak = regexp.MustCompile(`</w:p>|<w:br/>|<w:cr/>`)
	docxTab   = regexp.MustCompile(`<w:tab/>`)
	xmlTag    = regexp.MustCompile(`<[^>]*>`)
)

func extractDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX %s: %w", filepath.Base(filePath), err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	content = docxBreak.ReplaceAllString(content, "\n")
	content = docxTab.ReplaceAllString(content, "\t")
	content = html.UnescapeString(xmlTag.ReplaceAllString(content, ""))

	text := strings.TrimSpace(content)
	if text == "" {
		return "", fmt.Errorf("DOCX %s contains no text", filepath.Base(filePath))
	}
	return text, nil
}

// IsBinaryData checks if content appears to be binary (PDF/ZIP markers)
func IsBinaryData(content string) bool {
	if len(content) == 0 {
		return false
	}

	if strings.HasPrefix(content, "%PDF-") {
		return true
	}

	// ZIP magic number (DOCX files)
	if strings.HasPrefix(content, "PK\x03\x04") {
		return true
	}

	sampleSize := min(BinarySampleSize, len(content))
	nonPrintable := 0
	for i := 0; i < sampleSize; i++ {
		ch := content[i]
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}

	return float64(nonPrintable)/float64(sampleSize) > BinaryThreshold
}
