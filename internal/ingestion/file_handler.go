package ingestion

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/fmuoria/interview-portal/internal/models"
)

var mediaExtensions = map[string]bool{
	".webm": true,
	".ogg":  true,
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
}

// IsSupportedMedia reports whether filename is a recorded audio or video answer
func IsSupportedMedia(filename string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(filename))]
}

// FileHandler manages uploaded resumes, imported applications and recorded answers
type FileHandler struct {
	uploadsDir string
}

// NewFileHandler creates a new file handler
func NewFileHandler(uploadsDir string) *FileHandler {
	return &FileHandler{
		uploadsDir: uploadsDir,
	}
}

// Dir returns the path of a subdirectory of the uploads directory
func (fh *FileHandler) Dir(parts ...string) string {
	return filepath.Join(append([]string{fh.uploadsDir}, parts...)...)
}

// SaveResume stores a candidate's resume under a unique name and returns its path
func (fh *FileHandler) SaveResume(userID, filename string, content io.Reader) (string, error) {
	if !IsSupportedDocument(filename) {
		return "", fmt.Errorf("unsupported resume file type: %s", filepath.Ext(filename))
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	return fh.save(fh.Dir("resumes", safeName(userID)), name, content)
}

// SaveMedia stores a recorded voice or video answer and returns its path
func (fh *FileHandler) SaveMedia(sessionID, questionID, filename string, content io.Reader) (string, error) {
	if !IsSupportedMedia(filename) {
		return "", fmt.Errorf("unsupported media file type: %s", filepath.Ext(filename))
	}
	name := safeName(questionID) + "-" + uuid.NewString()[:8] + strings.ToLower(filepath.Ext(filename))
	return fh.save(fh.Dir("media", safeName(sessionID)), name, content)
}

// Remove deletes a stored upload; a missing file is not an error
func (fh *FileHandler) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func (fh *FileHandler) save(dir, filename string, content io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	filePath := filepath.Join(dir, filename)
	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, content); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return filePath, nil
}

// LoadDocuments groups the documents in dir by applicant.
// Files follow the "Name_CV.ext" / "Name_CoverLetter.ext" convention;
// applicants without a readable CV are skipped and counted.
func (fh *FileHandler) LoadDocuments(ctx context.Context, dir string) ([]models.ApplicantDocument, int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.ApplicantDocument{}, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read documents directory: %w", err)
	}

	applicantFiles := make(map[string]*models.ApplicantDocument)
	var order []string

	for _, file := range files {
		if file.IsDir() || !IsSupportedDocument(file.Name()) {
			continue
		}

		filename := file.Name()
		ext := filepath.Ext(filename)
		parts := strings.Split(strings.TrimSuffix(filename, ext), "_")
		if len(parts) < 2 {
			continue
		}

		applicantName := parts[0]
		docType := strings.ToLower(strings.Join(parts[1:], "_"))

		if applicantFiles[applicantName] == nil {
			applicantFiles[applicantName] = &models.ApplicantDocument{Name: applicantName}
			order = append(order, applicantName)
		}

		filePath := filepath.Join(dir, filename)
		text, err := ExtractText(ctx, filePath)
		if err != nil {
			// Unreadable files are skipped; the applicant may still have another document
			continue
		}

		doc := applicantFiles[applicantName]
		switch {
		case strings.Contains(docType, "cv") || strings.Contains(docType, "resume"):
			doc.CVContent = text
			doc.CVPath = filePath
		case strings.Contains(docType, "cover") || strings.Contains(docType, "letter") || docType == "cl":
			doc.CLContent = text
			doc.CLPath = filePath
		}
	}

	documents := make([]models.ApplicantDocument, 0, len(order))
	skipped := 0
	for _, name := range order {
		doc := applicantFiles[name]
		if doc.CVContent == "" {
			skipped++
			continue
		}
		documents = append(documents, *doc)
	}

	return documents, skipped, nil
}

// ClearDir removes and recreates a subdirectory of the uploads directory
func (fh *FileHandler) ClearDir(parts ...string) error {
	dir := fh.Dir(parts...)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear %s: %w", dir, err)
	}
	return os.MkdirAll(dir, 0755)
}

// safeName strips path separators and dots so ids cannot escape the uploads directory
func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '.', ':':
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "_"
	}
	return s
}
