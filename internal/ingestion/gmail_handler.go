package ingestion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const gmailUser = "me"

// GmailHandler downloads application attachments from a Gmail inbox
type GmailHandler struct {
	service *gmail.Service
	logger  *zap.Logger
}

// NewGmailHandler creates a Gmail client from an OAuth client file and a
// previously authorized token file. The service never prompts for consent,
// so a missing token is an error.
func NewGmailHandler(ctx context.Context, credentialsPath, tokenPath string, logger *zap.Logger) (*GmailHandler, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	tok, err := tokenFromFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("gmail token %s is missing or invalid, authorize the account first: %w", tokenPath, err)
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail client: %w", err)
	}

	return &GmailHandler{
		service: srv,
		logger:  logger,
	}, nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// FetchAttachments saves attachments of messages matching subject into destDir,
// named SenderName_CV.ext or SenderName_CoverLetter.ext, and returns the saved paths
func (gh *GmailHandler) FetchAttachments(ctx context.Context, subject, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	query := fmt.Sprintf("subject:%q has:attachment", subject)
	r, err := gh.service.Users.Messages.List(gmailUser).Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve messages: %w", err)
	}

	if len(r.Messages) == 0 {
		return nil, fmt.Errorf("no messages found with subject: %s", subject)
	}

	var saved []string
	for _, msg := range r.Messages {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		message, err := gh.service.Users.Messages.Get(gmailUser, msg.Id).Context(ctx).Do()
		if err != nil {
			gh.logger.Warn("unable to retrieve message", zap.String("message_id", msg.Id), zap.Error(err))
			continue
		}

		senderName := extractSenderName(message)

		for _, part := range message.Payload.Parts {
			if part.Filename == "" || part.Body == nil || part.Body.AttachmentId == "" {
				continue
			}
			if !IsSupportedDocument(part.Filename) {
				continue
			}

			attachment, err := gh.service.Users.Messages.Attachments.Get(gmailUser, msg.Id, part.Body.AttachmentId).Context(ctx).Do()
			if err != nil {
				gh.logger.Warn("unable to retrieve attachment", zap.String("message_id", msg.Id), zap.Error(err))
				continue
			}

			data, err := base64.URLEncoding.DecodeString(attachment.Data)
			if err != nil {
				gh.logger.Warn("unable to decode attachment", zap.String("file", part.Filename), zap.Error(err))
				continue
			}

			filePath := filepath.Join(destDir, attachmentFilename(senderName, part.Filename))
			if err := os.WriteFile(filePath, data, 0644); err != nil {
				gh.logger.Warn("unable to write attachment", zap.String("path", filePath), zap.Error(err))
				continue
			}

			gh.logger.Info("downloaded attachment", zap.String("path", filePath))
			saved = append(saved, filePath)
		}
	}

	return saved, nil
}

// attachmentFilename renames an attachment to the Name_CV / Name_CoverLetter convention
func attachmentFilename(senderName, filename string) string {
	ext := filepath.Ext(filename)
	base := strings.ToLower(strings.TrimSuffix(filename, ext))

	switch {
	case strings.Contains(base, "cv") || strings.Contains(base, "resume"):
		return fmt.Sprintf("%s_CV%s", senderName, ext)
	case strings.Contains(base, "cover") || strings.Contains(base, "letter"):
		return fmt.Sprintf("%s_CoverLetter%s", senderName, ext)
	default:
		return fmt.Sprintf("%s_%s", senderName, safeName(strings.TrimSuffix(filename, ext))+ext)
	}
}

// extractSenderName extracts the sender's name from email headers
func extractSenderName(message *gmail.Message) string {
	for _, header := range message.Payload.Headers {
		if header.Name != "From" {
			continue
		}
		// "Name <email@example.com>" format
		from := header.Value
		if idx := strings.Index(from, "<"); idx > 0 {
			name := strings.Trim(strings.TrimSpace(from[:idx]), `"`)
			return strings.NewReplacer(" ", "", "_", "").Replace(name)
		}
		if idx := strings.Index(from, "@"); idx > 0 {
			return strings.ReplaceAll(from[:idx], "_", "")
		}
		return "Unknown"
	}
	return "Unknown"
}
