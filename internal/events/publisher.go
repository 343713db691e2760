package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	apperrors "github.com/fmuoria/interview-portal/internal/errors"
	"github.com/fmuoria/interview-portal/internal/telemetry"
)

var tracer = telemetry.GetTracer("interview-portal/events")

const (
	ApplicationSubmittedSubject     = "portal.applications.submitted"
	ApplicationStatusChangedSubject = "portal.applications.status_changed"
	InterviewCompletedSubject       = "portal.interviews.completed"
	JobChangedSubject               = "portal.jobs.changed"
)

// Publisher emits domain events to interested services
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

type natsPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewNATSPublisher connects to a NATS server
func NewNATSPublisher(logger *zap.Logger, url string, timeout time.Duration) (Publisher, error) {
	opts := []nats.Option{
		nats.Name("interview-portal"),
		nats.Timeout(timeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, apperrors.Unavailable("connecting to NATS", err)
	}

	return &natsPublisher{
		conn:   conn,
		logger: logger,
	}, nil
}

func (p *natsPublisher) Publish(ctx context.Context, subject string, payload any) error {
	_, span := tracer.Start(ctx, "Publish")
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return apperrors.Internal("marshaling event", err)
	}

	span.SetAttributes(
		telemetry.String("nats.subject", subject),
		telemetry.Int("message.size", len(data)),
	)

	if err := p.conn.Publish(subject, data); err != nil {
		span.RecordError(err)
		p.logger.Error("failed to publish event",
			zap.String("subject", subject),
			zap.Error(err))
		return apperrors.Unavailable("publishing to NATS", err)
	}

	p.logger.Debug("published event", zap.String("subject", subject))
	return nil
}

func (p *natsPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}

type logPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher returns a Publisher that only logs, used when no broker is configured
func NewLogPublisher(logger *zap.Logger) Publisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) Publish(_ context.Context, subject string, _ any) error {
	p.logger.Debug("event not forwarded, no broker configured", zap.String("subject", subject))
	return nil
}

func (p *logPublisher) Close() {}

// ApplicationSubmitted is published when a candidate applies or an application is imported
type ApplicationSubmitted struct {
	ApplicationID string    `json:"application_id"`
	JobID         string    `json:"job_id"`
	CandidateID   string    `json:"candidate_id"`
	Source        string    `json:"source"`
	At            time.Time `json:"at"`
}

// ApplicationStatusChanged is published when a company moves an application
type ApplicationStatusChanged struct {
	ApplicationID string    `json:"application_id"`
	JobID         string    `json:"job_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	At            time.Time `json:"at"`
}

// InterviewCompleted is published once a session has been scored
type InterviewCompleted struct {
	SessionID    string    `json:"session_id"`
	CandidateID  string    `json:"candidate_id"`
	JobID        string    `json:"job_id"`
	OverallScore float64   `json:"overall_score"`
	At           time.Time `json:"at"`
}

// JobChanged is published on job create, update and delete
type JobChanged struct {
	JobID     string    `json:"job_id"`
	CompanyID string    `json:"company_id"`
	Action    string    `json:"action"`
	At        time.Time `json:"at"`
}
