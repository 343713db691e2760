package events

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	p := NewLogPublisher(zap.New(core))
	defer p.Close()

	if err := p.Publish(context.Background(), InterviewCompletedSubject, InterviewCompleted{SessionID: "s1"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	entries := logs.FilterField(zap.String("subject", InterviewCompletedSubject)).All()
	if len(entries) != 1 {
		t.Errorf("expected one log entry for the subject, got %d", len(entries))
	}
}

func TestNewNATSPublisher_Unreachable(t *testing.T) {
	_, err := NewNATSPublisher(zap.NewNop(), "nats://127.0.0.1:1", 100*time.Millisecond)
	if err == nil {
		t.Fatal("expected connection error for unreachable server")
	}
}
