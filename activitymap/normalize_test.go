package activitymap_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-plantauth"
	"github.com/goliatone/go-plantauth/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType:  auth.ActivityEventCredentialsIssued,
		SessionID:  "session-7",
		Username:   "ada",
		IdentityID: "us-east-1:abc",
		Metadata: map[string]any{
			"expires_at": "2026-01-10T10:30:00Z",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "ada" {
		t.Fatalf("expected actor_id ada, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventCredentialsIssued) {
		t.Fatalf("expected verb %q, got %q", auth.ActivityEventCredentialsIssued, out.Verb)
	}
	if out.ObjectType != "session" {
		t.Fatalf("expected object_type session, got %q", out.ObjectType)
	}
	if out.ObjectID != "session-7" {
		t.Fatalf("expected object_id session-7, got %q", out.ObjectID)
	}
	if out.Channel != "plantauth" {
		t.Fatalf("expected channel plantauth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}

	if out.Metadata["expires_at"] != "2026-01-10T10:30:00Z" {
		t.Fatalf("expected metadata expires_at, got %#v", out.Metadata["expires_at"])
	}
	if out.Metadata[activitymap.MetadataKeySessionID] != "session-7" {
		t.Fatalf("expected metadata session_id session-7, got %#v", out.Metadata[activitymap.MetadataKeySessionID])
	}
	if out.Metadata[activitymap.MetadataKeyIdentityID] != "us-east-1:abc" {
		t.Fatalf("expected metadata identity_id, got %#v", out.Metadata[activitymap.MetadataKeyIdentityID])
	}
	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType:  auth.ActivityEventIdentityResolved,
		SessionID:  "session-8",
		IdentityID: "us-east-1:def",
		Metadata: map[string]any{
			activitymap.MetadataKeySessionID: "existing",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("audit"),
		activitymap.WithDefaultObjectType("identity"),
		activitymap.WithObjectIDResolver(func(e auth.ActivityEvent) string {
			return e.IdentityID
		}),
	)

	if out.Channel != "audit" {
		t.Fatalf("expected channel audit, got %q", out.Channel)
	}
	if out.ObjectType != "identity" {
		t.Fatalf("expected object_type identity, got %q", out.ObjectType)
	}
	if out.ObjectID != "us-east-1:def" {
		t.Fatalf("expected object_id us-east-1:def, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeySessionID] != "existing" {
		t.Fatalf("expected existing session_id preserved, got %#v", out.Metadata[activitymap.MetadataKeySessionID])
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeActorFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses username when present",
			event:  auth.ActivityEvent{Username: " ada "},
			expect: "ada",
		},
		{
			name:   "uses default fallback when username missing",
			event:  auth.ActivityEvent{},
			expect: "anonymous",
		},
		{
			name:   "uses configured fallback when username missing",
			event:  auth.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("cli")},
			expect: "cli",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}

type recordingLogger struct {
	msgs []string
	args [][]any
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Warn(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}
func (l *recordingLogger) Info(msg string, args ...any) {
	l.msgs = append(l.msgs, msg)
	l.args = append(l.args, args)
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	sink := activitymap.LogSink(logger)

	err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventLoginSuccess,
		SessionID: "session-9",
		Username:  "ada",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(logger.msgs) != 1 || logger.msgs[0] != string(auth.ActivityEventLoginSuccess) {
		t.Fatalf("expected one login record, got %v", logger.msgs)
	}

	fields := map[any]any{}
	args := logger.args[0]
	for i := 0; i+1 < len(args); i += 2 {
		fields[args[i]] = args[i+1]
	}
	if fields["actor_id"] != "ada" {
		t.Fatalf("expected actor_id ada, got %#v", fields["actor_id"])
	}
	if fields[activitymap.MetadataKeySessionID] != "session-9" {
		t.Fatalf("expected session_id field, got %#v", fields[activitymap.MetadataKeySessionID])
	}
}
