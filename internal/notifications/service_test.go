package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"sentra/internal/config"
	"sentra/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifySpamDetected(context.Background(), "scam.png", 3, "user", "general"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "spam detected",
			notify: func(svc notifications.Service) error {
				return svc.NotifySpamDetected(context.Background(), "crypto_scam.png", 3, "user#1234", "general")
			},
			expectTitle:    "Sentra - Spam Removed",
			expectMessage:  "Removed spam matching crypto_scam.png (distance 3)\nPosted by: user#1234\nChannel: #general",
			expectTags:     "sentra,spam,detected",
			expectPriority: "high",
		},
		{
			name: "fingerprint added",
			notify: func(svc notifications.Service) error {
				return svc.NotifyFingerprintAdded(context.Background(), "new_scam.png", 12)
			},
			expectTitle:   "Sentra - Fingerprint Added",
			expectMessage: "Registered new_scam.png (12 total)",
			expectTags:    "sentra,registry,added",
		},
		{
			name: "registry reloaded",
			notify: func(svc notifications.Service) error {
				return svc.NotifyRegistryReloaded(context.Background(), 7)
			},
			expectTitle:   "Sentra - Registry Reloaded",
			expectMessage: "Rescanned spam directory: 7 fingerprints loaded",
			expectTags:    "sentra,registry,reloaded",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("snapshot write failed"), "registry")
			},
			expectTitle:    "Sentra - Error",
			expectMessage:  "Error with registry: snapshot write failed",
			expectTags:     "sentra,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceSuppressesDisabledCategories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed category: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Detections = false
	cfg.Notifications.Registry = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifySpamDetected(ctx, "x.png", 1, "", ""); err != nil {
		t.Fatalf("suppressed detection returned error: %v", err)
	}
	if err := svc.NotifyRegistryReloaded(ctx, 3); err != nil {
		t.Fatalf("suppressed registry event returned error: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "test"); err != nil {
		t.Fatalf("suppressed error event returned error: %v", err)
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic not found", http.StatusNotFound)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
