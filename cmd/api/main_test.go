package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appconfig "github.com/wolfman30/crystalcare-intake/internal/config"
	"github.com/wolfman30/crystalcare-intake/internal/conversation"
	"github.com/wolfman30/crystalcare-intake/internal/leads"
	"github.com/wolfman30/crystalcare-intake/internal/notify"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

func staticAWS() (aws.Config, error) {
	return aws.Config{Region: "us-east-1"}, nil
}

func TestSetupMetricsExposesIntakeCounters(t *testing.T) {
	handler, m := setupMetrics()
	require.NotNil(t, handler)
	require.NotNil(t, m)

	m.ObserveLeadCreated(string(leads.SourceBookingForm))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "crystalcare_leads_created_total")
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	if pool := connectPostgresPool(context.Background(), "", logging.New("error")); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestConnectRedis(t *testing.T) {
	logger := logging.New("error")
	mr := miniredis.RunT(t)

	client := connectRedis(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	assert.Nil(t, connectRedis(context.Background(), &appconfig.Config{}, logger))
}

func TestBuildLeadKV(t *testing.T) {
	logger := logging.New("error")
	mr := miniredis.RunT(t)
	client := connectRedis(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		name    string
		backend string
		redis   bool
		want    any
		wantErr bool
	}{
		{"memory default", "", false, &leads.MemoryKV{}, false},
		{"redis", "redis", true, &leads.RedisKV{}, false},
		{"redis unreachable", "redis", false, nil, true},
		{"postgres without url", "postgres", false, nil, true},
		{"dynamodb", "dynamodb", false, &leads.DynamoKV{}, false},
		{"unknown", "cassandra", false, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &appconfig.Config{LeadStoreBackend: tt.backend, LeadsDynamoTable: "crystalcare_kv"}
			var rc = client
			if !tt.redis {
				rc = nil
			}
			kv, closeKV, err := buildLeadKV(context.Background(), cfg, rc, staticAWS, logger)
			require.NotNil(t, closeKV)
			defer closeKV()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, kv)
		})
	}
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.New("error")
	tests := []struct {
		name    string
		cfg     appconfig.Config
		want    any
		wantErr bool
	}{
		{"stub", appconfig.Config{NotifyProvider: "stub"}, &notify.StubEmailSender{}, false},
		{"sendgrid", appconfig.Config{NotifyProvider: "sendgrid", SendGridAPIKey: "key", SendGridFromEmail: "from@crystalcare.example"}, &notify.SendGridSender{}, false},
		{"sendgrid missing key", appconfig.Config{NotifyProvider: "sendgrid"}, nil, true},
		{"ses", appconfig.Config{NotifyProvider: "ses", SESFromEmail: "from@crystalcare.example"}, &notify.SESSender{}, false},
		{"ses missing from", appconfig.Config{NotifyProvider: "ses"}, nil, true},
		{"sqs", appconfig.Config{NotifyProvider: "sqs", NotifyQueueURL: "http://localhost:4566/queue/notify"}, &notify.SQSSender{}, false},
		{"sqs missing queue", appconfig.Config{NotifyProvider: "sqs"}, nil, true},
		{"unknown", appconfig.Config{NotifyProvider: "pigeon"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			sender, err := buildEmailSender(&cfg, staticAWS, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, sender)
		})
	}
}

func TestBuildDialogue(t *testing.T) {
	logger := logging.New("error")

	cfg := &appconfig.Config{DialogueProvider: "openai", OpenAIAPIKey: "sk-test"}
	c, closeAll, err := buildDialogue(context.Background(), cfg, staticAWS, nil, logger)
	require.NoError(t, err)
	defer closeAll()
	assert.IsType(t, &conversation.OpenAICapability{}, c)

	cfg.DialogueFallbackProvider = "bedrock"
	cfg.BedrockModelID = "anthropic.claude-3-haiku"
	c, closeAll, err = buildDialogue(context.Background(), cfg, staticAWS, nil, logger)
	require.NoError(t, err)
	defer closeAll()
	assert.IsType(t, &conversation.FallbackCapability{}, c)

	// A misconfigured fallback leaves the primary in place.
	cfg.DialogueFallbackProvider = "gemini"
	c, _, err = buildDialogue(context.Background(), cfg, staticAWS, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &conversation.OpenAICapability{}, c)

	_, _, err = buildDialogue(context.Background(), &appconfig.Config{DialogueProvider: "gemini"}, staticAWS, nil, logger)
	assert.Error(t, err)
	_, _, err = buildDialogue(context.Background(), &appconfig.Config{DialogueProvider: "bedrock"}, staticAWS, nil, logger)
	assert.Error(t, err)
	_, _, err = buildDialogue(context.Background(), &appconfig.Config{DialogueProvider: "eliza"}, staticAWS, nil, logger)
	assert.Error(t, err)
}
