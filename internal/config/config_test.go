package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "ENV", "LOG_LEVEL", "APP_NAME", "STORE_BACKEND",
	"MAX_QUERY_BATCH", "FETCH_CONCURRENCY", "STORE_TIMEOUT", "PUSH_TIMEOUT", "EVENT_TIMEOUT",
	"FIREBASE_PROJECT_ID", "PUBSUB_PROJECT_ID", "PUBSUB_SUBSCRIPTION",
	"TRIGGER_SECRET", "TRIGGER_AUDIENCES", "TRIGGER_SERVICE_ACCOUNTS",
}

func clearEnv(t *testing.T) {
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
	t.Setenv("STORE_BACKEND", StoreFirestore)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreFirestore, cfg.Store.Backend)
	assert.Equal(t, 30, cfg.Notification.MaxQueryBatch)
	assert.Equal(t, 4, cfg.Notification.FetchConcurrency)
	assert.Equal(t, 10*time.Second, cfg.Notification.StoreTimeout)
	assert.Equal(t, 15*time.Second, cfg.Notification.PushTimeout)
	assert.Equal(t, 60*time.Second, cfg.Notification.EventTimeout)
	assert.Empty(t, cfg.Trigger.Audiences)
	assert.False(t, cfg.TriggerAuthEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("MAX_QUERY_BATCH", "100")
	t.Setenv("PUSH_TIMEOUT", "5s")
	t.Setenv("FIREBASE_PROJECT_ID", "classnotes")
	t.Setenv("PUBSUB_SUBSCRIPTION", "notifier")
	t.Setenv("TRIGGER_AUDIENCES", " https://a , ,https://b")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store.Backend)
	assert.Equal(t, 100, cfg.Notification.MaxQueryBatch)
	assert.Equal(t, 5*time.Second, cfg.Notification.PushTimeout)
	assert.Equal(t, "classnotes", cfg.PubSubProject())
	assert.Equal(t, []string{"https://a", "https://b"}, cfg.Trigger.Audiences)
	assert.True(t, cfg.TriggerAuthEnabled())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestTriggerAuthEnabled(t *testing.T) {
	assert.False(t, (&Config{}).TriggerAuthEnabled())
	assert.True(t, (&Config{Trigger: TriggerConfig{Secret: "s"}}).TriggerAuthEnabled())
	assert.True(t, (&Config{Trigger: TriggerConfig{Audiences: []string{"https://a"}}}).TriggerAuthEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown backend", env: map[string]string{"STORE_BACKEND": "redis"}},
		{name: "firestore batch above limit", env: map[string]string{"MAX_QUERY_BATCH": "31"}},
		{name: "zero concurrency", env: map[string]string{"FETCH_CONCURRENCY": "0"}},
		{name: "bad duration", env: map[string]string{"STORE_TIMEOUT": "soon"}},
		{name: "bad int", env: map[string]string{"MAX_QUERY_BATCH": "many"}},
		{name: "unknown log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "subscription without project", env: map[string]string{"PUBSUB_SUBSCRIPTION": "notifier"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
