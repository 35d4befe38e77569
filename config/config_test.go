package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/genai-gateway/services/providers"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name:    "default configuration",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.True(t, cfg.IsDevelopment())
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 120*time.Second, cfg.Server.RequestTimeout)
				assert.Equal(t, int64(50*1024), cfg.Server.BodyLimit)
				assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
				assert.Equal(t, 3*time.Second, cfg.Channels.ModelScope.PollInterval)
				assert.Equal(t, 35, cfg.Channels.ModelScope.MaxPollAttempts)
				assert.Equal(t, 10, cfg.Channels.MaxRetries)
				assert.Empty(t, cfg.Channels.Gitee.Tokens)
			},
		},
		{
			name: "token pools are parsed and filtered",
			envVars: map[string]string{
				"GITEE_TOKENS":      " gitee-token-1 , short, gitee-token-2,bad token!!",
				"MODELSCOPE_TOKENS": "ms-abcdefgh",
				"DEEPSEEK_BASE_URL": "https://proxy.example.com/v1",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"gitee-token-1", "gitee-token-2"}, cfg.Channels.Gitee.Tokens)
				assert.Equal(t, []string{"ms-abcdefgh"}, cfg.Channels.ModelScope.Tokens)
				assert.Equal(t, "https://proxy.example.com/v1", cfg.Channels.DeepSeek.BaseURL)
			},
		},
		{
			name: "poll interval in milliseconds",
			envVars: map[string]string{
				"MODELSCOPE_POLL_INTERVAL":     "1500",
				"MODELSCOPE_MAX_POLL_ATTEMPTS": "5",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 1500*time.Millisecond, cfg.Channels.ModelScope.PollInterval)
				assert.Equal(t, 5, cfg.Channels.ModelScope.MaxPollAttempts)
			},
		},
		{
			name: "server overrides",
			envVars: map[string]string{
				"PORT":                 "9000",
				"SERVER_READ_TIMEOUT":  "60s",
				"SERVER_WRITE_TIMEOUT": "90s",
				"CORS_ORIGINS":         "https://a.example, https://b.example",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
				assert.Equal(t, "0.0.0.0:9000", cfg.Server.Address())
			},
		},
		{
			name: "huggingface space override",
			envVars: map[string]string{
				"HF_SPACE_Z_IMAGE_TURBO": "https://mirror.hf.space",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, map[string]string{"z-image-turbo": "https://mirror.hf.space"}, cfg.Channels.HuggingFace.Spaces)
			},
		},
		{
			name: "invalid custom json is a warning",
			envVars: map[string]string{
				"CUSTOM_CHANNELS_JSON": "{not json",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.Channels.Custom)
				require.Len(t, cfg.Warnings, 1)
				assert.Contains(t, cfg.Warnings[0], "CUSTOM_CHANNELS_JSON")
			},
		},
		{
			name:    "invalid log level",
			envVars: map[string]string{"LOG_LEVEL": "verbose"},
			wantErr: true,
		},
		{
			name:    "invalid port",
			envVars: map[string]string{"PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "non-positive rate limit",
			envVars: map[string]string{"RATE_LIMIT_GENERATE_BURST": "0"},
			wantErr: true,
		},
		{
			name: "rate limit disabled skips preset checks",
			envVars: map[string]string{
				"RATE_LIMIT_ENABLED":        "false",
				"RATE_LIMIT_GENERATE_BURST": "0",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.RateLimit.Enabled)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := New(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestIsProduction(t *testing.T) {
	assert.True(t, (&Config{Environment: "production"}).IsProduction())
	assert.True(t, (&Config{Environment: "prod"}).IsProduction())
	assert.False(t, (&Config{Environment: "development"}).IsProduction())
}

func env(vars map[string]string) LookupFunc {
	return func(key string) string { return vars[key] }
}

func TestLoadCustomChannels_JSON(t *testing.T) {
	channels, warnings := LoadCustomChannels(env(map[string]string{
		"CUSTOM_CHANNELS_JSON": `{"channels":[
			{"id":"acme","baseUrl":"https://acme.example/v1","auth":{"type":"api-key","headerName":"X-Acme"},
			 "tokens":["  tok-one ", ""],"imageModels":[{"id":"acme-img"}],"llmModels":[{"id":"acme-llm","name":"Acme"}]},
			{"id":"weird","baseUrl":"https://w.example","auth":{"type":"oauth"}},
			{"id":"","baseUrl":"https://skip.example"},
			{"id":"nourl"}
		]}`,
	}))
	assert.Len(t, warnings, 2, "entries without id or baseUrl are reported")
	require.Len(t, channels, 2)

	acme := channels[0]
	assert.Equal(t, "acme", acme.ID)
	assert.Equal(t, "acme", acme.Name)
	assert.Equal(t, providers.AuthAPIKey, acme.Config.Auth.Type)
	assert.Equal(t, "X-Acme", acme.Config.Auth.HeaderName)
	assert.Equal(t, []string{"tok-one"}, acme.Config.Tokens)
	assert.Equal(t, []providers.ModelInfo{{ID: "acme-img", Name: "acme-img"}}, acme.Config.ImageModels)
	assert.Equal(t, "Acme", acme.Config.LLMModels[0].Name)

	assert.Equal(t, providers.AuthBearer, channels[1].Config.Auth.Type)
}

func TestLoadCustomChannels_JSONMalformedEntries(t *testing.T) {
	channels, warnings := LoadCustomChannels(env(map[string]string{
		"CUSTOM_CHANNELS_JSON": `{"channels":[
			{"id":"a","baseUrl":"http://x","tokens":"not-a-list","llmModels":[{"id":"a-llm"}]},
			{"id":"b","baseUrl":"http://y","imageModels":[{"id":123}],"auth":{"type":"api-key","optional":"yes"}},
			{"id":42,"baseUrl":"http://z"},
			"not-an-object"
		]}`,
	}))

	require.Len(t, channels, 2)
	assert.Equal(t, "a", channels[0].ID)
	assert.Empty(t, channels[0].Config.Tokens)
	assert.Equal(t, "a-llm", channels[0].Config.DefaultLLMModel())

	assert.Equal(t, "b", channels[1].ID)
	assert.Empty(t, channels[1].Config.ImageModels)
	assert.Equal(t, providers.AuthBearer, channels[1].Config.Auth.Type, "malformed auth falls back to bearer")

	require.Len(t, warnings, 4)
	assert.Contains(t, warnings[0], "tokens")
	assert.Contains(t, warnings[1], "imageModels")
	assert.Contains(t, warnings[1], "auth")
	assert.Contains(t, warnings[2], "missing id or baseUrl")
	assert.Contains(t, warnings[3], "not an object")
}

func TestLoadCustomChannels_InvalidJSONSyntax(t *testing.T) {
	channels, warnings := LoadCustomChannels(env(map[string]string{
		"CUSTOM_CHANNELS_JSON": `{"channels":[`,
	}))
	assert.Empty(t, channels)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "ignoring CUSTOM_CHANNELS_JSON")
}

func TestLoadCustomChannels_Indexed(t *testing.T) {
	channels, _ := LoadCustomChannels(env(map[string]string{
		"CUSTOM_CHANNEL_1_ID":           "local",
		"CUSTOM_CHANNEL_1_URL":          "http://localhost:8000/v1",
		"CUSTOM_CHANNEL_1_NAME":         "Local",
		"CUSTOM_CHANNEL_1_AUTH_TYPE":    "none",
		"CUSTOM_CHANNEL_1_KEY":          "local-key-1",
		"CUSTOM_CHANNEL_1_LLM_MODELS":   "llama3, qwen2 ,",
		"CUSTOM_CHANNEL_1_LLM_ENDPOINT": "/v1/chat",
		"CUSTOM_CHANNEL_3_ID":           "both",
		"CUSTOM_CHANNEL_3_URL":          "https://both.example",
		"CUSTOM_CHANNEL_3_TOKENS":       "tokens-win-1",
		"CUSTOM_CHANNEL_3_KEY":          "key-loses-1",
		"CUSTOM_CHANNEL_3_AUTH_PREFIX":  "Token ",
		"CUSTOM_CHANNEL_4_ID":           "missing-url",
	}))
	require.Len(t, channels, 2)

	local := channels[0]
	assert.Equal(t, "Local", local.Name)
	assert.Equal(t, providers.AuthNone, local.Config.Auth.Type)
	assert.Equal(t, []string{"local-key-1"}, local.Config.Tokens)
	assert.Equal(t, "/v1/chat", local.Config.Endpoints.LLM)
	assert.Equal(t, []providers.ModelInfo{{ID: "llama3", Name: "llama3"}, {ID: "qwen2", Name: "qwen2"}}, local.Config.LLMModels)

	both := channels[1]
	assert.Equal(t, []string{"tokens-win-1"}, both.Config.Tokens)
	assert.Equal(t, providers.AuthBearer, both.Config.Auth.Type)
	require.NotNil(t, both.Config.Auth.Prefix)
	assert.Equal(t, "Token", *both.Config.Auth.Prefix)
}

func TestLoadCustomChannelsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.yaml")
	content := `channels:
  - id: yamlchan
    name: YAML Channel
    baseUrl: https://yaml.example/v1
    auth:
      type: bearer
      optional: true
    headers:
      X-Org: team
    imageModels:
      - id: y-img
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	channels, warnings := LoadCustomChannels(env(map[string]string{"CUSTOM_CHANNELS_FILE": path}))
	assert.Empty(t, warnings)
	require.Len(t, channels, 1)
	assert.Equal(t, "YAML Channel", channels[0].Name)
	assert.True(t, channels[0].Config.Auth.Optional)
	assert.Equal(t, "team", channels[0].Config.Headers["X-Org"])
	assert.Equal(t, "y-img", channels[0].Config.DefaultImageModel())

	_, warnings = LoadCustomChannels(env(map[string]string{"CUSTOM_CHANNELS_FILE": filepath.Join(t.TempDir(), "missing.yaml")}))
	assert.Len(t, warnings, 1)
}

func TestLoadCustomChannelsFile_MalformedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.yaml")
	content := `channels:
  - id: good
    baseUrl: https://good.example/v1
    tokens: just-a-string
    headers:
      - not
      - a map
  - id: other
    baseUrl: https://other.example/v1
    llmModels:
      - id: other-llm
  - name: no id here
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	channels, warnings, err := LoadCustomChannelsFile(path)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "good", channels[0].ID)
	assert.Empty(t, channels[0].Config.Headers)
	assert.Equal(t, "other-llm", channels[1].Config.DefaultLLMModel())

	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "headers")
	assert.Contains(t, warnings[1], "missing id or baseUrl")
}
