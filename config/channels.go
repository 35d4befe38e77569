package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/services/tokens"
)

// maxIndexedChannels bounds the CUSTOM_CHANNEL_{n}_* scan
const maxIndexedChannels = 20

// CustomChannel is an operator-defined OpenAI-compatible channel
type CustomChannel struct {
	ID     string
	Name   string
	Config providers.ChannelConfig
}

// LookupFunc reads one environment variable
type LookupFunc func(key string) string

// channelEntry is one element of the shared JSON and YAML schema
// {"channels": [...]}
type channelEntry struct {
	ID          string
	Name        string
	BaseURL     string
	Auth        providers.AuthConfig
	Endpoints   providers.Endpoints
	Headers     map[string]string
	Tokens      []string
	ImageModels []providers.ModelInfo
	LLMModels   []providers.ModelInfo
}

// fieldDecoder decodes one still-encoded field value into dst
type fieldDecoder func(dst any) error

// rawEntry holds the fields of one channel entry, not yet decoded, so a
// badly typed field costs only that field
type rawEntry map[string]fieldDecoder

// LoadCustomChannels collects custom channels from CUSTOM_CHANNELS_JSON,
// CUSTOM_CHANNELS_FILE and the indexed CUSTOM_CHANNEL_{n}_* variables, in
// that order. Malformed sources, entries and fields are skipped and
// reported as warnings.
func LoadCustomChannels(lookup LookupFunc) ([]CustomChannel, []string) {
	var (
		channels []CustomChannel
		warnings []string
	)

	if raw := strings.TrimSpace(lookup("CUSTOM_CHANNELS_JSON")); raw != "" {
		entries, err := jsonEntries([]byte(raw))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("ignoring CUSTOM_CHANNELS_JSON: %v", err))
		} else {
			defs, warns := fromEntries("CUSTOM_CHANNELS_JSON", entries)
			channels = append(channels, defs...)
			warnings = append(warnings, warns...)
		}
	}

	if path := strings.TrimSpace(lookup("CUSTOM_CHANNELS_FILE")); path != "" {
		defs, warns, err := LoadCustomChannelsFile(path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("ignoring CUSTOM_CHANNELS_FILE: %v", err))
		} else {
			channels = append(channels, defs...)
			warnings = append(warnings, warns...)
		}
	}

	channels = append(channels, fromIndexedEnv(lookup)...)
	return channels, warnings
}

// LoadCustomChannelsFile reads a YAML channel document from disk. The error
// is set only when the file cannot be read or is not a channel document;
// per-entry problems come back as warnings.
func LoadCustomChannelsFile(path string) ([]CustomChannel, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	entries, err := yamlEntries(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defs, warnings := fromEntries(path, entries)
	return defs, warnings, nil
}

func jsonEntries(data []byte) ([]rawEntry, error) {
	var doc struct {
		Channels []json.RawMessage `json:"channels"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	out := make([]rawEntry, 0, len(doc.Channels))
	for _, item := range doc.Channels {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			out = append(out, nil)
			continue
		}
		entry := make(rawEntry, len(fields))
		for key, value := range fields {
			entry[key] = func(dst any) error { return json.Unmarshal(value, dst) }
		}
		out = append(out, entry)
	}
	return out, nil
}

func yamlEntries(data []byte) ([]rawEntry, error) {
	var doc struct {
		Channels []yaml.Node `yaml:"channels"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	out := make([]rawEntry, 0, len(doc.Channels))
	for _, item := range doc.Channels {
		var fields map[string]yaml.Node
		if err := item.Decode(&fields); err != nil {
			out = append(out, nil)
			continue
		}
		entry := make(rawEntry, len(fields))
		for key, value := range fields {
			entry[key] = func(dst any) error { return value.Decode(dst) }
		}
		out = append(out, entry)
	}
	return out, nil
}

// decodeField sets *dst from fields[key] when present and well typed. A
// bad value leaves *dst untouched and is named in bad.
func decodeField[T any](fields rawEntry, key string, dst *T, bad *[]string) {
	dec, ok := fields[key]
	if !ok {
		return
	}
	var v T
	if err := dec(&v); err != nil {
		*bad = append(*bad, key)
		return
	}
	*dst = v
}

func decodeEntry(fields rawEntry) (channelEntry, []string) {
	var (
		e   channelEntry
		bad []string
	)
	decodeField(fields, "id", &e.ID, &bad)
	decodeField(fields, "name", &e.Name, &bad)
	decodeField(fields, "baseUrl", &e.BaseURL, &bad)
	decodeField(fields, "auth", &e.Auth, &bad)
	decodeField(fields, "endpoints", &e.Endpoints, &bad)
	decodeField(fields, "headers", &e.Headers, &bad)
	decodeField(fields, "tokens", &e.Tokens, &bad)
	decodeField(fields, "imageModels", &e.ImageModels, &bad)
	decodeField(fields, "llmModels", &e.LLMModels, &bad)
	return e, bad
}

func fromEntries(source string, entries []rawEntry) ([]CustomChannel, []string) {
	out := make([]CustomChannel, 0, len(entries))
	var warnings []string
	for i, fields := range entries {
		if fields == nil {
			warnings = append(warnings, fmt.Sprintf("%s channel %d: not an object, skipped", source, i+1))
			continue
		}

		e, bad := decodeEntry(fields)
		e.ID = strings.TrimSpace(e.ID)
		e.BaseURL = strings.TrimSpace(e.BaseURL)
		if e.ID == "" || e.BaseURL == "" {
			warnings = append(warnings, fmt.Sprintf("%s channel %d: missing id or baseUrl, skipped", source, i+1))
			continue
		}
		if len(bad) > 0 {
			warnings = append(warnings, fmt.Sprintf("%s channel %q: ignoring malformed fields %s",
				source, e.ID, strings.Join(bad, ", ")))
		}

		name := e.Name
		if name == "" {
			name = e.ID
		}

		auth := e.Auth
		auth.Type = providers.ParseAuthType(string(auth.Type))

		var pool []string
		for _, t := range e.Tokens {
			if t = strings.TrimSpace(t); t != "" {
				pool = append(pool, t)
			}
		}

		out = append(out, CustomChannel{
			ID:   e.ID,
			Name: name,
			Config: providers.ChannelConfig{
				BaseURL:     e.BaseURL,
				Auth:        auth,
				Endpoints:   providers.Endpoints{Image: e.Endpoints.Image, LLM: e.Endpoints.LLM},
				Headers:     e.Headers,
				Tokens:      pool,
				ImageModels: namedModels(e.ImageModels),
				LLMModels:   namedModels(e.LLMModels),
			},
		})
	}
	return out, warnings
}

func fromIndexedEnv(lookup LookupFunc) []CustomChannel {
	var out []CustomChannel
	for i := 1; i <= maxIndexedChannels; i++ {
		get := func(suffix string) string {
			return strings.TrimSpace(lookup(fmt.Sprintf("CUSTOM_CHANNEL_%d_%s", i, suffix)))
		}

		id, baseURL := get("ID"), get("URL")
		if id == "" || baseURL == "" {
			continue
		}
		name := get("NAME")
		if name == "" {
			name = id
		}

		pool := tokens.Parse(get("TOKENS"))
		if len(pool) == 0 {
			pool = tokens.Parse(get("KEY"))
		}

		auth := providers.AuthConfig{
			Type:       providers.ParseAuthType(get("AUTH_TYPE")),
			HeaderName: get("AUTH_HEADER"),
		}
		if prefix := get("AUTH_PREFIX"); prefix != "" {
			auth.Prefix = providers.StringPtr(prefix)
		}

		out = append(out, CustomChannel{
			ID:   id,
			Name: name,
			Config: providers.ChannelConfig{
				BaseURL:     baseURL,
				Auth:        auth,
				Endpoints:   providers.Endpoints{Image: get("IMAGE_ENDPOINT"), LLM: get("LLM_ENDPOINT")},
				Tokens:      pool,
				ImageModels: parseModelList(get("IMAGE_MODELS")),
				LLMModels:   parseModelList(get("LLM_MODELS")),
			},
		})
	}
	return out
}

func namedModels(models []providers.ModelInfo) []providers.ModelInfo {
	if len(models) == 0 {
		return nil
	}
	out := make([]providers.ModelInfo, 0, len(models))
	for _, m := range models {
		if m.ID == "" {
			continue
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		out = append(out, m)
	}
	return out
}

// parseModelList turns "a, b" into catalog entries named after their id
func parseModelList(raw string) []providers.ModelInfo {
	var out []providers.ModelInfo
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, providers.ModelInfo{ID: id, Name: id})
		}
	}
	return out
}
