package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveImageModel(t *testing.T) {
	tests := []struct {
		model string
		want  Target
	}{
		{"", Target{ChannelID: "huggingface"}},
		{"z-image-turbo", Target{ChannelID: "huggingface", Model: "z-image-turbo"}},
		{"hf/flux-1-schnell", Target{ChannelID: "huggingface", Model: "flux-1-schnell"}},
		{"gitee/Qwen-Image", Target{ChannelID: "gitee", Model: "Qwen-Image"}},
		{"gitee/qwen-image", Target{ChannelID: "gitee", Model: "Qwen-Image"}},
		{"ms/z-image-turbo", Target{ChannelID: "modelscope", Model: "Tongyi-MAI/Z-Image-Turbo"}},
		{"ms/flux-2", Target{ChannelID: "modelscope", Model: "black-forest-labs/FLUX.2-dev"}},
		{"a4f/provider-4/imagen-4", Target{ChannelID: "a4f", Model: "provider-4/imagen-4"}},
		{"custom/acme/img-v1", Target{ChannelID: "acme", Model: "img-v1"}},
		{"custom/acme/", Target{ChannelID: "acme", Model: ""}},
		{"custom/acme", Target{ChannelID: "huggingface", Model: "custom/acme"}},
		{"  gitee/z-image-turbo  ", Target{ChannelID: "gitee", Model: "z-image-turbo"}},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveImageModel(tt.model))
		})
	}
}

func TestResolveChatModel(t *testing.T) {
	tests := []struct {
		model string
		want  Target
	}{
		{"", Target{ChannelID: "huggingface", Model: "openai-fast", Anonymous: true}},
		{"openai", Target{ChannelID: "huggingface", Model: "openai", Anonymous: true}},
		{"pollinations/mistral", Target{ChannelID: "pollinations", Model: "mistral", Anonymous: true}},
		{"hf/Qwen/Qwen2.5-72B-Instruct", Target{ChannelID: "huggingface", Model: "Qwen/Qwen2.5-72B-Instruct"}},
		{"deepseek/deepseek-chat", Target{ChannelID: "deepseek", Model: "deepseek-chat"}},
		{"gitee/DeepSeek-V3", Target{ChannelID: "gitee", Model: "DeepSeek-V3"}},
		{"ms/deepseek-ai/DeepSeek-V3.2", Target{ChannelID: "modelscope", Model: "deepseek-ai/DeepSeek-V3.2"}},
		{"custom/local/llama3", Target{ChannelID: "local", Model: "llama3"}},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveChatModel(tt.model))
		})
	}
}

func TestParseAuthorization(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   Credentials
	}{
		{"missing", "", Credentials{}},
		{"not bearer", "Basic abcdefgh", Credentials{}},
		{"blank bearer", "Bearer   ", Credentials{}},
		{"plain list", "Bearer tok-aaaa-1, tok-bbbb-2", Credentials{Tokens: []string{"tok-aaaa-1", "tok-bbbb-2"}}},
		{"gitee prefix", "Bearer gitee:gitee-token-1", Credentials{ChannelHint: "gitee", Tokens: []string{"gitee-token-1"}}},
		{"ms prefix", "Bearer ms:ms-abcdefgh", Credentials{ChannelHint: "modelscope", Tokens: []string{"ms-abcdefgh"}}},
		{"hf prefix", "Bearer hf:hf_abcdefgh", Credentials{ChannelHint: "huggingface", Tokens: []string{"hf_abcdefgh"}}},
		{"deepseek prefix", "Bearer deepseek:sk-abcdefgh", Credentials{ChannelHint: "deepseek", Tokens: []string{"sk-abcdefgh"}}},
		{"prefix without token", "Bearer gitee:  ", Credentials{}},
		{"short tokens dropped", "Bearer short", Credentials{Tokens: []string{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAuthorization(tt.header)
			assert.Equal(t, tt.want.ChannelHint, got.ChannelHint)
			assert.ElementsMatch(t, tt.want.Tokens, got.Tokens)
		})
	}
}

func TestImageAliases(t *testing.T) {
	aliases := ImageAliases("modelscope")
	assert.Equal(t, "ms/z-image-turbo", aliases["Tongyi-MAI/Z-Image-Turbo"])
	assert.Nil(t, ImageAliases("deepseek"))
}
