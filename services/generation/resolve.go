package generation

import (
	"strings"

	"github.com/upb/genai-gateway/services/tokens"
)

const (
	channelModelScope   = "modelscope"
	channelGitee        = "gitee"
	channelHuggingFace  = "huggingface"
	channelDeepSeek     = "deepseek"
	channelA4F          = "a4f"
	channelPollinations = "pollinations"
	DefaultVideoChannel = channelGitee

	customPrefix = "custom/"
)

// Target is the channel and upstream model a request resolves to
type Target struct {
	ChannelID string
	Model     string

	// Anonymous drops caller tokens and runs without credentials
	Anonymous bool
}

type prefixRule struct {
	prefix  string
	channel string
	aliases map[string]string
}

var imagePrefixes = []prefixRule{
	{prefix: "gitee/", channel: channelGitee, aliases: map[string]string{
		"qwen-image":      "Qwen-Image",
		"flux-1-krea-dev": "FLUX_1-Krea-dev",
		"flux-1-dev":      "FLUX.1-dev",
	}},
	{prefix: "ms/", channel: channelModelScope, aliases: map[string]string{
		"z-image-turbo":   "Tongyi-MAI/Z-Image-Turbo",
		"flux-2":          "black-forest-labs/FLUX.2-dev",
		"flux-1-krea-dev": "black-forest-labs/FLUX.1-Krea-dev",
		"flux-1":          "MusePublic/489_ckpt_FLUX_1",
	}},
	{prefix: "hf/", channel: channelHuggingFace},
	{prefix: "a4f/", channel: channelA4F},
}

var chatPrefixes = []prefixRule{
	{prefix: "gitee/", channel: channelGitee},
	{prefix: "ms/", channel: channelModelScope},
	{prefix: "hf/", channel: channelHuggingFace},
	{prefix: "deepseek/", channel: channelDeepSeek},
	{prefix: "a4f/", channel: channelA4F},
}

// ImageAliases returns the short alias ids served for the given channel,
// keyed by full upstream model id
func ImageAliases(channelID string) map[string]string {
	for _, rule := range imagePrefixes {
		if rule.channel != channelID {
			continue
		}
		out := make(map[string]string, len(rule.aliases))
		for alias, full := range rule.aliases {
			out[full] = rule.prefix + alias
		}
		return out
	}
	return nil
}

// ResolveImageModel maps the public model parameter to a channel. Bare
// model ids are served by huggingface.
func ResolveImageModel(model string) Target {
	raw := strings.TrimSpace(model)
	if t, ok := resolveCustom(raw); ok {
		return t
	}
	for _, rule := range imagePrefixes {
		if rest, ok := strings.CutPrefix(raw, rule.prefix); ok {
			if full, ok := rule.aliases[rest]; ok {
				rest = full
			}
			return Target{ChannelID: rule.channel, Model: rest}
		}
	}
	return Target{ChannelID: channelHuggingFace, Model: raw}
}

// ResolveChatModel maps the public model parameter to a channel. Empty and
// bare models run anonymously on huggingface, which serves them through its
// free fallback.
func ResolveChatModel(model string) Target {
	raw := strings.TrimSpace(model)
	if raw == "" {
		return Target{ChannelID: channelHuggingFace, Model: "openai-fast", Anonymous: true}
	}
	if t, ok := resolveCustom(raw); ok {
		return t
	}
	for _, rule := range chatPrefixes {
		if rest, ok := strings.CutPrefix(raw, rule.prefix); ok {
			return Target{ChannelID: rule.channel, Model: rest}
		}
	}
	if rest, ok := strings.CutPrefix(raw, "pollinations/"); ok {
		return Target{ChannelID: channelPollinations, Model: rest, Anonymous: true}
	}
	return Target{ChannelID: channelHuggingFace, Model: raw, Anonymous: true}
}

// resolveCustom handles custom/<channel>/<model>; the model may be empty
func resolveCustom(raw string) (Target, bool) {
	rest, ok := strings.CutPrefix(raw, customPrefix)
	if !ok {
		return Target{}, false
	}
	channel, model, found := strings.Cut(rest, "/")
	channel = strings.TrimSpace(channel)
	if !found || channel == "" {
		return Target{}, false
	}
	return Target{ChannelID: channel, Model: strings.TrimSpace(model)}, true
}

// Credentials are the caller-supplied tokens from the Authorization header
type Credentials struct {
	// ChannelHint is set when the token carried a channel prefix such as "gitee:"
	ChannelHint string
	Tokens      []string
}

var bearerPrefixes = []struct {
	prefix  string
	channel string
}{
	{"gitee:", channelGitee},
	{"ms:", channelModelScope},
	{"hf:", channelHuggingFace},
	{"deepseek:", channelDeepSeek},
}

// ParseAuthorization reads "Bearer [gitee:|ms:|hf:|deepseek:]tok1,tok2".
// Anything else yields empty credentials.
func ParseAuthorization(header string) Credentials {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return Credentials{}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Credentials{}
	}

	for _, p := range bearerPrefixes {
		if rest, ok := strings.CutPrefix(raw, p.prefix); ok {
			rest = strings.TrimSpace(rest)
			if rest == "" {
				return Credentials{}
			}
			return Credentials{ChannelHint: p.channel, Tokens: tokens.Parse(rest)}
		}
	}
	return Credentials{Tokens: tokens.Parse(raw)}
}
