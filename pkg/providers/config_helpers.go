package providers

import (
	"fmt"
	"os"
	"strings"
)

const (
	ConfigUserAgentKey      = "user_agent"
	ConfigAcceptKey         = "accept"
	ConfigAcceptLanguageKey = "accept_language"
	ConfigCacheControlKey   = "cache_control"

	ConfigLanguageKey  = "language"
	ConfigCountryKey   = "country"
	ConfigAPIKeyKey    = "api_key"
	ConfigAPIKeyEnvKey = "api_key_env"
	ConfigFeedsKey     = "feeds"
)

// ConfigString returns the trimmed string value for key from provider.Config or a fallback.
func ConfigString(cfg Provider, key, fallback string) string {
	if cfg.Config != nil {
		if raw, ok := cfg.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}

// ConfigStringMap returns a nested string map (e.g. category token to feed url) from provider.Config.
func ConfigStringMap(cfg Provider, key string) map[string]string {
	if cfg.Config == nil {
		return nil
	}
	raw, ok := cfg.Config[key]
	if !ok {
		return nil
	}

	out := map[string]string{}
	switch m := raw.(type) {
	case map[string]any:
		for k, v := range m {
			addMapEntry(out, k, v)
		}
	case map[any]any:
		for k, v := range m {
			addMapEntry(out, fmt.Sprint(k), v)
		}
	case map[string]string:
		for k, v := range m {
			addMapEntry(out, k, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func addMapEntry(out map[string]string, k string, v any) {
	s, ok := v.(string)
	if !ok {
		return
	}
	k = strings.ToLower(strings.TrimSpace(k))
	s = strings.TrimSpace(s)
	if k == "" || s == "" {
		return
	}
	out[k] = s
}

// APIKey resolves the provider API key from config, or from the env var named by api_key_env.
func APIKey(cfg Provider) string {
	if v := ConfigString(cfg, ConfigAPIKeyKey, ""); v != "" {
		return v
	}
	if env := ConfigString(cfg, ConfigAPIKeyEnvKey, ""); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// Headers builds the common request headers from a provider config (skips empty values).
func Headers(cfg Provider) map[string]string {
	headers := make(map[string]string, 4)

	if v := ConfigString(cfg, ConfigUserAgentKey, ""); v != "" {
		headers["User-Agent"] = v
	}
	if v := ConfigString(cfg, ConfigAcceptKey, ""); v != "" {
		headers["Accept"] = v
	}
	if v := ConfigString(cfg, ConfigAcceptLanguageKey, ""); v != "" {
		headers["Accept-Language"] = v
	}
	if v := ConfigString(cfg, ConfigCacheControlKey, ""); v != "" {
		headers["Cache-Control"] = v
	}

	return headers
}
