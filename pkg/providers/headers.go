package providers

import (
	"fmt"
	"strings"
)

// Provider config keys understood by the fetchers.
const (
	ConfigUserAgentKey = "user_agent"
	ConfigRefererKey   = "referer"
	ConfigHeadersKey   = "headers"
)

const maxSnippetBytes = 512

// configString returns the trimmed string under key, or "" when absent.
func configString(p Provider, key string) string {
	raw, ok := p.Config[key]
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return strings.TrimSpace(s)
}

// Headers returns the request headers for a provider. Explicit entries under
// "headers" win over the user_agent and referer shortcuts.
func Headers(p Provider) map[string]string {
	headers := make(map[string]string, 2)

	if v := configString(p, ConfigUserAgentKey); v != "" {
		headers["User-Agent"] = v
	}
	if v := configString(p, ConfigRefererKey); v != "" {
		headers["Referer"] = v
	}

	switch extra := p.Config[ConfigHeadersKey].(type) {
	case map[string]string:
		for k, v := range extra {
			setHeader(headers, k, v)
		}
	case map[string]any:
		for k, v := range extra {
			setHeader(headers, k, fmt.Sprint(v))
		}
	}
	return headers
}

func setHeader(headers map[string]string, key, value string) {
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	headers[key] = value
}

// responseSnippet trims a response body for inclusion in errors.
func responseSnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxSnippetBytes {
		s = s[:maxSnippetBytes]
	}
	return s
}
