package config

import "os"

// APIKeyEnv is the environment variable that overrides market.api_key.
const APIKeyEnv = "CRYPTODASH_MARKET_API_KEY"

// KeyStatus reports whether the market API key is set, and where from,
// without exposing it.
type KeyStatus struct {
	IsSet  bool   `json:"is_set"`
	Source string `json:"source"`           // env, config or none
	Masked string `json:"masked,omitempty"` // e.g., "abc...xyz"
}

// KeyStatus describes m.APIKey.
func (m MarketConfig) KeyStatus() KeyStatus {
	switch {
	case m.APIKey == "":
		return KeyStatus{Source: "none"}
	case os.Getenv(APIKeyEnv) != "":
		return KeyStatus{IsSet: true, Source: "env", Masked: maskKey(m.APIKey)}
	default:
		return KeyStatus{IsSet: true, Source: "config", Masked: maskKey(m.APIKey)}
	}
}

// maskKey keeps the first and last 3 chars of keys longer than 8.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
