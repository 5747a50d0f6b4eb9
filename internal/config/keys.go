package config

import "os"

// requiredKeys are the environment variables the UI reports when unset.
var requiredKeys = []string{"OPENAI_API_KEY", "GROQ_API_KEY", "JWT_SECRET"}

// MissingKeys returns the names of required environment variables that are unset.
// It is informational only and never blocks startup.
func MissingKeys() []string {
	keys := requiredKeys
	if getEnvOrDefault("DB_DRIVER", "postgres") == "postgres" {
		keys = append(append([]string{}, requiredKeys...), "DB_PASSWORD")
	}

	missing := make([]string, 0, len(keys))
	for _, key := range keys {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
