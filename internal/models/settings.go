package models

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// settingEnvOverrides maps app_settings keys to environment variables that
// take precedence when set. Lets deployments keep API keys out of the DB.
var settingEnvOverrides = map[string]string{
	"llm.provider": "STRIDE_LLM_PROVIDER",
	"llm.model":    "STRIDE_LLM_MODEL",
	"llm.api_key":  "STRIDE_LLM_API_KEY",
	"llm.base_url": "STRIDE_LLM_BASE_URL",
}

// GetSetting returns an app setting value, or "" when unset. Environment
// overrides win over stored values.
func GetSetting(db *sql.DB, key string) string {
	if env, ok := settingEnvOverrides[key]; ok {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}

	var value string
	err := db.QueryRow(`SELECT value FROM app_settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

// SetSetting writes an app setting, replacing any prior value.
func SetSetting(db *sql.DB, key, value string) error {
	_, err := db.Exec(`INSERT INTO app_settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("models: set setting %q: %w", key, err)
	}
	return nil
}

// GetSettingInt reads an integer setting with a fallback default.
func GetSettingInt(db *sql.DB, key string, def int) int {
	v := strings.TrimSpace(GetSetting(db, key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("models: setting %q is not an integer (%q), using default %d", key, v, def)
		return def
	}
	return n
}
