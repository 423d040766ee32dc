package backend

import (
	"fmt"
	"strings"

	"smartexpense/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	return Config{
		SQLiteMirrorPath: appConfig.SQLiteMirrorPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleOAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		GoogleOAuthClientFile:    appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
	}, nil
}

// ParseTarget accepts a target name in any case.
func ParseTarget(s string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid export target '%s': must be one of %v", s, GetTargetStrings())
	}
	return t, nil
}

// Validate checks the settings a target needs.
func (c Config) Validate(target Target) error {
	if !target.IsValid() {
		return fmt.Errorf("invalid export target: %s", target)
	}

	switch target {
	case CSVTarget:
		if strings.TrimSpace(c.CSVPath) == "" {
			return fmt.Errorf("output path is required for csv export")
		}
	case SQLiteTarget:
		if strings.TrimSpace(c.SQLiteMirrorPath) == "" {
			return fmt.Errorf("SQLite mirror path is required for sqlite export")
		}
	case SheetsTarget:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets export")
		}
	}

	return nil
}

// GetTargets returns all valid export targets
func GetTargets() []Target {
	return []Target{CSVTarget, SQLiteTarget, SheetsTarget}
}

// GetTargetStrings returns all valid export target strings
func GetTargetStrings() []string {
	targets := GetTargets()
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.String()
	}
	return out
}
