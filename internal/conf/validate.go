package conf

import (
	"fmt"
	"strings"
)

// minTokenLength is the shortest data-entry token the service will honor.
// Shorter configured tokens disable the data-entry unclaim path entirely.
const minTokenLength = 6

// ValidateSettings checks the loaded settings for configurations that would
// leave the service unable to run correctly.
func ValidateSettings(settings *Settings) error {
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("no claim store backend enabled, enable output.sqlite or output.mysql")
	}
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return fmt.Errorf("both sqlite and mysql backends enabled, pick one")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must not be empty")
	}
	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Host == "" || settings.Output.MySQL.Database == "" {
			return fmt.Errorf("output.mysql.host and output.mysql.database must be set")
		}
	}

	if settings.WebServer.Port == "" {
		return fmt.Errorf("webserver.port must not be empty")
	}

	// A configured but too-short token is almost certainly a mistake; reject
	// it at startup rather than silently refusing every data-entry request.
	if token := settings.Security.DataEntryToken; token != "" && len(token) < minTokenLength {
		return fmt.Errorf("security.dataentrytoken must be at least %d characters", minTokenLength)
	}

	if settings.Geo.Timeout <= 0 {
		return fmt.Errorf("geo.timeout must be positive")
	}

	for _, domain := range settings.Security.OrgDomains() {
		if strings.ContainsAny(domain, " \t") {
			return fmt.Errorf("security.primarydomains entry %q contains whitespace", domain)
		}
	}

	return nil
}
