package eventsource

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nhle/toolroom/internal/model"
)

// PasswordLookup fetches a secret by key, e.g. credential.Get.
type PasswordLookup func(key string) (string, error)

// ResolveDSN returns cfg.DSN with the password from lookup filled in when
// cfg.PasswordKey is set. Both URL and key=value connection strings are
// supported.
func ResolveDSN(cfg model.EventSourceConfig, lookup PasswordLookup) (string, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return "", fmt.Errorf("event source dsn is not configured")
	}
	if cfg.PasswordKey == "" || lookup == nil {
		return dsn, nil
	}

	password, err := lookup(cfg.PasswordKey)
	if err != nil {
		return "", fmt.Errorf("loading event source password: %w", err)
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parsing event source dsn: %w", err)
		}
		user := ""
		if u.User != nil {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, password)
		return u.String(), nil
	}

	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(password)
	return fmt.Sprintf("%s password='%s'", dsn, escaped), nil
}
