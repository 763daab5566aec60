package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the configuration for structural and semantic errors.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if !strings.HasPrefix(cfg.API.Host, "http://") && !strings.HasPrefix(cfg.API.Host, "https://") {
		return fmt.Errorf("api.host %q must start with http:// or https://", cfg.API.Host)
	}
	if strings.HasSuffix(cfg.API.Host, "/") {
		return fmt.Errorf("api.host %q must not end with a slash", cfg.API.Host)
	}

	if cfg.Lock.Enabled {
		if cfg.Mongo.URL == "" {
			return fmt.Errorf("lock.enabled requires mongo.url: the process lock lives in the document store")
		}
		if cfg.Lock.UpdateTime >= cfg.Lock.ExpireTime {
			return fmt.Errorf("lock.update_time (%s) must be below lock.expire_time (%s)",
				cfg.Lock.UpdateTime, cfg.Lock.ExpireTime)
		}
	}

	if cfg.Cooldown.ForwardChanges > 0 && cfg.Cooldown.SleepForwardChanges <= 0 {
		return fmt.Errorf("cooldown.sleep_forward_changes must be set when cooldown.forward_changes is enabled")
	}

	// Supplying only one bootstrap offset is the same as supplying none,
	// which is almost certainly an operator mistake.
	if (cfg.Bootstrap.ForwardOffset == "") != (cfg.Bootstrap.BackwardOffset == "") {
		return fmt.Errorf("bootstrap offsets must be supplied together (forward and backward)")
	}

	return nil
}

// DefaultWarnings reports configuration choices that work but invite trouble,
// such as shared default state identifiers. The caller logs them at startup.
func (c *Config) DefaultWarnings() []string {
	var warnings []string

	if c.Mongo.URL != "" && c.Mongo.StateID == DefaultStateID {
		warnings = append(warnings, fmt.Sprintf(
			"mongo.state_id uses the default %q; rename it per crawler process "+
				"so crawlers sharing one database don't clash", DefaultStateID))
	}
	if c.Postgres.Host != "" && c.Postgres.StateID == DefaultStateID {
		warnings = append(warnings, fmt.Sprintf(
			"postgres.state_id uses the default %q; rename it per crawler process "+
				"so crawlers sharing one database don't clash", DefaultStateID))
	}
	if c.Lock.Enabled && c.Lock.ProcessName == DefaultLockProcessName {
		warnings = append(warnings, fmt.Sprintf(
			"lock.process_name uses the default %q; unrelated crawlers with the "+
				"same process name exclude each other", DefaultLockProcessName))
	}
	if c.API.UserAgent == DefaultUserAgent {
		warnings = append(warnings, fmt.Sprintf(
			"using default user agent %q; set api.user_agent to identify this crawler", DefaultUserAgent))
	}

	return warnings
}
