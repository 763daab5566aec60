package config

// time.Duration marshals to YAML as a bare nanosecond integer, while the
// loader reads bare integers as seconds (the *_SECONDS env convention).
// Emitting durations as strings ("30s") keeps saved configs round-trippable.

// MarshalYAML implements yaml.Marshaler.
func (c IntervalsConfig) MarshalYAML() (interface{}, error) {
	return map[string]string{
		"feed_step":         c.FeedStep.String(),
		"too_many_requests": c.TooManyRequests.String(),
		"connection_error":  c.ConnectionError.String(),
		"no_items":          c.NoItems.String(),
		"db_error":          c.DBError.String(),
	}, nil
}

// MarshalYAML implements yaml.Marshaler.
func (c LockConfig) MarshalYAML() (interface{}, error) {
	return map[string]interface{}{
		"enabled":          c.Enabled,
		"collection":       c.Collection,
		"process_name":     c.ProcessName,
		"expire_time":      c.ExpireTime.String(),
		"update_time":      c.UpdateTime.String(),
		"acquire_interval": c.AcquireInterval.String(),
	}, nil
}

// MarshalYAML implements yaml.Marshaler.
func (c DateModifiedConfig) MarshalYAML() (interface{}, error) {
	out := map[string]interface{}{
		"lock_enabled": c.LockEnabled,
		"margin":       c.Margin.String(),
	}
	if len(c.SkipStatuses) > 0 {
		out["skip_statuses"] = c.SkipStatuses
	}
	return out, nil
}

// MarshalYAML implements yaml.Marshaler.
func (c CooldownConfig) MarshalYAML() (interface{}, error) {
	return map[string]string{
		"forward_changes":       c.ForwardChanges.String(),
		"sleep_forward_changes": c.SleepForwardChanges.String(),
	}, nil
}
