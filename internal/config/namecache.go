package config

import "time"

// NameCacheConfig defines settings for the Redis cache in front of
// portfolio display names.  When Enabled is false or no Redis client is
// configured, names are always read from MySQL.
type NameCacheConfig struct {
	Enabled bool          // read-through caching on or off
	TTL     time.Duration // lifetime of a cached name
	Prefix  string        // Redis key prefix, keys are <prefix>:<tenant>:<portfolio>
}

// LoadNameCacheConfig reads NAME_CACHE_* variables.
func LoadNameCacheConfig() NameCacheConfig {
	return NameCacheConfig{
		Enabled: envBool("NAME_CACHE_ENABLED", true),
		TTL:     envDur("NAME_CACHE_TTL", 5*time.Minute),
		Prefix:  envStr("NAME_CACHE_PREFIX", "portfolio-name"),
	}
}
