package config

import (
	"log"
	"time"
)

// LeaseConfig holds the lease lifecycle knobs.  Defaults match the
// product rules: 60 minute leases, a sweep every minute and a 2 minute
// grace window before hour-rollover eviction.
type LeaseConfig struct {
	Duration      time.Duration  // fixed lease lifetime
	SweepInterval time.Duration  // background reclaimer period
	RolloverGrace time.Duration  // minimum age before hour-rollover eviction
	Location      *time.Location // operating timezone of the hour slots
}

// LoadLeaseConfig reads LEASE_* variables.  An unknown LEASE_TIMEZONE is
// fatal.
func LoadLeaseConfig() LeaseConfig {
	cfg := LeaseConfig{
		Duration:      envDur("LEASE_DURATION", 60*time.Minute),
		SweepInterval: envDur("LEASE_SWEEP_INTERVAL", 60*time.Second),
		RolloverGrace: envDur("LEASE_ROLLOVER_GRACE", 2*time.Minute),
	}
	tz := envStr("LEASE_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Fatalf("invalid LEASE_TIMEZONE %q: %v", tz, err)
	}
	cfg.Location = loc
	if cfg.Duration <= 0 {
		cfg.Duration = 60 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 60 * time.Second
	}
	if cfg.RolloverGrace < 0 {
		cfg.RolloverGrace = 0
	}
	return cfg
}
