package config

const (
	defaultDataDir              = "~/.local/share/verdant"
	defaultLogDir               = "~/.local/share/verdant/logs"
	defaultAPIBind              = "127.0.0.1:7524"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 60
	defaultProviderTimeout      = 20
	defaultProviderLanguage     = "en"
	defaultPlantIDBaseURL       = "https://plant.id/api/v3"
	defaultPlantNetBaseURL      = "https://my-api.plantnet.org/v2"
	defaultBreakerFailMax       = 5
	defaultBreakerResetSeconds  = 60
	defaultBreakerSuccesses     = 1
	defaultCacheTTLHours        = 168
	defaultCacheSweepMinutes    = 15
	defaultLockLeaseSeconds     = 30
	defaultLockWaitSeconds      = 15
	defaultLockRetryMS          = 150
	defaultIdentifyWorkers      = "4"
	defaultPrimaryLimit         = 5
	defaultSecondaryLimit       = 3
	defaultProviderOrderPrimary = "plantid"
	defaultProviderOrderBackup  = "plantnet"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Providers: Providers{
			Order:          []string{defaultProviderOrderPrimary, defaultProviderOrderBackup},
			TimeoutSeconds: defaultProviderTimeout,
			Language:       defaultProviderLanguage,
			PlantID: Provider{
				Enabled: true,
				BaseURL: defaultPlantIDBaseURL,
			},
			PlantNet: Provider{
				Enabled: true,
				BaseURL: defaultPlantNetBaseURL,
			},
		},
		Breaker: Breaker{
			FailMax:             defaultBreakerFailMax,
			ResetTimeoutSeconds: defaultBreakerResetSeconds,
			SuccessThreshold:    defaultBreakerSuccesses,
		},
		Cache: Cache{
			Enabled:              true,
			TTLHours:             defaultCacheTTLHours,
			SweepIntervalMinutes: defaultCacheSweepMinutes,
		},
		Lock: Lock{
			LeaseTTLSeconds:    defaultLockLeaseSeconds,
			WaitTimeoutSeconds: defaultLockWaitSeconds,
			RetryIntervalMS:    defaultLockRetryMS,
		},
		Aggregator: Aggregator{
			Workers:        defaultIdentifyWorkers,
			PrimaryLimit:   defaultPrimaryLimit,
			SecondaryLimit: defaultSecondaryLimit,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
