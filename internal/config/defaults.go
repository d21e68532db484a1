package config

const (
	defaultStateDir               = "~/.local/share/limpet"
	defaultLogDir                 = "~/.local/share/limpet/logs"
	defaultRecreateDelayMS        = 1500
	defaultRelaunchDelayMS        = 1000
	defaultSupervisorRestartDelay = 5
	defaultTaskPrimeLimit         = 2_000_000
	defaultTaskProgressEvery      = 100_000
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Lifecycle: Lifecycle{
			RecreateDelayMS: defaultRecreateDelayMS,
			RelaunchDelayMS: defaultRelaunchDelayMS,
		},
		Supervisor: Supervisor{
			Enabled:             false,
			RestartDelaySeconds: defaultSupervisorRestartDelay,
		},
		Task: Task{
			PrimeLimit:    defaultTaskPrimeLimit,
			ProgressEvery: defaultTaskProgressEvery,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
