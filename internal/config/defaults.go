package config

const (
	// DefaultLookupPath is the well-known path shared by the start and stop commands.
	DefaultLookupPath = "/DaemonLoader"
	// DefaultRegistryPort matches the conventional remote registry port.
	DefaultRegistryPort = 1099

	defaultRegistryHost       = "127.0.0.1"
	defaultDialTimeoutSeconds = 5
	defaultCallTimeoutSeconds = 30
	defaultDaemonName         = "rdaemon"
	defaultDaemonBind         = "127.0.0.1:0"
	defaultStopGraceSeconds   = 10
	defaultStateDir           = "~/.local/share/rdaemon"
	defaultLogDir             = "~/.local/share/rdaemon/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Registry: Registry{
			Host:               defaultRegistryHost,
			Port:               DefaultRegistryPort,
			Path:               DefaultLookupPath,
			DialTimeoutSeconds: defaultDialTimeoutSeconds,
			CallTimeoutSeconds: defaultCallTimeoutSeconds,
		},
		Daemon: Daemon{
			Name:             defaultDaemonName,
			Bind:             defaultDaemonBind,
			StopGraceSeconds: defaultStopGraceSeconds,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Journal: Journal{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
