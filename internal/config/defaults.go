package config

const (
	defaultStateDir  = "~/.local/share/nogal"
	defaultVideoDir  = "video"
	defaultLogFormat = "console"
	defaultLogLevel  = "warn"
	journalFileName  = "history.db"
	lockDirName      = "locks"
)

// DefaultExtensions are the archive and disk-image formats MAME loads.
var DefaultExtensions = []string{".zip", ".7z", ".chd"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	exts := make([]string, len(DefaultExtensions))
	copy(exts, DefaultExtensions)
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Scan: Scan{
			Extensions: exts,
			VideoDir:   defaultVideoDir,
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
