package seglog

// shouldConsole reports whether a record goes to the console sink
func shouldConsole(_ Level, cfg *Config) bool {
	return cfg.Debug
}

// shouldPersist reports whether a record goes to the active log file.
// Crash records bypass this and always reach the crash file.
func shouldPersist(level Level, cfg *Config) bool {
	return cfg.WriteToFile && cfg.persistsLevel(level)
}
