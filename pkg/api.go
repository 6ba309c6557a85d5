package ldup

// This file holds the small helpers the CLI uses to apply configuration

// InitLogging applies the verbose level and debug flags from configuration
func InitLogging(verbose *VerboseConfig) {
	SetVerboseLevel(verbose.Level)
	SetDebugFlags(verbose.Debug)
	if globalVerboseLevel > 0 && verbose.Debug != "" {
		VerboseLog(1, "debug flags: %s", verbose.Debug)
	}
}

// Run finds duplicates under dirs and hands them to reporter
func Run(finder *Finder, dirs []string, reporter *Reporter, shutdownChan <-chan struct{}) (IndexStats, error) {
	groups, stats, err := finder.FindDuplicates(dirs, shutdownChan)
	if err != nil {
		return stats, err
	}
	return stats, reporter.Report(groups)
}
