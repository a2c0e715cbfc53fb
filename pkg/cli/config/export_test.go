package config

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

// NewAnalysisForTest creates an Analysis config for testing purposes
func NewAnalysisForTest(profilePath string, dampingFactor float64, maxRuns int, tolerance float64, criterion string) *Analysis {
	return &Analysis{
		profilePath:   profilePath,
		dampingFactor: dampingFactor,
		maxRuns:       maxRuns,
		tolerance:     tolerance,
		criterion:     criterion,
	}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID, sqlitePath string) *Repository {
	return &Repository{backend: backend, projectID: projectID, sqlitePath: sqlitePath}
}

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(botToken, channelID string) *Slack {
	return &Slack{botToken: botToken, channelID: channelID, topRisks: 5}
}

// NewExportForTest creates an Export config for testing purposes
func NewExportForTest(bucket, dir string) *Export {
	return &Export{bucket: bucket, dir: dir}
}
