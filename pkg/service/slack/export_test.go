package slack

// Export internal functions for testing
var (
	TruncateText = truncateText
)
