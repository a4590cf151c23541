package messages

// Logging setup messages.
const (
	LogInvalidLevelFmt  = "invalid log level %q: %w"
	LogInvalidFormatFmt = "invalid log format %q (supported: text, json)"
)
