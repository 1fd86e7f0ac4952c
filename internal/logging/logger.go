package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnvVar controls the log level: debug, info, warn, error (default: info).
const LevelEnvVar = "THUMBNAIL_LOG_LEVEL"

// Init configures the global logger from the environment. Inside Lambda the
// output stays JSON so CloudWatch Logs Insights can query fields; elsewhere
// it uses the human-readable console writer.
func Init() {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv(LevelEnvVar)))

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if InLambda() {
		out = os.Stdout
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// InLambda reports whether the process runs inside AWS Lambda.
func InLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
