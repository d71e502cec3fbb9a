package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig controls how loggers built by NewLogger behave.
type LoggingConfig struct {
	// Level is the minimum level emitted. Unknown values fall back to
	// info rather than failing startup.
	Level string

	// Format selects json output or a human-readable console writer
	// ("console" or "pretty").
	Format string

	// Output is "stdout" or "stderr".
	Output string

	// AddSource annotates entries with the calling file and line.
	AddSource bool

	// TimeFormat overrides the timestamp format. Empty means RFC3339.
	TimeFormat string
}

// DefaultLoggingConfig returns the configuration used when nothing is
// set: info-level json on stdout.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}
}

// NewLogger builds a zerolog logger from cfg. It never fails; bad
// configuration degrades to the defaults instead.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = timeFormat

	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.AddSource {
		ctx = ctx.Caller()
	}

	return ctx.Logger().Level(parseLevel(cfg.Level))
}

// parseLevel maps a level name to its zerolog level, accepting
// "warning" as an alias for "warn". Anything unrecognized is info.
func parseLevel(level string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	if name == "" {
		return zerolog.InfoLevel
	}

	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithRunContext stamps a logger with the identity of one harvest run.
func WithRunContext(logger zerolog.Logger, runID, term string) zerolog.Logger {
	return logger.With().
		Str("run_id", runID).
		Str("term", term).
		Logger()
}

// WithArticleContext stamps a logger with the article being processed.
func WithArticleContext(logger zerolog.Logger, pmid string) zerolog.Logger {
	return logger.With().Str("pmid", pmid).Logger()
}

// WithStageContext stamps a logger with the pipeline stage.
func WithStageContext(logger zerolog.Logger, stage string) zerolog.Logger {
	return logger.With().Str("stage", stage).Logger()
}
