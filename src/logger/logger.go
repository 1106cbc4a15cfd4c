package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options mirror the LOG_* settings.
type Options struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "pretty"
	File   string `yaml:"file"`   // empty, "none" or "disabled" for console only
}

var logFile *os.File

// InitLogger builds the process logger, installs it as the global zerolog
// logger and returns it. Components take it by option rather than reading
// the global.
func InitLogger(opts Options) zerolog.Logger {
	return initLogger(opts, os.Stdout)
}

func initLogger(opts Options, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	CloseLogger()
	if opts.File != "" && opts.File != "none" && opts.File != "disabled" {
		logFile, err = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open log file, using stdout only")
			logFile = nil
		}
	}

	var writers []io.Writer
	if opts.Format == "pretty" {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		})
	} else {
		writers = append(writers, out)
	}
	if logFile != nil {
		writers = append(writers, logFile)
	}

	l := zerolog.New(io.MultiWriter(writers...)).With().
		Timestamp().
		Logger()
	log.Logger = l

	if logFile != nil {
		l.Info().
			Str("log_file", opts.File).
			Str("log_level", level.String()).
			Msg("Logger initialized - writing to console and file")
	} else {
		l.Info().
			Str("log_level", level.String()).
			Msg("Logger initialized - writing to console only")
	}
	return l
}

func CloseLogger() {
	if logFile != nil {
		_ = logFile.Sync()
		_ = logFile.Close()
		logFile = nil
	}
}
