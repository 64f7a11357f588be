package gateway

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/adeilh/rakh-records/command"
)

// Command wire formats accepted by WithCommandFormat.
const (
	FormatBinary = "binary"
	FormatText   = "text"
)

type Options struct {
	Logger *zap.Logger
	// CommandFormat selects the queue encoding. FormatText keeps producing
	// the delimited line format for writers that predate the binary one.
	CommandFormat string
}

type Option func(*Options)

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func WithCommandFormat(format string) Option {
	return func(o *Options) {
		if format != "" {
			o.CommandFormat = format
		}
	}
}

func defaultOptions() Options {
	return Options{
		Logger:        zap.NewNop(),
		CommandFormat: FormatBinary,
	}
}

func encoderFor(format string) (func(command.Command) ([]byte, error), error) {
	switch format {
	case FormatBinary:
		return command.Encode, nil
	case FormatText:
		return func(c command.Command) ([]byte, error) {
			s, err := command.EncodeText(c)
			return []byte(s), err
		}, nil
	default:
		return nil, fmt.Errorf("gateway: unknown command format %q", format)
	}
}
