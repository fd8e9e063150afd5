package ntnconfig

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BuildLogger constructs a production zap.Logger from Logger settings,
// following the same shape as neo-go's
// cli/options.HandleLoggingParams: start from zap.NewProductionConfig,
// disable caller/stacktrace noise for a short-lived CLI run, and let
// Level/Encoding override the defaults.
func (l Logger) BuildLogger() (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if l.Level != "" {
		if err := level.UnmarshalText([]byte(l.Level)); err != nil {
			return nil, err
		}
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	encoding := l.Encoding
	if encoding == "" {
		encoding = "console"
	}
	cc.Encoding = encoding

	return cc.Build()
}
