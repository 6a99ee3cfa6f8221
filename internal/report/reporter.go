package report

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/studiowebux/trackload/internal/types"
)

// ErrorReporter logs details of failed checks and the operator-facing
// output of setup flows
type ErrorReporter struct {
	log    *zap.Logger
	tokens *zap.Logger // ignores the configured level
}

// NewErrorReporter creates a reporter writing to log. A nil logger discards.
func NewErrorReporter(log *zap.Logger) *ErrorReporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &ErrorReporter{
		log: log,
		tokens: log.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return alwaysEnabled{c}
		})),
	}
}

// alwaysEnabled writes every entry whatever the level of the wrapped core
type alwaysEnabled struct {
	zapcore.Core
}

func (c alwaysEnabled) Enabled(zapcore.Level) bool { return true }

func (c alwaysEnabled) With(fields []zapcore.Field) zapcore.Core {
	return alwaysEnabled{c.Core.With(fields)}
}

func (c alwaysEnabled) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return ce.AddCore(e, c)
}

// LogError logs res when isError is true. tags are appended as fields.
func (r *ErrorReporter) LogError(isError bool, res *types.RequestResult, tags map[string]string) {
	if !isError || res == nil {
		return
	}

	fields := []zap.Field{
		zap.String("url", res.URL),
		zap.Int("status", res.Status),
		zap.Int("error_code", res.ErrorCode),
		zap.String("category", Categorize(res)),
	}
	if res.Traceparent != "" {
		fields = append(fields, zap.String("traceparent", res.Traceparent))
	}
	if res.Error != "" {
		fields = append(fields, zap.String("error", res.Error))
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.String(k, tags[k]))
	}

	r.log.Error("request failed", fields...)
}

// Token writes an issued access token to the log sink, even when
// LOG_LEVEL is above info
func (r *ErrorReporter) Token(user, token string) {
	r.tokens.Info(token, zap.String("user", user))
}
