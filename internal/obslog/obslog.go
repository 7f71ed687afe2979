// Package obslog builds the demo host's *slog.Logger and adapts it to
// collab.Logger, the one concrete collaborator cmd/quartzsim injects into
// the core.
package obslog

import (
	"log/slog"
	"os"

	"github.com/quartzsim/core/collab"
	"github.com/quartzsim/core/object"
)

// New builds a text-handler slog.Logger writing to stderr at level.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Adapter implements collab.Logger by forwarding each Record to an
// underlying *slog.Logger, translating collab's seven levels and
// Component/Fields into slog attributes.
type Adapter struct {
	logger *slog.Logger
}

// NewAdapter wraps logger as a collab.Logger.
func NewAdapter(logger *slog.Logger) *Adapter {
	return &Adapter{logger: logger}
}

func (a *Adapter) Log(r collab.Record) {
	attrs := make([]any, 0, len(r.Fields)+2)
	attrs = append(attrs, slog.String("virtual_time", r.Time.String()))
	if r.Component != object.TypeID("") {
		attrs = append(attrs, slog.String("component", string(r.Component)))
	}
	for k, v := range r.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}

	a.logger.Log(nil, levelToSlog(r.Level), r.Body, attrs...)
}

func levelToSlog(l collab.Level) slog.Level {
	switch l {
	case collab.LevelFatal, collab.LevelError:
		return slog.LevelError
	case collab.LevelWarning:
		return slog.LevelWarn
	case collab.LevelInfo:
		return slog.LevelInfo
	default: // Debug, Function, Trace
		return slog.LevelDebug
	}
}

var _ collab.Logger = (*Adapter)(nil)
