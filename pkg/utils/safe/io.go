package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/engram-dev/engram/pkg/utils/logging"
)

// Close closes the closer and logs any failure through the context
// logger. A nil closer is a no-op, so deferred cleanup never needs a
// guard.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// Write writes data to w and logs any failure through the context
// logger. A nil writer is a no-op.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.From(ctx).Error("Failed to write", slog.Any("error", err))
	}
}
