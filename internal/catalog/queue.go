package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// QueueWriter appends deletion intents for the out-of-process worker that
// performs physical blob and vector removal. The worker alone owns the
// deleted_from_disk / deleted_from_vector flags.
type QueueWriter struct {
	logger zerolog.Logger
}

func NewQueueWriter(logger zerolog.Logger) *QueueWriter {
	return &QueueWriter{logger: logger}
}

// Enqueue writes one queue row in the caller's transaction, so the
// PendingDelete status flip and the queue entry commit together.
func (w *QueueWriter) Enqueue(ctx context.Context, tx Tx, imageID int64, storagePath string) (int64, error) {
	if imageID <= 0 {
		return 0, fmt.Errorf("image id is required")
	}
	if strings.TrimSpace(storagePath) == "" {
		return 0, fmt.Errorf("storage path is required")
	}

	queueEntryID, err := tx.EnqueueImageDeletion(ctx, imageID, storagePath)
	if err != nil {
		return 0, err
	}

	w.logger.Debug().
		Int64("image_id", imageID).
		Int64("queue_entry_id", queueEntryID).
		Msg("image deletion enqueued")
	return queueEntryID, nil
}
