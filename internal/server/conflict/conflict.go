// Package conflict rejects writes based on a stale view of the file.
//
// WOPI clients echo back the LastModifiedTime they last saw in the
// X-COOL-WOPI-Timestamp header. A save is only accepted when that instant
// still matches the repository's, compared at millisecond precision.
package conflict

import (
	"context"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/logging"
	"github.com/dmitrijs2005/wopihost/internal/timex"
)

// ModTimeSource reports when a file's head last changed.
// content.Repository satisfies it.
type ModTimeSource interface {
	CurrentModifiedTime(ctx context.Context, fileID string) (time.Time, bool, error)
}

type Detector struct {
	source ModTimeSource
	logger logging.Logger
}

func NewDetector(source ModTimeSource, logger logging.Logger) *Detector {
	return &Detector{source: source, logger: logger.With("module", "conflict")}
}

// Check returns nil when a write carrying callerTimestamp may proceed and
// common.ErrConflictDetected when it must be rejected. An empty timestamp or
// a file without any version always passes; a timestamp that does not parse
// never does. Repository failures are returned as storage errors.
func (d *Detector) Check(ctx context.Context, fileID, callerTimestamp string) error {
	if callerTimestamp == "" {
		return nil
	}

	stored, ok, err := d.source.CurrentModifiedTime(ctx, fileID)
	if err != nil {
		return common.NewStorageError("current modified time", err)
	}
	if !ok {
		return nil
	}

	caller, err := timex.ParseISO(callerTimestamp)
	if err != nil {
		d.logger.Warn(ctx, "unparseable client timestamp", "file_id", fileID, "timestamp", callerTimestamp)
		return common.ErrConflictDetected
	}

	if !timex.TruncateMillis(caller).Equal(timex.TruncateMillis(stored)) {
		d.logger.Info(ctx, "write conflict detected", "file_id", fileID,
			"client", timex.FormatISO(caller), "stored", timex.FormatISO(stored))
		return common.ErrConflictDetected
	}
	return nil
}
