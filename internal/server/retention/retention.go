// Package retention prunes old protocol-created versions of a file.
//
// Autosave and explicit saves form two independent lineages; each keeps its
// N most recent versions. Versions that were not created by a protocol save
// are never touched.
package retention

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/logging"
	"github.com/dmitrijs2005/wopihost/internal/server/content"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

// Versions is the part of content.Repository the policy works on.
type Versions interface {
	ListVersions(ctx context.Context, fileID string) ([]*models.VersionEntry, error)
	DeleteVersion(ctx context.Context, fileID, label string) error
}

// Result lists the labels the policy touched. Skipped versions were due for
// deletion but the repository refused (the head version).
type Result struct {
	Deleted  []string
	Retained []string
	Skipped  []string
}

type Policy struct {
	versions Versions
	logger   logging.Logger
}

func NewPolicy(versions Versions, logger logging.Logger) *Policy {
	return &Policy{versions: versions, logger: logger.With("module", "retention")}
}

// Prune keeps the keepAuto newest autosave versions and the keepExplicit
// newest explicit versions of fileID and deletes the rest. A negative keep
// value leaves that lineage alone. Versions are scanned newest first.
//
// Prune does not serialize with writers itself; callers hold the file's
// write lock around it.
func (p *Policy) Prune(ctx context.Context, fileID string, keepAuto, keepExplicit int) (*Result, error) {
	if fileID == "" {
		return nil, common.NewValidationError("file_id", "must not be empty")
	}

	all, err := p.versions.ListVersions(ctx, fileID)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var autoSeen, explicitSeen int

	for i := len(all) - 1; i >= 0; i-- {
		v := all[i]

		if v.Autosave == nil {
			res.Retained = append(res.Retained, v.Label)
			continue
		}

		keep := keepExplicit
		seen := &explicitSeen
		if *v.Autosave {
			keep = keepAuto
			seen = &autoSeen
		}

		*seen++
		if keep < 0 || *seen <= keep {
			res.Retained = append(res.Retained, v.Label)
			continue
		}

		err := p.versions.DeleteVersion(ctx, fileID, v.Label)
		switch {
		case err == nil:
			res.Deleted = append(res.Deleted, v.Label)
		case errors.Is(err, content.ErrHeadVersion):
			res.Skipped = append(res.Skipped, v.Label)
		case errors.Is(err, common.ErrorNotFound):
			// removed concurrently by someone else
		default:
			return res, err
		}
	}

	p.logger.Info(ctx, "versions pruned", "file_id", fileID,
		"keep_auto", keepAuto, "keep_explicit", keepExplicit,
		"deleted", len(res.Deleted), "skipped", len(res.Skipped))
	return res, nil
}
