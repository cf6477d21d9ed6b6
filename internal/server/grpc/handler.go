package grpc

import (
	"context"
	"encoding/base64"
	"errors"
	"math"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/services"
	"github.com/dmitrijs2005/wopihost/internal/timex"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Prune(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fileID, err := stringField(req, "file_id")
	if err != nil {
		return nil, err
	}
	cr := services.CleanRequest{FileID: fileID}
	if cr.KeepAuto, err = intField(req, "keep_auto"); err != nil {
		return nil, err
	}
	if cr.KeepExplicit, err = intField(req, "keep_explicit"); err != nil {
		return nil, err
	}

	res, err := s.admin.CleanVersions(ctx, cr)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Pruned versions", "file_id", fileID, "by", UserIDFromContext(ctx), "deleted", len(res.Deleted))
	return structpb.NewStruct(map[string]any{
		"deleted":  stringList(res.Deleted),
		"retained": stringList(res.Retained),
		"skipped":  stringList(res.Skipped),
	})
}

func (s *GRPCServer) ForceUnlock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fileID, err := stringField(req, "file_id")
	if err != nil {
		return nil, err
	}
	if err := s.admin.ForceUnlock(ctx, fileID, UserIDFromContext(ctx)); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return structpb.NewStruct(map[string]any{"file_id": fileID, "unlocked": true})
}

func (s *GRPCServer) RevokeToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fileID, err := stringField(req, "file_id")
	if err != nil {
		return nil, err
	}
	user, err := stringField(req, "user")
	if err != nil {
		return nil, err
	}
	if err := s.admin.RevokeToken(ctx, fileID, user, UserIDFromContext(ctx)); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return structpb.NewStruct(map[string]any{"file_id": fileID, "user": user, "revoked": true})
}

func (s *GRPCServer) GetLock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fileID, err := stringField(req, "file_id")
	if err != nil {
		return nil, err
	}
	rec, err := s.admin.CurrentLock(ctx, fileID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if rec == nil {
		return structpb.NewStruct(map[string]any{"file_id": fileID, "locked": false})
	}
	return structpb.NewStruct(map[string]any{
		"file_id":    fileID,
		"locked":     true,
		"lock_id":    rec.LockID,
		"owner":      rec.Owner,
		"expires_at": timex.FormatISO(rec.ExpiresAt),
	})
}

// Import adds a file. The content travels base64 encoded in "data" because
// Struct has no bytes kind.
func (s *GRPCServer) Import(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ir := services.ImportRequest{}
	var err error
	if ir.FileID, err = stringField(req, "file_id"); err != nil {
		return nil, err
	}
	if ir.Name, err = stringField(req, "name"); err != nil {
		return nil, err
	}
	fields := req.GetFields()
	ir.Owner = fields["owner"].GetStringValue()
	if ir.Owner == "" {
		ir.Owner = UserIDFromContext(ctx)
	}
	ir.MimeType = fields["mime_type"].GetStringValue()
	if ir.Data, err = base64.StdEncoding.DecodeString(fields["data"].GetStringValue()); err != nil {
		return nil, status.Error(codes.InvalidArgument, "data must be base64")
	}

	meta, err := s.admin.ImportFile(ctx, ir)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return structpb.NewStruct(map[string]any{
		"file_id":   meta.ID,
		"name":      meta.Name,
		"owner":     meta.Owner,
		"mime_type": meta.MimeType,
		"size":      meta.Size,
		"version":   meta.HeadLabel,
	})
}

func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrLockMismatch):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		s.logger.Error(ctx, err.Error())
		return status.Error(codes.Internal, "internal error")
	}
}

func stringField(req *structpb.Struct, name string) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok || v.GetStringValue() == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return v.GetStringValue(), nil
}

func intField(req *structpb.Struct, name string) (*int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, nil
	}
	if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
	f := v.GetNumberValue()
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
	n := int(f)
	return &n, nil
}

func stringList(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
