package grpc

import (
	"context"
	"encoding/base64"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/logging"
	"github.com/dmitrijs2005/wopihost/internal/server/auth"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
	"github.com/dmitrijs2005/wopihost/internal/server/retention"
	"github.com/dmitrijs2005/wopihost/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

var adminKey = []byte("admin-key")

type fakeAdmin struct {
	cleanReq   services.CleanRequest
	cleanRes   *retention.Result
	cleanErr   error
	unlockedBy string
	lock       *models.LockRecord
	imported   services.ImportRequest
	revoked    []string
}

func (f *fakeAdmin) CleanVersions(_ context.Context, req services.CleanRequest) (*retention.Result, error) {
	f.cleanReq = req
	return f.cleanRes, f.cleanErr
}

func (f *fakeAdmin) ForceUnlock(_ context.Context, fileID, by string) error {
	f.unlockedBy = by
	return nil
}

func (f *fakeAdmin) RevokeToken(_ context.Context, fileID, identity, by string) error {
	f.revoked = append(f.revoked, fileID+"/"+identity+" by "+by)
	return nil
}

func (f *fakeAdmin) CurrentLock(context.Context, string) (*models.LockRecord, error) {
	return f.lock, nil
}

func (f *fakeAdmin) ImportFile(_ context.Context, req services.ImportRequest) (*models.FileMetadata, error) {
	f.imported = req
	if req.Name == "dup.odt" {
		return nil, common.NewValidationError("id", "file already exists")
	}
	return &models.FileMetadata{ID: req.FileID, Name: req.Name, Owner: req.Owner, MimeType: "text/plain",
		Size: int64(len(req.Data)), HeadLabel: "1.0"}, nil
}

func startServer(t *testing.T, admin AdminService, admins []string) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := NewGRPCServer("bufconn", logging.Nop(), admin, adminKey, admins)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return conn
}

func withToken(t *testing.T, userID string) context.Context {
	t.Helper()
	tok, err := auth.GenerateToken(userID, adminKey, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, tok)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func TestPrune(t *testing.T) {
	admin := &fakeAdmin{cleanRes: &retention.Result{Deleted: []string{"1.1", "1.2"}, Retained: []string{"1.3"}}}
	client := NewAdminClient(startServer(t, admin, []string{"root"}))

	out, err := client.Prune(withToken(t, "root"), mustStruct(t, map[string]any{"file_id": "f1", "keep_auto": 1, "keep_explicit": 0}))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}

	if admin.cleanReq.FileID != "f1" || *admin.cleanReq.KeepAuto != 1 || *admin.cleanReq.KeepExplicit != 0 {
		t.Fatalf("unexpected clean request: %+v", admin.cleanReq)
	}
	deleted := out.GetFields()["deleted"].GetListValue().GetValues()
	if len(deleted) != 2 || deleted[0].GetStringValue() != "1.1" {
		t.Fatalf("unexpected deleted list: %v", deleted)
	}
}

func TestPrune_DefaultsAndErrors(t *testing.T) {
	admin := &fakeAdmin{cleanRes: &retention.Result{}}
	client := NewAdminClient(startServer(t, admin, nil))
	ctx := withToken(t, "anyone")

	if _, err := client.Prune(ctx, mustStruct(t, map[string]any{"file_id": "f1"})); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if admin.cleanReq.KeepAuto != nil || admin.cleanReq.KeepExplicit != nil {
		t.Fatalf("keeps should be unset: %+v", admin.cleanReq)
	}

	_, err := client.Prune(ctx, mustStruct(t, map[string]any{}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	_, err = client.Prune(ctx, mustStruct(t, map[string]any{"file_id": "f1", "keep_auto": 1.5}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	admin.cleanErr = common.ErrorNotFound
	_, err = client.Prune(ctx, mustStruct(t, map[string]any{"file_id": "nope"}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestForceUnlockAndGetLock(t *testing.T) {
	admin := &fakeAdmin{lock: &models.LockRecord{FileID: "f1", LockID: "L1", Owner: "bob", ExpiresAt: time.Now().Add(time.Minute)}}
	client := NewAdminClient(startServer(t, admin, nil))
	ctx := withToken(t, "root")

	out, err := client.GetLock(ctx, mustStruct(t, map[string]any{"file_id": "f1"}))
	if err != nil {
		t.Fatalf("GetLock: %v", err)
	}
	if got := out.GetFields()["lock_id"].GetStringValue(); got != "L1" {
		t.Fatalf("lock_id = %q", got)
	}
	if got := out.GetFields()["owner"].GetStringValue(); got != "bob" {
		t.Fatalf("owner = %q", got)
	}

	if _, err := client.ForceUnlock(ctx, mustStruct(t, map[string]any{"file_id": "f1"})); err != nil {
		t.Fatalf("ForceUnlock: %v", err)
	}
	if admin.unlockedBy != "root" {
		t.Fatalf("unlockedBy = %q", admin.unlockedBy)
	}

	admin.lock = nil
	out, err = client.GetLock(ctx, mustStruct(t, map[string]any{"file_id": "f1"}))
	if err != nil {
		t.Fatalf("GetLock: %v", err)
	}
	if out.GetFields()["locked"].GetBoolValue() {
		t.Fatal("expected unlocked")
	}
}

func TestRevokeToken(t *testing.T) {
	admin := &fakeAdmin{}
	client := NewAdminClient(startServer(t, admin, nil))
	ctx := withToken(t, "root")

	out, err := client.RevokeToken(ctx, mustStruct(t, map[string]any{"file_id": "f1", "user": "bob"}))
	if err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if !out.GetFields()["revoked"].GetBoolValue() {
		t.Fatal("expected revoked=true")
	}
	if len(admin.revoked) != 1 || admin.revoked[0] != "f1/bob by root" {
		t.Fatalf("revoked = %v", admin.revoked)
	}

	_, err = client.RevokeToken(ctx, mustStruct(t, map[string]any{"file_id": "f1"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestImport(t *testing.T) {
	admin := &fakeAdmin{}
	client := NewAdminClient(startServer(t, admin, nil))
	ctx := withToken(t, "root")

	out, err := client.Import(ctx, mustStruct(t, map[string]any{
		"file_id": "f9", "name": "a.txt", "data": base64.StdEncoding.EncodeToString([]byte("abc")),
	}))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if string(admin.imported.Data) != "abc" || admin.imported.Owner != "root" {
		t.Fatalf("unexpected import request: %+v", admin.imported)
	}
	if got := out.GetFields()["size"].GetNumberValue(); got != 3 {
		t.Fatalf("size = %v", got)
	}
	if got := out.GetFields()["version"].GetStringValue(); got != "1.0" {
		t.Fatalf("version = %q", got)
	}

	_, err = client.Import(ctx, mustStruct(t, map[string]any{"file_id": "f9", "name": "a.txt", "data": "%%%"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	_, err = client.Import(ctx, mustStruct(t, map[string]any{"file_id": "f1", "name": "dup.odt"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestInterceptor_RejectsCallers(t *testing.T) {
	client := NewAdminClient(startServer(t, &fakeAdmin{}, []string{"root"}))
	req := mustStruct(t, map[string]any{"file_id": "f1"})

	_, err := client.GetLock(context.Background(), req)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
	if status.Convert(err).Message() != "missing token" {
		t.Fatalf("expected 'missing token', got %q", status.Convert(err).Message())
	}

	bad := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, "not-a-valid-jwt")
	_, err = client.GetLock(bad, req)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	// access tokens have no exp and are never admin tokens
	access, err := auth.GenerateAccessToken("f1", "root", adminKey)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	_, err = client.GetLock(metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, access), req)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	_, err = client.GetLock(withToken(t, "mallory"), req)
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestHealth_NoTokenRequired(t *testing.T) {
	conn := startServer(t, &fakeAdmin{}, nil)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: AdminServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop(), &fakeAdmin{}, adminKey, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected listen error for invalid port")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop(), &fakeAdmin{}, adminKey, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}
