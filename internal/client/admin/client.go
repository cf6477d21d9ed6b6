// Package admin is the gRPC client of the WOPI host admin service. Calls
// carry an admin JWT minted from the shared secret.
package admin

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/cryptox"
	"github.com/dmitrijs2005/wopihost/internal/server/auth"
	gs "github.com/dmitrijs2005/wopihost/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// PruneResult lists version labels by outcome.
type PruneResult struct {
	Deleted  []string `json:"deleted"`
	Retained []string `json:"retained"`
	Skipped  []string `json:"skipped"`
}

// LockInfo describes the live lock of a file.
type LockInfo struct {
	FileID    string `json:"file_id"`
	Locked    bool   `json:"locked"`
	LockID    string `json:"lock_id,omitempty"`
	Owner     string `json:"owner,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// ImportResult describes a file added with Import.
type ImportResult struct {
	FileID   string `json:"file_id"`
	Name     string `json:"name"`
	Owner    string `json:"owner"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Version  string `json:"version"`
}

type Client struct {
	conn        *grpc.ClientConn
	admin       *gs.AdminClient
	health      healthpb.HealthClient
	accessToken string
	timeout     time.Duration
}

// Options controls how the client authenticates.
type Options struct {
	// User is the admin identity placed in the token.
	User string
	// Secret is the server root secret; the admin signing key is derived
	// from it.
	Secret   string
	TokenTTL time.Duration
	// Timeout bounds each call. Zero means no extra deadline.
	Timeout time.Duration
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (c *Client) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	ctx = withAccessToken(ctx, c.accessToken)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// New connects to the admin endpoint. Extra dial options are appended,
// which tests use to plug in a custom dialer.
func New(endpointURL string, opts Options, dialOpts ...grpc.DialOption) (*Client, error) {
	token, err := auth.GenerateToken(opts.User, cryptox.AdminTokenKey(opts.Secret), opts.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("admin token: %w", err)
	}
	c := &Client{accessToken: token, timeout: opts.Timeout}

	dialOpts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, dialOpts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.admin = gs.NewAdminClient(conn)
	c.health = healthpb.NewHealthClient(conn)
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Ping checks the admin service through the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: gs.AdminServiceName})
	if err != nil {
		return c.mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}
	return nil
}

// Prune removes protocol versions of fileID. Nil keeps use the server
// defaults.
func (c *Client) Prune(ctx context.Context, fileID string, keepAuto, keepExplicit *int) (*PruneResult, error) {
	fields := map[string]any{"file_id": fileID}
	if keepAuto != nil {
		fields["keep_auto"] = *keepAuto
	}
	if keepExplicit != nil {
		fields["keep_explicit"] = *keepExplicit
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}

	resp, err := c.admin.Prune(ctx, req)
	if err != nil {
		return nil, c.mapError(err)
	}
	f := resp.GetFields()
	return &PruneResult{
		Deleted:  stringList(f["deleted"]),
		Retained: stringList(f["retained"]),
		Skipped:  stringList(f["skipped"]),
	}, nil
}

func (c *Client) ForceUnlock(ctx context.Context, fileID string) error {
	req, err := structpb.NewStruct(map[string]any{"file_id": fileID})
	if err != nil {
		return err
	}
	if _, err := c.admin.ForceUnlock(ctx, req); err != nil {
		return c.mapError(err)
	}
	return nil
}

// RevokeToken invalidates the access token user holds for fileID.
func (c *Client) RevokeToken(ctx context.Context, fileID, user string) error {
	req, err := structpb.NewStruct(map[string]any{"file_id": fileID, "user": user})
	if err != nil {
		return err
	}
	if _, err := c.admin.RevokeToken(ctx, req); err != nil {
		return c.mapError(err)
	}
	return nil
}

func (c *Client) GetLock(ctx context.Context, fileID string) (*LockInfo, error) {
	req, err := structpb.NewStruct(map[string]any{"file_id": fileID})
	if err != nil {
		return nil, err
	}
	resp, err := c.admin.GetLock(ctx, req)
	if err != nil {
		return nil, c.mapError(err)
	}
	f := resp.GetFields()
	return &LockInfo{
		FileID:    fileID,
		Locked:    f["locked"].GetBoolValue(),
		LockID:    f["lock_id"].GetStringValue(),
		Owner:     f["owner"].GetStringValue(),
		ExpiresAt: f["expires_at"].GetStringValue(),
	}, nil
}

// Import uploads a new file. Empty owner and mimeType are filled in by
// the server.
func (c *Client) Import(ctx context.Context, fileID, name, owner, mimeType string, data []byte) (*ImportResult, error) {
	fields := map[string]any{
		"file_id": fileID,
		"name":    name,
		"data":    base64.StdEncoding.EncodeToString(data),
	}
	if owner != "" {
		fields["owner"] = owner
	}
	if mimeType != "" {
		fields["mime_type"] = mimeType
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	resp, err := c.admin.Import(ctx, req)
	if err != nil {
		return nil, c.mapError(err)
	}
	f := resp.GetFields()
	return &ImportResult{
		FileID:   f["file_id"].GetStringValue(),
		Name:     f["name"].GetStringValue(),
		Owner:    f["owner"].GetStringValue(),
		MimeType: f["mime_type"].GetStringValue(),
		Size:     int64(f["size"].GetNumberValue()),
		Version:  f["version"].GetStringValue(),
	}, nil
}

func (c *Client) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("rpc error: %s", st.Message())
	}
}

func stringList(v *structpb.Value) []string {
	values := v.GetListValue().GetValues()
	out := make([]string, 0, len(values))
	for _, s := range values {
		out = append(out, s.GetStringValue())
	}
	return out
}
