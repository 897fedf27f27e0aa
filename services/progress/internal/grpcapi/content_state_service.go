package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/learning-platform/internal/platform/auth"
	"github.com/example/learning-platform/services/progress/internal/reconcile"
	"github.com/example/learning-platform/services/progress/internal/request"
)

// ContentStateService implements ContentStateServer on top of a Reconciler.
//
// UpdateContentState takes {"userId": "...", "contents": [...]} and returns
// {"result": {"<contentId>": "SUCCESS"|"FAILED"}}. GetContentState takes
// {"userId", "contentId", "courseId", "batchId"} and returns {"result": record}.
type ContentStateService struct {
	Reconciler *reconcile.Reconciler
	Log        *zap.Logger
}

var _ ContentStateServer = (*ContentStateService)(nil)

type updateRequest struct {
	UserID string `json:"userId"`
	request.Batch
}

type getRequest struct {
	UserID    string `json:"userId"`
	ContentID string `json:"contentId"`
	CourseID  string `json:"courseId"`
	BatchID   string `json:"batchId"`
}

// callerFromMD reads the caller identity set by the gateway and checks it
// may act for userID.
func callerFromMD(ctx context.Context, userID string) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return errUnauthenticated("missing metadata")
	}
	vals := md.Get("user_id")
	if len(vals) == 0 || strings.TrimSpace(vals[0]) == "" {
		return errUnauthenticated("missing user_id in metadata")
	}
	actx := auth.WithUserID(ctx, strings.TrimSpace(vals[0]))
	if roles := md.Get("role"); len(roles) > 0 {
		actx = auth.WithRole(actx, roles[0])
	}
	if !auth.CanActFor(actx, userID) {
		return errPermissionDenied("cannot access another user's content state")
	}
	return nil
}

// decodeStruct copies a Struct into v through its JSON form.
func decodeStruct(in *structpb.Struct, v any) error {
	b, err := json.Marshal(in.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// encodeStruct converts v into a Struct through its JSON form.
func encodeStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func (s *ContentStateService) UpdateContentState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req updateRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, errInvalidArgument("INVALID_REQUEST", "malformed request: "+err.Error(), nil)
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, errInvalidArgument("MISSING_ID", "userId is required", []request.FieldError{{Field: "userId", Rule: "required"}})
	}
	if err := callerFromMD(ctx, userID); err != nil {
		return nil, err
	}

	reports, err := req.Batch.Reports(userID)
	if err != nil {
		var verr *request.ValidationError
		if errors.As(err, &verr) {
			return nil, errInvalidArgument("INVALID_REQUEST", "invalid content state", verr.Fields)
		}
		return nil, errInvalidArgument("INVALID_REQUEST", err.Error(), nil)
	}

	var out *structpb.Struct
	var encErr error
	s.Reconciler.Reconcile(ctx, userID, reports, func(d reconcile.Digest) {
		out, encErr = encodeStruct(map[string]any{"result": d})
	})
	if encErr != nil {
		s.logger().Error("encode digest", zap.Error(encErr))
		return nil, errInternal("failed to encode result")
	}
	return out, nil
}

func (s *ContentStateService) GetContentState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req getRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, errInvalidArgument("INVALID_REQUEST", "malformed request: "+err.Error(), nil)
	}
	var missing []request.FieldError
	if strings.TrimSpace(req.UserID) == "" {
		missing = append(missing, request.FieldError{Field: "userId", Rule: "required"})
	}
	if strings.TrimSpace(req.ContentID) == "" {
		missing = append(missing, request.FieldError{Field: "contentId", Rule: "required"})
	}
	if len(missing) > 0 {
		return nil, errInvalidArgument("MISSING_ID", "userId and contentId are required", missing)
	}
	if err := callerFromMD(ctx, req.UserID); err != nil {
		return nil, err
	}

	rec, found, err := s.Reconciler.Lookup(ctx, req.UserID, req.ContentID, req.CourseID, req.BatchID)
	if err != nil {
		s.logger().Error("content state lookup failed", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, errInternal("lookup failed")
	}
	if !found {
		return nil, errNotFound("content state not found")
	}
	out, err := encodeStruct(map[string]any{"result": rec})
	if err != nil {
		return nil, errInternal("failed to encode result")
	}
	return out, nil
}

func (s *ContentStateService) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
