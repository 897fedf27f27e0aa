package grpcapi

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/learning-platform/services/progress/internal/request"
)

const errDomain = "learnerstate"

func withInfo(c codes.Code, reason, msg string) error {
	st := status.New(c, msg)
	st2, err := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: errDomain})
	if err != nil {
		return st.Err()
	}
	return st2.Err()
}

func errInvalidArgument(reason, msg string, fields []request.FieldError) error {
	st := status.New(codes.InvalidArgument, msg)
	info := &errdetails.ErrorInfo{Reason: reason, Domain: errDomain}

	bad := &errdetails.BadRequest{}
	for _, f := range fields {
		bad.FieldViolations = append(bad.FieldViolations, &errdetails.BadRequest_FieldViolation{Field: f.Field, Description: f.Rule})
	}

	st2, err := st.WithDetails(info, bad)
	if err != nil {
		return st.Err()
	}
	return st2.Err()
}

func errUnauthenticated(msg string) error {
	return withInfo(codes.Unauthenticated, "UNAUTHENTICATED", msg)
}

func errPermissionDenied(msg string) error {
	return withInfo(codes.PermissionDenied, "FORBIDDEN", msg)
}

func errNotFound(msg string) error {
	return withInfo(codes.NotFound, "NOT_FOUND", msg)
}

func errInternal(msg string) error {
	return withInfo(codes.Internal, "INTERNAL", msg)
}
