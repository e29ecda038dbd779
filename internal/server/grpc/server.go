// Package grpcserver exposes the file service over gRPC.
package grpcserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/filekeeper/internal/errs"
	"github.com/and161185/filekeeper/internal/model"
)

// FileCreator handles create-file requests.
type FileCreator interface {
	CreateFile(ctx context.Context, req model.CreateFileRequest) (model.CreateFileResponse, error)
}

// Server adapts a FileCreator to FileServiceServer.
type Server struct {
	files FileCreator
	log   *zap.Logger
}

var _ FileServiceServer = (*Server)(nil)

// New constructs the gRPC handler.
func New(files FileCreator, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{files: files, log: log}
}

// CreateFile decodes the request document and creates the file.
func (s *Server) CreateFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := stringField(req, "userID")
	if err != nil {
		return nil, toStatus(err)
	}
	filePath, err := stringField(req, "filePath")
	if err != nil {
		return nil, toStatus(err)
	}
	if sub, ok := UserIDFromCtx(ctx); ok && sub != userID {
		return nil, toStatus(errs.Forbidden("trying to manipulate data of another user"))
	}

	resp, err := s.files.CreateFile(ctx, model.CreateFileRequest{UserID: userID, FilePath: filePath})
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := structpb.NewStruct(map[string]any{"filePath": resp.FilePath})
	if err != nil {
		s.log.Error("encode response", zap.Error(err))
		return nil, toStatus(errs.Server("internal error"))
	}
	return out, nil
}

func stringField(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", errs.Argument("missing %s", name)
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", errs.Argument("%s must be a string", name)
	}
	return sv.StringValue, nil
}

var kindCodes = map[string]codes.Code{
	errs.KindArgument:  codes.InvalidArgument,
	errs.KindForbidden: codes.PermissionDenied,
	errs.KindNotFound:  codes.NotFound,
	errs.KindConflict:  codes.AlreadyExists,
	errs.KindServer:    codes.Internal,
}

// toStatus maps a classified error to a status carrying an ErrorInfo detail.
// Unclassified errors become a generic Internal.
func toStatus(err error) error {
	err = errs.Sanitize(err)
	kind := errs.KindOf(err)

	msg := err.Error()
	var e *errs.Error
	if errors.As(err, &e) {
		msg = e.Message()
	}

	return kindStatus(kindCodes[kind], kind, msg)
}

// kindStatus builds a status whose ErrorInfo detail names kind.
func kindStatus(code codes.Code, kind, msg string) error {
	st := status.New(code, msg)
	if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: kind, Domain: ErrorDomain}); derr == nil {
		st = withInfo
	}
	return st.Err()
}
