package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "filekeeper.v1.FileService"

	// CreateFileMethod is the full method name of CreateFile.
	CreateFileMethod = "/" + ServiceName + "/CreateFile"

	// ErrorDomain tags the ErrorInfo detail attached to failed calls.
	ErrorDomain = "filekeeper"
)

// FileServiceServer is the server API of filekeeper.v1.FileService.
// Messages are google.protobuf.Struct documents:
//
//	request  {"userID": string, "filePath": string}
//	response {"filePath": string}
type FileServiceServer interface {
	CreateFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func createFileHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FileServiceServer).CreateFile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CreateFileMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FileServiceServer).CreateFile(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// FileServiceDesc describes filekeeper.v1.FileService for grpc.Server.RegisterService.
var FileServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FileServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateFile", Handler: createFileHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterFileServiceServer registers srv on s.
func RegisterFileServiceServer(s grpc.ServiceRegistrar, srv FileServiceServer) {
	s.RegisterService(&FileServiceDesc, srv)
}

// Client calls filekeeper.v1.FileService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// CreateFile creates filePath on behalf of userID and returns the created path.
// Use ErrorKind on the returned error to read its kind.
func (c *Client) CreateFile(ctx context.Context, userID, filePath string, opts ...grpc.CallOption) (string, error) {
	in, err := structpb.NewStruct(map[string]any{
		"userID":   userID,
		"filePath": filePath,
	})
	if err != nil {
		return "", err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CreateFileMethod, in, out, opts...); err != nil {
		return "", err
	}
	v, ok := out.GetFields()["filePath"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", errors.New("malformed response: missing filePath")
	}
	return v.StringValue, nil
}

// ErrorKind extracts the error kind carried by a status error, or "".
func ErrorKind(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return info.GetReason()
		}
	}
	return ""
}
