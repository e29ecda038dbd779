// Package service implements business rules on top of repositories.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/filekeeper/internal/errs"
	"github.com/and161185/filekeeper/internal/fpath"
	"github.com/and161185/filekeeper/internal/model"
)

// RequestHandler validates create-file requests and delegates to a FileService.
type RequestHandler struct {
	files FileService
	log   *zap.Logger
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(files FileService, log *zap.Logger) *RequestHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RequestHandler{files: files, log: log}
}

// CreateFile parses the path, checks ownership and creates the file.
// Returned errors always carry one of the errs kinds.
func (h *RequestHandler) CreateFile(ctx context.Context, req model.CreateFileRequest) (model.CreateFileResponse, error) {
	if req.UserID == "" {
		return model.CreateFileResponse{}, errs.Argument("missing userID")
	}
	p, err := fpath.FromAbsolute(req.FilePath)
	if err != nil {
		return model.CreateFileResponse{}, err
	}
	if req.UserID != p.Owner() {
		return model.CreateFileResponse{}, errs.Forbidden("trying to manipulate data of another user")
	}

	if err := h.files.Create(ctx, p); err != nil {
		if errs.KindOf(err) == "" {
			h.log.Error("unclassified error", zap.String("path", p.Normalized()), zap.Error(err))
		}
		return model.CreateFileResponse{}, errs.Sanitize(err)
	}
	return model.CreateFileResponse{FilePath: p.Absolute()}, nil
}
