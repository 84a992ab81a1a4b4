package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/jo-hoe/foodlog/internal/backend/database"
	"github.com/jo-hoe/foodlog/internal/backend/imageprocessing"
	"github.com/jo-hoe/foodlog/internal/backend/storage"
	"github.com/jo-hoe/foodlog/internal/core"
	"github.com/jo-hoe/foodlog/internal/inference"
	"github.com/jo-hoe/foodlog/internal/nutrition"
	"github.com/labstack/echo/v4"
)

const (
	ProbePath       = "/probe"
	PublicStorePath = "/storage/v1/object/public"
)

// FoodLogService is the part of core.CoreService the HTTP surface depends on
type FoodLogService interface {
	NewSubmission(image []byte, userID string) core.Submission
	Submit(ctx context.Context, submission core.Submission) (*database.FoodLog, error)
	ListFoodLogs(ctx context.Context, userID string) ([]*database.FoodLog, error)
	GetObject(ctx context.Context, bucket, path string) ([]byte, string, error)
}

type APIService struct {
	service FoodLogService
}

// ErrorResponse is the JSON body of every failed API call
type ErrorResponse struct {
	Stage string `json:"stage,omitempty"`
	Error string `json:"error"`
}

// uid becomes the first object path segment, so separators and escape characters are rejected
type userQuery struct {
	UserID string `query:"uid" validate:"omitempty,max=128,excludesall=/\\%?#"`
}

func NewAPIService(service FoodLogService) *APIService {
	return &APIService{service: service}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.GET(ProbePath, s.probeHandler)

	e.POST("/api/submissions", s.submitHandler)
	e.GET("/api/foodlogs", s.listFoodLogsHandler)

	e.GET(PublicStorePath+"/:bucket/*", s.objectHandler)
}

func (s *APIService) probeHandler(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "API Service is running")
}

func (s *APIService) submitHandler(ctx echo.Context) error {
	userID, err := bindUserID(ctx)
	if err != nil {
		return err
	}

	file, err := ctx.FormFile("image")
	if err != nil {
		slog.Warn("submitHandler: failed to get uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "multipart field 'image' is required"})
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("submitHandler: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to open uploaded file"})
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("submitHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	image, err := io.ReadAll(src)
	if err != nil {
		slog.Error("submitHandler: failed to read uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read uploaded file"})
	}
	if len(image) == 0 {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "uploaded file is empty"})
	}

	entry, err := s.service.Submit(ctx.Request().Context(), s.service.NewSubmission(image, userID))
	if err != nil {
		status := statusForSubmitError(err)
		slog.Error("submitHandler: submission failed",
			"status", status, "error", err, "filename", file.Filename, "user_id", userID)
		return ctx.JSON(status, submitErrorResponse(err))
	}

	return ctx.JSON(http.StatusCreated, entry)
}

func (s *APIService) listFoodLogsHandler(ctx echo.Context) error {
	userID, err := bindUserID(ctx)
	if err != nil {
		return err
	}

	logs, err := s.service.ListFoodLogs(ctx.Request().Context(), userID)
	if err != nil {
		slog.Error("listFoodLogsHandler: failed to list food logs",
			"status", http.StatusInternalServerError, "error", err, "user_id", userID)
		return ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list food logs"})
	}
	if logs == nil {
		logs = []*database.FoodLog{}
	}

	return ctx.JSON(http.StatusOK, logs)
}

func (s *APIService) objectHandler(ctx echo.Context) error {
	bucket := ctx.Param("bucket")
	path := strings.TrimPrefix(ctx.Param("*"), "/")
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	if bucket == "" || path == "" {
		return ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "object not found"})
	}

	data, contentType, err := s.service.GetObject(ctx.Request().Context(), bucket, path)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound), errors.Is(err, core.ErrObjectsNotServed):
		slog.Warn("objectHandler: object not available",
			"status", http.StatusNotFound, "bucket", bucket, "path", path, "error", err)
		return ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "object not found"})
	case err != nil:
		slog.Error("objectHandler: failed to read object",
			"status", http.StatusInternalServerError, "bucket", bucket, "path", path, "error", err)
		return ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read object"})
	}

	if contentType == "" {
		contentType = storage.JPEGContentType
	}
	return ctx.Blob(http.StatusOK, contentType, data)
}

func bindUserID(ctx echo.Context) (string, error) {
	var query userQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &query); err != nil {
		return "", err
	}
	if err := ctx.Validate(&query); err != nil {
		return "", err
	}
	return query.UserID, nil
}

// statusForSubmitError maps the failed component to a response status
func statusForSubmitError(err error) int {
	var (
		decodeErr      *imageprocessing.DecodeError
		parseErr       *nutrition.ParseError
		validationErr  *nutrition.ValidationError
		inferenceErr   *inference.Error
		storageErr     *storage.Error
		persistenceErr *database.PersistenceError
	)

	switch {
	case errors.As(err, &decodeErr), errors.As(err, &parseErr), errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &inferenceErr):
		return http.StatusBadGateway
	case errors.As(err, &storageErr), errors.As(err, &persistenceErr):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func submitErrorResponse(err error) ErrorResponse {
	response := ErrorResponse{Error: err.Error()}
	var stageErr *core.StageError
	if errors.As(err, &stageErr) {
		response.Stage = stageErr.Stage.String()
		response.Error = stageErr.Err.Error()
	}
	return response
}
