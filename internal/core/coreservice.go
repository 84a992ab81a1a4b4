package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jo-hoe/foodlog/internal/backend/database"
	"github.com/jo-hoe/foodlog/internal/backend/imageprocessing"
	"github.com/jo-hoe/foodlog/internal/backend/storage"
	"github.com/jo-hoe/foodlog/internal/inference"
	"github.com/jo-hoe/foodlog/internal/nutrition"
)

// Analyzer returns the model's raw answer for a JPEG meal photo
type Analyzer interface {
	Infer(ctx context.Context, jpegImage []byte) (string, error)
}

// ImageNormalizer converts an uploaded photo into the JPEG used by all later stages
type ImageNormalizer interface {
	Normalize(imageData []byte) ([]byte, error)
}

// ImageUploader stores a JPEG at path and returns its public URL
type ImageUploader interface {
	Upload(ctx context.Context, jpegImage []byte, path string) (string, error)
}

// Submission is one capture-to-persist cycle. It lives only while Submit runs.
type Submission struct {
	Image       []byte
	UserID      string
	SubmittedAt time.Time
}

type CoreService struct {
	config          *ServiceConfig
	normalizer      ImageNormalizer
	analyzer        Analyzer
	uploader        ImageUploader
	objectStore     storage.ObjectStore
	databaseService database.DatabaseService
	closers         []func() error
	now             func() time.Time
}

// NewCoreService wires the pipeline components described by config.
func NewCoreService(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	normalizer, err := imageprocessing.NewNormalizer(config.imageCommandConfigs(), config.ImageProcessing.JpegQuality, config.ImageProcessing.MaxPixels)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image processing: %w", err)
	}

	analyzer, err := inference.NewGeminiClient(ctx, config.Inference.APIKey, config.Inference.Model, config.Inference.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inference client: %w", err)
	}

	objectStore, err := storage.NewObjectStore(ctx, config.storageOptions())
	if err != nil {
		_ = analyzer.Close()
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}

	databaseService, err := getDatabaseService(config)
	if err != nil {
		_ = analyzer.Close()
		_ = objectStore.Close()
		return nil, err
	}

	service := newCoreService(config, normalizer, analyzer, storage.NewUploader(objectStore, config.Storage.Bucket), databaseService)
	service.objectStore = objectStore
	service.closers = []func() error{analyzer.Close, objectStore.Close, databaseService.Close}
	return service, nil
}

func newCoreService(config *ServiceConfig, normalizer ImageNormalizer, analyzer Analyzer, uploader ImageUploader, databaseService database.DatabaseService) *CoreService {
	return &CoreService{
		config:          config,
		normalizer:      normalizer,
		analyzer:        analyzer,
		uploader:        uploader,
		databaseService: databaseService,
		closers:         []func() error{databaseService.Close},
		now:             time.Now,
	}
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

// NewSubmission captures image bytes for userID at the current time.
// An empty userID falls back to the configured default user.
func (service *CoreService) NewSubmission(image []byte, userID string) Submission {
	if userID == "" {
		userID = service.config.DefaultUserID
	}
	return Submission{
		Image:       image,
		UserID:      userID,
		SubmittedAt: service.now().In(service.config.Location()),
	}
}

// Submit runs one submission through normalize, infer, parse, upload and record, in that order.
// The first failure stops the pipeline and is returned as *StageError. Nothing is rolled back:
// an image uploaded before a failed insert stays in the object store.
func (service *CoreService) Submit(ctx context.Context, submission Submission) (*database.FoodLog, error) {
	start := time.Now()
	log := slog.With("user_id", submission.UserID, "submitted_at", submission.SubmittedAt)

	fail := func(stage Stage, err error) (*database.FoodLog, error) {
		log.Error("submission failed", "stage", stage.String(), "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, &StageError{Stage: stage, Err: err}
	}
	enter := func(stage Stage) error {
		log.Debug("submission stage", "stage", stage.String())
		return ctx.Err()
	}

	if err := enter(StageCapturing); err != nil {
		return fail(StageCapturing, err)
	}
	jpegImage, err := service.normalizer.Normalize(submission.Image)
	if err != nil {
		return fail(StageCapturing, err)
	}

	if err := enter(StageInferring); err != nil {
		return fail(StageInferring, err)
	}
	raw, err := service.analyzer.Infer(ctx, jpegImage)
	if err != nil {
		return fail(StageInferring, err)
	}

	if err := enter(StageParsing); err != nil {
		return fail(StageParsing, err)
	}
	estimate, err := nutrition.Parse(raw)
	if err != nil {
		return fail(StageParsing, err)
	}

	if err := enter(StageUploading); err != nil {
		return fail(StageUploading, err)
	}
	path := storage.ObjectPath(submission.UserID, submission.SubmittedAt, service.config.Storage.UniqueSuffix)
	imageURL, err := service.uploader.Upload(ctx, jpegImage, path)
	if err != nil {
		return fail(StageUploading, err)
	}

	if err := enter(StageRecording); err != nil {
		return fail(StageRecording, err)
	}
	entry := database.NewFoodLog(submission.UserID, *estimate, imageURL, submission.SubmittedAt)
	if err := service.databaseService.InsertFoodLog(ctx, entry); err != nil {
		return fail(StageRecording, err)
	}

	log.Info("submission recorded",
		"stage", StageDone.String(),
		"food_log_id", entry.ID,
		"menu_name", entry.MenuName,
		"image_url", entry.ImageURL,
		"duration_ms", time.Since(start).Milliseconds())
	return entry, nil
}

// ListFoodLogs returns the user's entries, newest first.
func (service *CoreService) ListFoodLogs(ctx context.Context, userID string) ([]*database.FoodLog, error) {
	if userID == "" {
		userID = service.config.DefaultUserID
	}
	return service.databaseService.GetFoodLogsByUser(ctx, userID)
}

// ErrObjectsNotServed is returned by GetObject when images are served by the object store itself.
var ErrObjectsNotServed = errors.New("objects are not served by this service")

// GetObject reads a stored image when the object store can be read back through this service.
func (service *CoreService) GetObject(ctx context.Context, bucket, path string) ([]byte, string, error) {
	reader, ok := service.objectStore.(storage.ObjectReader)
	if !ok {
		return nil, "", ErrObjectsNotServed
	}
	return reader.Download(ctx, bucket, path)
}

func (service *CoreService) Close() error {
	var errs []error
	for _, closeFn := range service.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
