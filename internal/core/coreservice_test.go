package core

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/jo-hoe/foodlog/internal/backend/database"
	"github.com/jo-hoe/foodlog/internal/backend/imageprocessing"
	"github.com/jo-hoe/foodlog/internal/backend/storage"
	"github.com/jo-hoe/foodlog/internal/inference"
	"github.com/jo-hoe/foodlog/internal/nutrition"
)

const (
	salmonResponse = `{"menu_name":"鮭定食","kcal":650,"p":35,"f":18,"c":80}`
	testPublicBase = "http://localhost:8080/storage/v1/object/public"
)

type fakeAnalyzer struct {
	response string
	err      error
	calls    int
	gotImage []byte
}

func (f *fakeAnalyzer) Infer(_ context.Context, jpegImage []byte) (string, error) {
	f.calls++
	f.gotImage = jpegImage
	return f.response, f.err
}

type fakeUploader struct {
	err      error
	calls    int
	gotPath  string
	gotImage []byte
}

func (f *fakeUploader) Upload(_ context.Context, jpegImage []byte, path string) (string, error) {
	f.calls++
	f.gotPath = path
	f.gotImage = jpegImage
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example/food_images/" + path, nil
}

type spyDatabase struct {
	database.DatabaseService
	inserts int
	err     error
}

func (s *spyDatabase) InsertFoodLog(ctx context.Context, entry *database.FoodLog) error {
	s.inserts++
	if s.err != nil {
		return s.err
	}
	return s.DatabaseService.InsertFoodLog(ctx, entry)
}

type passthroughNormalizer struct{}

func (passthroughNormalizer) Normalize(imageData []byte) ([]byte, error) {
	return imageData, nil
}

func testConfig() *ServiceConfig {
	return &ServiceConfig{
		DefaultUserID: DefaultUserID,
		Storage:       Storage{Bucket: storage.DefaultBucket},
		location:      time.UTC,
	}
}

func newSpyDatabase(t *testing.T) *spyDatabase {
	t.Helper()
	ds, err := database.NewDatabase("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return &spyDatabase{DatabaseService: ds}
}

func makePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{220, 120, 90, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

var fixedTime = time.Date(2026, 10, 14, 12, 30, 45, 0, time.UTC)

func TestSubmit_EndToEnd(t *testing.T) {
	ctx := context.Background()

	normalizer, err := imageprocessing.NewNormalizer(nil, 90, 0)
	if err != nil {
		t.Fatalf("NewNormalizer error: %v", err)
	}
	objectStore, err := storage.NewSQLiteObjectStore(":memory:", testPublicBase)
	if err != nil {
		t.Fatalf("NewSQLiteObjectStore error: %v", err)
	}
	t.Cleanup(func() { _ = objectStore.Close() })
	db := newSpyDatabase(t)
	analyzer := &fakeAnalyzer{response: "```json\n" + salmonResponse + "\n```"}

	service := newCoreService(testConfig(), normalizer, analyzer, storage.NewUploader(objectStore, storage.DefaultBucket), db)
	service.objectStore = objectStore
	service.now = func() time.Time { return fixedTime }

	entry, err := service.Submit(ctx, service.NewSubmission(makePNG(t), ""))
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	// the model receives the normalized JPEG
	if _, err := jpeg.Decode(bytes.NewReader(analyzer.gotImage)); err != nil {
		t.Errorf("analyzer did not receive a JPEG: %v", err)
	}

	expectedEstimate := nutrition.Estimate{MenuName: "鮭定食", Kcal: 650, ProteinG: 35, FatG: 18, CarbG: 80}
	expectedURL := testPublicBase + "/food_images/TEST_USER/20261014_123045.jpg"

	if entry.UserID != "TEST_USER" || entry.MealType != "未設定" || entry.MenuName != "鮭定食" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Macros != expectedEstimate {
		t.Errorf("Macros = %+v, want %+v", entry.Macros, expectedEstimate)
	}
	if entry.ImageURL != expectedURL {
		t.Errorf("ImageURL = %q, want %q", entry.ImageURL, expectedURL)
	}
	if entry.Date != "2026-10-14" || !entry.CreatedAt.Equal(fixedTime) {
		t.Errorf("unexpected date/created_at: %s %v", entry.Date, entry.CreatedAt)
	}

	stored, contentType, err := service.GetObject(ctx, "food_images", "TEST_USER/20261014_123045.jpg")
	if err != nil {
		t.Fatalf("GetObject error: %v", err)
	}
	if contentType != "image/jpeg" || !bytes.Equal(stored, analyzer.gotImage) {
		t.Error("stored object does not match the analyzed JPEG")
	}

	logs, err := service.ListFoodLogs(ctx, "")
	if err != nil {
		t.Fatalf("ListFoodLogs error: %v", err)
	}
	if len(logs) != 1 || logs[0].ID != entry.ID || logs[0].Macros != expectedEstimate {
		t.Errorf("unexpected stored logs: %+v", logs)
	}
}

func TestSubmit_UnparsableResponse(t *testing.T) {
	analyzer := &fakeAnalyzer{response: "I cannot analyze this image"}
	uploader := &fakeUploader{}
	db := newSpyDatabase(t)
	service := newCoreService(testConfig(), passthroughNormalizer{}, analyzer, uploader, db)

	_, err := service.Submit(context.Background(), service.NewSubmission([]byte("img"), "u1"))

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageParsing {
		t.Fatalf("expected parsing StageError, got %v", err)
	}
	var parseErr *nutrition.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected ParseError cause, got %v", err)
	}
	if uploader.calls != 0 || db.inserts != 0 {
		t.Errorf("expected no upload and no insert, got uploads=%d inserts=%d", uploader.calls, db.inserts)
	}
}

func TestSubmit_MissingKeys(t *testing.T) {
	uploader := &fakeUploader{}
	db := newSpyDatabase(t)
	service := newCoreService(testConfig(), passthroughNormalizer{},
		&fakeAnalyzer{response: `{"menu_name":"鮭定食","kcal":650}`}, uploader, db)

	_, err := service.Submit(context.Background(), service.NewSubmission([]byte("img"), "u1"))

	var validationErr *nutrition.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if uploader.calls != 0 || db.inserts != 0 {
		t.Errorf("expected no upload and no insert, got uploads=%d inserts=%d", uploader.calls, db.inserts)
	}
}

func TestSubmit_InferenceFailure(t *testing.T) {
	cause := &inference.Error{Model: "m", Err: errors.New("quota exceeded")}
	uploader := &fakeUploader{}
	db := newSpyDatabase(t)
	service := newCoreService(testConfig(), passthroughNormalizer{}, &fakeAnalyzer{err: cause}, uploader, db)

	_, err := service.Submit(context.Background(), service.NewSubmission([]byte("img"), "u1"))

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageInferring {
		t.Fatalf("expected inferring StageError, got %v", err)
	}
	var inferenceErr *inference.Error
	if !errors.As(err, &inferenceErr) {
		t.Errorf("expected inference.Error cause, got %v", err)
	}
	if uploader.calls != 0 || db.inserts != 0 {
		t.Errorf("expected no upload and no insert")
	}
}

func TestSubmit_UploadFailureSkipsInsert(t *testing.T) {
	uploader := &fakeUploader{err: &storage.Error{Bucket: "food_images", Path: "p", Err: errors.New("503")}}
	db := newSpyDatabase(t)
	service := newCoreService(testConfig(), passthroughNormalizer{}, &fakeAnalyzer{response: salmonResponse}, uploader, db)

	_, err := service.Submit(context.Background(), service.NewSubmission([]byte("img"), "u1"))

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageUploading {
		t.Fatalf("expected uploading StageError, got %v", err)
	}
	var storageErr *storage.Error
	if !errors.As(err, &storageErr) {
		t.Errorf("expected storage.Error cause, got %v", err)
	}
	if db.inserts != 0 {
		t.Errorf("insert must not be called after a failed upload, got %d", db.inserts)
	}
}

func TestSubmit_InsertFailureKeepsUpload(t *testing.T) {
	uploader := &fakeUploader{}
	db := newSpyDatabase(t)
	db.err = &database.PersistenceError{Err: errors.New("connection refused")}
	service := newCoreService(testConfig(), passthroughNormalizer{}, &fakeAnalyzer{response: salmonResponse}, uploader, db)

	_, err := service.Submit(context.Background(), service.NewSubmission([]byte("img"), "u1"))

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageRecording {
		t.Fatalf("expected recording StageError, got %v", err)
	}
	var persistenceErr *database.PersistenceError
	if !errors.As(err, &persistenceErr) {
		t.Errorf("expected PersistenceError cause, got %v", err)
	}
	if uploader.calls != 1 {
		t.Errorf("expected the image to have been uploaded once, got %d", uploader.calls)
	}
}

func TestSubmit_UndecodableImage(t *testing.T) {
	normalizer, err := imageprocessing.NewNormalizer(nil, 0, 0)
	if err != nil {
		t.Fatalf("NewNormalizer error: %v", err)
	}
	analyzer := &fakeAnalyzer{response: salmonResponse}
	service := newCoreService(testConfig(), normalizer, analyzer, &fakeUploader{}, newSpyDatabase(t))

	_, err = service.Submit(context.Background(), service.NewSubmission([]byte("not an image"), "u1"))

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageCapturing {
		t.Fatalf("expected capturing StageError, got %v", err)
	}
	var decodeErr *imageprocessing.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("expected DecodeError cause, got %v", err)
	}
	if analyzer.calls != 0 {
		t.Error("analyzer must not be called for undecodable input")
	}
}

func TestSubmit_CancelledContext(t *testing.T) {
	analyzer := &fakeAnalyzer{response: salmonResponse}
	service := newCoreService(testConfig(), passthroughNormalizer{}, analyzer, &fakeUploader{}, newSpyDatabase(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Submit(ctx, service.NewSubmission([]byte("img"), "u1"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if analyzer.calls != 0 {
		t.Error("analyzer must not be called after cancellation")
	}
}

func TestSubmit_SameSecondPathsCollide(t *testing.T) {
	uploader := &fakeUploader{}
	service := newCoreService(testConfig(), passthroughNormalizer{}, &fakeAnalyzer{response: salmonResponse}, uploader, newSpyDatabase(t))

	var paths []string
	for _, offset := range []time.Duration{0, 500 * time.Millisecond} {
		service.now = func() time.Time { return fixedTime.Add(offset) }
		if _, err := service.Submit(context.Background(), service.NewSubmission([]byte("img"), "u1")); err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
		paths = append(paths, uploader.gotPath)
	}

	if paths[0] != "u1/20261014_123045.jpg" || paths[0] != paths[1] {
		t.Errorf("expected both submissions to use u1/20261014_123045.jpg, got %v", paths)
	}
}

func TestNewSubmission_UsesConfiguredLocation(t *testing.T) {
	config := testConfig()
	config.location = time.FixedZone("JST", 9*60*60)
	service := newCoreService(config, passthroughNormalizer{}, &fakeAnalyzer{}, &fakeUploader{}, newSpyDatabase(t))
	service.now = func() time.Time { return time.Date(2026, 10, 13, 23, 0, 0, 0, time.UTC) }

	submission := service.NewSubmission([]byte("img"), "")
	if submission.UserID != DefaultUserID {
		t.Errorf("UserID = %q, want %q", submission.UserID, DefaultUserID)
	}
	if got := storage.ObjectPath(submission.UserID, submission.SubmittedAt, false); got != "TEST_USER/20261014_080000.jpg" {
		t.Errorf("ObjectPath() = %q", got)
	}
}

func TestGetObject_NotServed(t *testing.T) {
	service := newCoreService(testConfig(), passthroughNormalizer{}, &fakeAnalyzer{}, &fakeUploader{}, newSpyDatabase(t))
	if _, _, err := service.GetObject(context.Background(), "food_images", "x.jpg"); !errors.Is(err, ErrObjectsNotServed) {
		t.Errorf("expected ErrObjectsNotServed, got %v", err)
	}
}

func TestStage_String(t *testing.T) {
	if StageUploading.String() != "uploading" {
		t.Errorf("StageUploading.String() = %q", StageUploading.String())
	}
	if Stage(42).String() != "stage(42)" {
		t.Errorf("unknown stage string = %q", Stage(42).String())
	}
}
