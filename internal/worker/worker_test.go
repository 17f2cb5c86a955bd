package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"academyCards/internal/card"
	"academyCards/internal/database"
	"academyCards/internal/errcode"
	"academyCards/internal/pdf"
	"academyCards/internal/people"
	"academyCards/internal/render"
	"academyCards/internal/repository"
	"academyCards/internal/sheet"
	"academyCards/internal/tasks"
)

type fakeStorage struct {
	mu       sync.Mutex
	uploaded map[string][]byte
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded[objectName] = b
	return &minio.UploadInfo{Key: objectName}, nil
}

func (s *fakeStorage) PresignedDownloadURL(_ context.Context, objectKey, _ string, _ time.Duration) (string, error) {
	return "https://example.invalid/" + objectKey, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	sessions []string
	messages []JobNotifyMessage
}

func (n *fakeNotifier) Notify(_ context.Context, sessionID string, msg JobNotifyMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sessions = append(n.sessions, sessionID)
	n.messages = append(n.messages, msg)
	return nil
}

func (n *fakeNotifier) last(t *testing.T) JobNotifyMessage {
	t.Helper()
	require.NotEmpty(t, n.messages)
	return n.messages[len(n.messages)-1]
}

type fakePDF struct {
	html string
	size pdf.PageSize
}

func (f *fakePDF) GeneratePDF(_ context.Context, html string, size pdf.PageSize) ([]byte, error) {
	f.html, f.size = html, size
	return []byte("%PDF-1.4 fake"), nil
}

type fixture struct {
	deps      *Deps
	db        *gorm.DB
	templates *repository.MemoryStore
	storage   *fakeStorage
	notifier  *fakeNotifier
	pdf       *fakePDF
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	peopleStore := people.NewStore(db)
	_, err = peopleStore.Import(context.Background(), []card.Record{
		{Category: card.MaleStudent, Values: map[string]string{
			card.KeyRegistrationNumber: "S-1", card.KeyFirstName: "أحمد", card.KeyLastName: "محمد",
		}},
		{Category: card.MaleStudent, Values: map[string]string{
			card.KeyRegistrationNumber: "S-2", card.KeyFirstName: "عمر",
		}},
		{Category: card.FemaleEmployee, Values: map[string]string{
			card.KeyRegistrationNumber: "E-1", card.KeyFirstName: "هدى",
		}},
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	renderer := render.NewRenderer(logger, render.Options{
		Encoder: func([]byte, int) ([]byte, error) { return nil, fmt.Errorf("qr disabled") },
	})
	f := &fixture{
		db:        db,
		templates: repository.NewMemoryStore(),
		storage:   &fakeStorage{uploaded: map[string][]byte{}},
		notifier:  &fakeNotifier{},
		pdf:       &fakePDF{},
	}
	f.deps = &Deps{
		DB:         db,
		Templates:  f.templates,
		People:     peopleStore,
		Storage:    f.storage,
		Notifier:   f.notifier,
		Renderer:   renderer,
		Rasterizer: render.NewRasterizer(logger, ""),
		Composer:   sheet.NewComposer(logger, renderer),
		PDF:        f.pdf,
		Logger:     logger,
	}
	return f
}

func (f *fixture) saveTemplate(t *testing.T, category card.Category, names ...card.SemanticName) *card.Template {
	t.Helper()
	tpl := card.NewTemplate(category, "default")
	for _, name := range names {
		entry, ok := card.Lookup(category, name)
		require.True(t, ok)
		tpl.Fields = append(tpl.Fields, tpl.NewField(entry))
	}
	require.NoError(t, f.templates.Save(context.Background(), tpl))
	return tpl
}

func (f *fixture) newArtifact(t *testing.T, kind string) *database.Artifact {
	t.Helper()
	a := &database.Artifact{Kind: kind, Status: database.ArtifactPending, SessionID: "sess-1"}
	require.NoError(t, f.db.Create(a).Error)
	return a
}

func (f *fixture) reload(t *testing.T, a *database.Artifact) database.Artifact {
	t.Helper()
	var out database.Artifact
	require.NoError(t, f.db.First(&out, a.ID).Error)
	return out
}

func TestCardExportUploadsPNG(t *testing.T) {
	f := newFixture(t)
	f.saveTemplate(t, card.MaleStudent, card.NameFullName)
	artifact := f.newArtifact(t, database.ArtifactCardPNG)

	task, err := tasks.NewCardExportTask(tasks.CardExportPayload{
		ArtifactID: artifact.ID, RegistrationNumber: "s-1", Scale: 2, SessionID: "sess-1", CorrelationID: "c-1",
	})
	require.NoError(t, err)
	require.NoError(t, NewCardExportHandler(f.deps).ProcessTask(context.Background(), task))

	got := f.reload(t, artifact)
	assert.Equal(t, database.ArtifactCompleted, got.Status)
	assert.True(t, strings.HasPrefix(got.ObjectKey, "exports/card/"))
	assert.True(t, strings.HasPrefix(string(f.storage.uploaded[got.ObjectKey]), "\x89PNG"))

	msg := f.notifier.last(t)
	assert.Equal(t, StatusCompleted, msg.Status)
	assert.Equal(t, errcode.OK, msg.ErrorCode)
	assert.Equal(t, "c-1", msg.CorrelationID)
	assert.Contains(t, msg.DownloadURL, got.ObjectKey)
	assert.Equal(t, []string{"sess-1"}, f.notifier.sessions)
}

func TestCardExportWithoutTemplate(t *testing.T) {
	f := newFixture(t)
	artifact := f.newArtifact(t, database.ArtifactCardPNG)

	task, err := tasks.NewCardExportTask(tasks.CardExportPayload{ArtifactID: artifact.ID, RegistrationNumber: "E-1", SessionID: "sess-1"})
	require.NoError(t, err)
	require.NoError(t, NewCardExportHandler(f.deps).ProcessTask(context.Background(), task))

	assert.Equal(t, database.ArtifactFailed, f.reload(t, artifact).Status)
	msg := f.notifier.last(t)
	assert.Equal(t, StatusNoTemplate, msg.Status)
	assert.Equal(t, errcode.TemplateMissing, msg.ErrorCode)
	assert.Empty(t, f.storage.uploaded)
}

func TestCardExportReportsMissingQR(t *testing.T) {
	f := newFixture(t)
	tpl := f.saveTemplate(t, card.MaleStudent, card.NameFullName, card.NameQRCode)
	artifact := f.newArtifact(t, database.ArtifactCardPNG)

	task, _ := tasks.NewCardExportTask(tasks.CardExportPayload{ArtifactID: artifact.ID, RegistrationNumber: "S-2", SessionID: "sess-1"})
	require.NoError(t, NewCardExportHandler(f.deps).ProcessTask(context.Background(), task))

	msg := f.notifier.last(t)
	assert.Equal(t, StatusCompleted, msg.Status)
	assert.Equal(t, errcode.ResourceMissing, msg.ErrorCode)
	assert.Equal(t, []string{tpl.Fields[1].ID}, msg.MissingKeys)
}

func TestCardExportUnknownArtifactIsSkipped(t *testing.T) {
	f := newFixture(t)
	task, _ := tasks.NewCardExportTask(tasks.CardExportPayload{ArtifactID: 999, RegistrationNumber: "S-1"})
	assert.NoError(t, NewCardExportHandler(f.deps).ProcessTask(context.Background(), task))
	assert.Empty(t, f.notifier.messages)
}

func TestSheetPrintComposesPDF(t *testing.T) {
	f := newFixture(t)
	f.saveTemplate(t, card.MaleStudent, card.NameFullName)
	artifact := f.newArtifact(t, database.ArtifactSheetPDF)

	task, err := tasks.NewSheetPrintTask(tasks.SheetPrintPayload{
		ArtifactID:          artifact.ID,
		RegistrationNumbers: []string{"S-1", "ghost", "E-1", "S-2"},
		Settings:            sheet.DefaultSettings(),
		SessionID:           "sess-1",
	})
	require.NoError(t, err)
	require.NoError(t, NewSheetPrintHandler(f.deps).ProcessTask(context.Background(), task))

	got := f.reload(t, artifact)
	assert.Equal(t, database.ArtifactCompleted, got.Status)
	assert.True(t, strings.HasPrefix(got.ObjectKey, "exports/sheet/"))
	assert.Equal(t, pdf.PageSize{WidthMM: 210, HeightMM: 297}, f.pdf.size)
	assert.Contains(t, f.pdf.html, "أحمد محمد")
	assert.Less(t, strings.Index(f.pdf.html, "أحمد محمد"), strings.Index(f.pdf.html, "عمر"))

	msg := f.notifier.last(t)
	assert.Equal(t, StatusCompleted, msg.Status)
	assert.Equal(t, errcode.ResourceMissing, msg.ErrorCode)
	assert.ElementsMatch(t, []string{"ghost", string(card.FemaleEmployee)}, msg.MissingKeys)
}

func TestSheetPrintCapacityExceeded(t *testing.T) {
	f := newFixture(t)
	f.saveTemplate(t, card.MaleStudent, card.NameFullName)
	artifact := f.newArtifact(t, database.ArtifactSheetPDF)

	settings := sheet.DefaultSettings()
	settings.SheetWidthMM, settings.SheetHeightMM = 90, 60
	task, _ := tasks.NewSheetPrintTask(tasks.SheetPrintPayload{
		ArtifactID:          artifact.ID,
		RegistrationNumbers: []string{"S-1", "S-2"},
		Settings:            settings,
		SessionID:           "sess-1",
	})
	require.NoError(t, NewSheetPrintHandler(f.deps).ProcessTask(context.Background(), task))

	assert.Equal(t, database.ArtifactFailed, f.reload(t, artifact).Status)
	assert.Equal(t, errcode.CapacityExceeded, f.notifier.last(t).ErrorCode)
	assert.Empty(t, f.pdf.html)
}

func TestTemplatePreview(t *testing.T) {
	f := newFixture(t)
	tpl := f.saveTemplate(t, card.FemaleEmployee, card.NameFullName, card.NameEmployeePhoto)

	task, err := tasks.NewTemplatePreviewTask(tpl.ID, "c-9")
	require.NoError(t, err)
	require.NoError(t, NewTemplatePreviewHandler(f.deps).ProcessTask(context.Background(), task))

	key := "thumbnails/template/" + tpl.ID + "/preview.png"
	assert.NotEmpty(t, f.storage.uploaded[key])

	missing, _ := tasks.NewTemplatePreviewTask("missing", "")
	assert.NoError(t, NewTemplatePreviewHandler(f.deps).ProcessTask(context.Background(), missing))
}
