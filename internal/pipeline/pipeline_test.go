package pipeline

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/testhub-backend/internal/extraction"
	"github.com/angelmondragon/testhub-backend/internal/ingest"
	"github.com/angelmondragon/testhub-backend/internal/pdfs"
	"github.com/angelmondragon/testhub-backend/internal/questions"
	"github.com/angelmondragon/testhub-backend/internal/rasterizer"
	"github.com/angelmondragon/testhub-backend/pkg/config"
	"github.com/angelmondragon/testhub-backend/pkg/enums"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
	"github.com/angelmondragon/testhub-backend/pkg/migrate"
)

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type onePageRasterizer struct{}

func (onePageRasterizer) Rasterize(context.Context, []byte) ([]rasterizer.Page, error) {
	return []rasterizer.Page{{Number: 1, Data: []byte("png"), MimeType: rasterizer.MimeTypePNG, Width: 10, Height: 10}}, nil
}

type fixedExtractor struct{}

func (fixedExtractor) Extract(context.Context, rasterizer.Page) ([]extraction.QuestionRecord, error) {
	return []extraction.QuestionRecord{{Text: "2 + 2?", Options: []string{"3", "4"}}}, nil
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(migrate.Models()...))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestBuildRunsUploadsThroughLocalQueue(t *testing.T) {
	conn := openDB(t)
	logg := logger.New(logger.Options{ServiceName: "pipeline-test", Output: io.Discard})
	cfg := &config.Config{Pipeline: config.PipelineConfig{
		Workers:           2,
		QueueSize:         4,
		FailurePolicy:     config.FailurePolicyMarkFailed,
		PersistPageImages: true,
		RunTimeout:        time.Minute,
		RunLockTTL:        time.Minute,
	}}

	p, err := Build(context.Background(), Params{
		Config:     cfg,
		Logger:     logg,
		DB:         conn,
		Registerer: prometheus.NewRegistry(),
		Extractor:  fixedExtractor{},
		Rasterizer: onePageRasterizer{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	queue := p.NewQueue(cfg.Pipeline, logg)
	pdfRepo := pdfs.NewRepository(conn)
	coord, err := ingest.NewCoordinator(ingest.CoordinatorParams{
		Logger:     logg,
		TX:         gormTx{db: conn},
		PDFs:       pdfRepo,
		Jobs:       p.Jobs,
		Dispatcher: queue,
		Canceler:   p.Runner,
	})
	require.NoError(t, err)

	res, err := coord.Submit(context.Background(), ingest.SubmitInput{FileName: "exam.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, queue.Shutdown(ctx))

	doc, err := pdfRepo.FindMetaByID(context.Background(), res.PDFID)
	require.NoError(t, err)
	assert.Equal(t, enums.PDFStatusProcessed, doc.Status)

	rows, err := questions.NewRepository(conn).ListByPDF(context.Background(), res.PDFID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotNil(t, rows[0].ImageID)
}

func TestBuildRequiresDatabase(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "pipeline-test", Output: io.Discard})
	_, err := Build(context.Background(), Params{Config: &config.Config{}, Logger: logg})
	require.Error(t, err)
}
