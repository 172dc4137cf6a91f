package content_process

import (
	"gorm.io/gorm"

	"github.com/clipforge/clipforge-backend/internal/data/repos"
	types "github.com/clipforge/clipforge-backend/internal/domain"
	"github.com/clipforge/clipforge-backend/internal/pkg/logger"
	"github.com/clipforge/clipforge-backend/internal/services"
)

type Pipeline struct {
	db  *gorm.DB
	log *logger.Logger

	contents repos.ContentRepo
	clips    repos.ClipRepo

	transcriber services.Transcriber
	analyzer    services.AnalyzerService
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	contents repos.ContentRepo,
	clips repos.ClipRepo,
	transcriber services.Transcriber,
	analyzer services.AnalyzerService,
) *Pipeline {
	return &Pipeline{
		db:          db,
		log:         baseLog.With("job", "content_process"),
		contents:    contents,
		clips:       clips,
		transcriber: transcriber,
		analyzer:    analyzer,
	}
}

func (p *Pipeline) Type() string { return types.JobTypeContentProcess }
