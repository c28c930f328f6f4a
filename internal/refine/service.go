// ABOUTME: Refinement service wiring the segmenter, context, prompts, generator and stores
// ABOUTME: Built once from an immutable Config and a set of collaborator ports
package refine

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/harper/refinery/internal/cleaner"
	"github.com/harper/refinery/internal/config"
	"github.com/harper/refinery/internal/logging"
	"github.com/harper/refinery/internal/metrics"
	"github.com/harper/refinery/internal/models"
	"github.com/harper/refinery/internal/prompt"
	"github.com/harper/refinery/internal/segment"
)

// Config holds the pipeline thresholds
type Config struct {
	// MinContentLength is the fewest characters a unit needs to be refined
	MinContentLength int
	SplitWindow      int
	LeaseTTL         time.Duration
	// DefaultModel is used when neither the call nor the project names a model
	DefaultModel  string
	Context       prompt.AssemblerConfig
	BannedPhrases []string
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		MinContentLength: 100,
		SplitWindow:      segment.DefaultWindow,
		LeaseTTL:         30 * time.Minute,
		Context:          prompt.AssemblerConfig{RosterLimit: 10, HistoryLimit: 10, PriorTailChars: 5000},
	}
}

// ConfigFrom maps the application configuration onto pipeline thresholds
func ConfigFrom(c *config.Config) Config {
	return Config{
		MinContentLength: c.MinContentLength,
		SplitWindow:      c.SplitWindow,
		LeaseTTL:         c.LeaseTTL,
		DefaultModel:     c.DefaultModel,
		Context: prompt.AssemblerConfig{
			RosterLimit:    c.RosterLimit,
			HistoryLimit:   c.HistoryLimit,
			PriorTailChars: c.PriorTailChars,
		},
	}
}

// Deps are the collaborators a Service runs against
type Deps struct {
	Units       UnitStore
	Sources     prompt.Sources
	Refinements RefinementStore
	Leases      LeaseStore
	Generator   Generator
	// Catalog defaults to models.DefaultCatalog
	Catalog *models.Catalog
	Metrics *metrics.Recorder
	Logger  *zap.Logger
}

// Service runs unit and batch refinements and the operations around them
type Service struct {
	cfg         Config
	units       UnitStore
	refinements RefinementStore
	leases      LeaseStore
	catalog     *models.Catalog
	splitter    *segment.Splitter
	assembler   *prompt.Assembler
	cleaner     *cleaner.Cleaner
	refiner     *SegmentRefiner
	metrics     *metrics.Recorder
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a Service
func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Units == nil || deps.Refinements == nil || deps.Leases == nil {
		return nil, errors.New("unit, refinement and lease stores are required")
	}
	if deps.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if deps.Sources == nil {
		return nil, errors.New("context sources are required")
	}
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = DefaultConfig().MinContentLength
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultConfig().LeaseTTL
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = models.DefaultCatalog()
	}

	logger := logging.OrNop(deps.Logger).Named("refine")
	c := cleaner.New(cfg.BannedPhrases)
	return &Service{
		cfg:         cfg,
		units:       deps.Units,
		refinements: deps.Refinements,
		leases:      deps.Leases,
		catalog:     catalog,
		splitter:    segment.New(cfg.SplitWindow),
		assembler:   prompt.NewAssembler(deps.Sources, cfg.Context, deps.Logger),
		cleaner:     c,
		refiner:     NewSegmentRefiner(deps.Generator, c),
		metrics:     deps.Metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// ListModels returns the model catalog
func (s *Service) ListModels() *models.Catalog {
	return s.catalog
}

// Config returns the thresholds the service runs with
func (s *Service) Config() Config {
	return s.cfg
}
