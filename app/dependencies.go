// Package app wires all gateway dependencies in one place.
package app

import (
	"bufio"
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/civinigrani/civigate/config"
	"github.com/civinigrani/civigate/internal/observability"
	"github.com/civinigrani/civigate/internal/scan"
	"github.com/civinigrani/civigate/middleware"
	"github.com/civinigrani/civigate/models"
	"github.com/civinigrani/civigate/services/agent"
	"github.com/civinigrani/civigate/services/audit"
	"github.com/civinigrani/civigate/services/policy"
	"github.com/civinigrani/civigate/services/tools"
)

// TrailReader reads back recent audit records for the audit endpoint.
type TrailReader interface {
	Recent(n int) ([]*models.AuditRecord, error)
}

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Registry *prometheus.Registry

	// Policy
	PolicyRegistry *policy.Registry
	TokenStore     *policy.TokenStore
	Engine         *policy.Engine

	// Tools
	DistrictStore *tools.DistrictStore
	ToolServer    *tools.Server

	// Agent
	Scanner      *scan.Scanner
	Proposer     agent.Proposer
	Orchestrator *agent.Orchestrator

	// Audit
	AuditService *audit.Service
	TrailReader  TrailReader
	auditCloser  func() error

	// HTTP
	IdentityMiddleware *middleware.IdentityMiddleware
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.Registry = prometheus.NewRegistry()
	deps.Metrics = observability.NewMetrics(deps.Registry)

	if err := deps.initPolicy(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	if err := deps.initTools(); err != nil {
		return nil, fmt.Errorf("failed to initialize tool server: %w", err)
	}
	if err := deps.initAudit(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize audit trail: %w", err)
	}
	if err := deps.initAgent(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize agent: %w", err)
	}

	deps.IdentityMiddleware = middleware.NewIdentityMiddleware(logger)

	logger.Info("all dependencies initialized",
		zap.Int("operations", len(deps.Engine.Catalog())),
		zap.Duration("token_ttl", cfg.Token.TTL))
	return deps, nil
}

func (d *Dependencies) initPolicy(cfg *config.Config) error {
	registry, err := policy.NewRegistry(tools.Catalog(), policy.DefaultRules())
	if err != nil {
		return err
	}

	secret := []byte(cfg.Token.Secret)
	if len(secret) == 0 {
		// Development convenience: an ephemeral secret means tokens do not
		// survive a restart, which is acceptable for a TTL of minutes.
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generate ephemeral token secret: %w", err)
		}
		d.Logger.Warn("TOKEN_SECRET not set, using ephemeral signing secret")
	}

	d.PolicyRegistry = registry
	d.TokenStore = policy.NewTokenStore()
	d.Engine, err = policy.NewEngine(registry, d.TokenStore, secret, cfg.Token.TTL, d.Logger)
	return err
}

func (d *Dependencies) initTools() error {
	d.DistrictStore = tools.NewSeededDistrictStore()
	d.ToolServer = tools.NewServer(d.DistrictStore, d.PolicyRegistry, d.Engine, d.Logger)
	return nil
}

func (d *Dependencies) initAudit(ctx context.Context, cfg *config.Config) error {
	var sink audit.Sink

	if cfg.Audit.PostgresDSN != "" {
		pg, err := audit.NewPostgresSink(ctx, cfg.Audit.PostgresDSN, d.Logger)
		if err != nil {
			return err
		}
		sink = pg
		d.TrailReader = pg
		d.auditCloser = pg.Close
	} else {
		jl, err := audit.NewJSONLSink(cfg.Audit.JSONLPath)
		if err != nil {
			return err
		}
		sink = jl
		d.TrailReader = jl
		d.auditCloser = jl.Close
	}

	auditCfg := audit.DefaultConfig()
	if cfg.Audit.BufferSize > 0 {
		auditCfg.BufferSize = cfg.Audit.BufferSize
	}
	if cfg.Audit.WorkerCount > 0 {
		auditCfg.WorkerCount = cfg.Audit.WorkerCount
	}

	d.AuditService = audit.NewService(sink, d.Metrics, d.Logger, auditCfg)
	return d.AuditService.Start()
}

func (d *Dependencies) initAgent(cfg *config.Config) error {
	phrases, err := loadBlockedPhrases(cfg.Scanner.BlockedPhrasesFile)
	if err != nil {
		return err
	}
	if phrases == nil {
		d.Scanner = scan.NewDefaultScanner()
	} else {
		d.Scanner = scan.NewScanner(phrases)
	}

	if cfg.Proposer.Endpoint != "" {
		httpProposer := agent.NewHTTPProposer(cfg.Proposer.Endpoint, cfg.Proposer.Timeout)
		d.Proposer = agent.NewReliableProposer(httpProposer, cfg.Proposer.MaxRetries, cfg.Proposer.Timeout)
	} else {
		d.Proposer = agent.NewKeywordProposer()
	}

	d.Orchestrator = agent.NewOrchestrator(
		d.Proposer,
		d.Engine,
		d.ToolServer,
		d.Scanner,
		d.AuditService,
		d.Metrics,
		agent.DefaultDisposition(),
		cfg.Proposer.MaxRetries,
		d.Logger,
	)
	return nil
}

// Shutdown drains the audit pipeline and releases resources.
func (d *Dependencies) Shutdown(timeout time.Duration) error {
	var firstErr error
	if d.AuditService != nil {
		if err := d.AuditService.Stop(timeout); err != nil {
			firstErr = err
		}
	}
	if d.auditCloser != nil {
		if err := d.auditCloser(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// loadBlockedPhrases reads a newline-separated phrase list. A missing path
// selects the built-in default list.
func loadBlockedPhrases(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blocked phrases file: %w", err)
	}
	defer f.Close()

	var phrases []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		phrases = append(phrases, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read blocked phrases file: %w", err)
	}
	return phrases, nil
}
