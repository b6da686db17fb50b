// Package app wires configuration, clients, storage, and services into a
// runnable application core.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/psxlens/internal/clients/openrouter"
	"github.com/bobmcallan/psxlens/internal/clients/psx"
	"github.com/bobmcallan/psxlens/internal/common"
	"github.com/bobmcallan/psxlens/internal/interfaces"
	"github.com/bobmcallan/psxlens/internal/services/analyzer"
	"github.com/bobmcallan/psxlens/internal/services/jobmanager"
	"github.com/bobmcallan/psxlens/internal/services/statements"
	"github.com/bobmcallan/psxlens/internal/storage/analysisfs"
)

// App holds all initialized clients, stores, and services.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	OpenRouterClient interfaces.LLMClient
	PSXClient        *psx.Client
	StateStore       interfaces.StateStore
	StateReader      interfaces.StateReader
	ResultStore      interfaces.ResultStore
	AnalyzerService  interfaces.AnalyzerService
	StatementService interfaces.StatementService
	JobManager       interfaces.JobManager
	StartupTime      time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes the full service graph. configPath may be empty, in
// which case PSXLENS_CONFIG and then the binary directory are consulted.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("PSXLENS_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "psxlens.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/psxlens.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	var llmClient interfaces.LLMClient
	orClient, err := openrouter.NewClient(config.Clients.OpenRouter.APIKey,
		openrouter.WithBaseURL(config.Clients.OpenRouter.BaseURL),
		openrouter.WithTimeout(config.Clients.OpenRouter.GetTimeout()),
		openrouter.WithMaxTokens(config.Clients.OpenRouter.MaxTokens),
		openrouter.WithPDFMaxTokens(config.Clients.OpenRouter.PDFMaxTokens),
		openrouter.WithLogger(logger),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("OpenRouter client disabled - analysis will be unavailable")
		llmClient = openrouter.Disabled(err.Error())
	} else {
		llmClient = orClient
	}

	psxClient := psx.NewClient(
		psx.WithBaseURL(config.Clients.PSX.BaseURL),
		psx.WithTimeout(config.Clients.PSX.GetTimeout()),
		psx.WithRateLimit(config.Clients.PSX.RateLimit),
		psx.WithPDFDir(config.Storage.Statements.Path),
		psx.WithLogger(logger),
	)

	stateStore := analysisfs.NewStateStore(config.Storage.Results.Path, logger)
	stateReader := analysisfs.NewStateReader(config.Storage.Results.Path, logger)
	resultStore := analysisfs.NewResultStore(config.Storage.Results.Path, logger)

	promptManager := analyzer.NewPromptManager(config.Prompts.Dir)

	analyzerService := analyzer.NewService(llmClient, stateStore, promptManager, config.Models, logger)
	statementService := statements.NewService(psxClient, psxClient, resultStore, analyzerService, config.Models, logger)
	jobMgr := jobmanager.NewJobManager(statementService, logger, config.Jobs)

	a := &App{
		Config:           config,
		Logger:           logger,
		OpenRouterClient: llmClient,
		PSXClient:        psxClient,
		StateStore:       stateStore,
		StateReader:      stateReader,
		ResultStore:      resultStore,
		AnalyzerService:  analyzerService,
		StatementService: statementService,
		JobManager:       jobMgr,
		StartupTime:      startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close stops background workers.
func (a *App) Close() {
	a.JobManager.Stop()
}
