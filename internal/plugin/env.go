package plugin

import (
	"fmt"
	"time"

	"qbank/internal/config"
	"qbank/internal/downloader"
	"qbank/internal/irt"
	"qbank/internal/logger"
	"qbank/internal/pdftext"
	"qbank/internal/sqlgen"
	"qbank/internal/validator"
)

// Env holds the leaves every plugin shares. All of them are safe for
// concurrent use by plugins running in the same batch.
type Env struct {
	Config     *config.Config
	Logger     *logger.Logger
	Downloader *downloader.Downloader
	Estimator  *irt.Estimator
	Writer     *sqlgen.Writer
	Extractor  pdftext.Extractor
	Validator  *validator.QuestionValidator
	Now        func() time.Time
}

// NewEnv wires the shared leaves from cfg.
func NewEnv(cfg *config.Config, log *logger.Logger) (*Env, error) {
	if log == nil {
		log = logger.Discard()
	}

	writer, err := sqlgen.NewWriter(cfg.Pipeline.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create script writer: %w", err)
	}

	return &Env{
		Config:     cfg,
		Logger:     log,
		Downloader: downloader.New(cfg.Download, log.With("component", "downloader")),
		Estimator:  irt.NewEstimator(cfg.IRT),
		Writer:     writer,
		Extractor:  pdftext.NewPDF(),
		Validator:  validator.NewQuestionValidator(validator.DefaultRules()),
		Now:        time.Now,
	}, nil
}
