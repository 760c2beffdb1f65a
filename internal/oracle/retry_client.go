package oracle

import (
	"context"

	"github.com/omnandre07/SchemeSahayak/internal/apperrors"
	"github.com/omnandre07/SchemeSahayak/internal/catalog"
	"github.com/omnandre07/SchemeSahayak/internal/logging"
	"github.com/omnandre07/SchemeSahayak/internal/profile"
)

// retryOracle wraps another Oracle with bounded exponential-backoff retries
// for transient failures. Malformed responses are not retried: a model that
// answered garbage once will usually answer garbage again, and the caller
// already degrades gracefully on an empty result.
type retryOracle struct {
	inner  Oracle
	config apperrors.RetryConfig
	logger logging.Logger
}

// NewRetryOracle wraps an Oracle with retry behavior.
func NewRetryOracle(inner Oracle, config apperrors.RetryConfig) Oracle {
	return &retryOracle{
		inner:  inner,
		config: config,
		logger: logging.NewComponentLogger("oracle-retry"),
	}
}

func (r *retryOracle) Extract(ctx context.Context, text, language string, current profile.UserContext) (profile.Delta, error) {
	return apperrors.RetryWithResult(ctx, r.config, r.logger, func(ctx context.Context) (profile.Delta, error) {
		return r.inner.Extract(ctx, text, language, current)
	})
}

func (r *retryOracle) Reason(ctx context.Context, current profile.UserContext, programs []catalog.Program) ([]Candidate, error) {
	return apperrors.RetryWithResult(ctx, r.config, r.logger, func(ctx context.Context) ([]Candidate, error) {
		return r.inner.Reason(ctx, current, programs)
	})
}

func (r *retryOracle) PhraseQuestion(ctx context.Context, attribute, language string) (string, error) {
	return apperrors.RetryWithResult(ctx, r.config, r.logger, func(ctx context.Context) (string, error) {
		return r.inner.PhraseQuestion(ctx, attribute, language)
	})
}
