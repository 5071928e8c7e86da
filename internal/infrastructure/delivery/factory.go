package delivery

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/liberta/backend/internal/domain/carrier"
	"github.com/liberta/backend/internal/domain/shared"
)

// NewFactory returns the carrier factory. Integrations are selected by slug;
// asking for an unknown slug is a configuration error, never a silent
// fallback.
func NewFactory(limiter shared.Limiter, fanout int, logger *zap.Logger) carrier.Factory {
	sendit := NewSenditAdapter(limiter, fanout, logger)

	return func(code carrier.Code) (carrier.Client, error) {
		switch code {
		case carrier.CodeSendit:
			return sendit, nil
		default:
			return nil, fmt.Errorf("%w: %s", carrier.ErrUnknownCode, code)
		}
	}
}
