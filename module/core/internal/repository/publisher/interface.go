package publisher

import (
	"context"

	"github.com/nandanugg/opstate/module/core/domain"
)

type DiagnosticPublisher interface {
	PublishInvalidTransition(ctx context.Context, d *domain.InvalidTransition) error
}
