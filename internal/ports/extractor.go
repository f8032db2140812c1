package ports

import (
	"context"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
)

type Extractor interface {
	// Extract turns a text or image payload into a raw candidate record of the
	// given kind. It returns nil, nil when the service answered but found no
	// amount (expenses) or no goal subject (goals).
	Extract(ctx context.Context, kind domain.Kind, payload domain.Payload, ref time.Time) (*domain.RawExtraction, error)
}
