package worker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/opsfleet/workspace-worker/internal/account"
	"github.com/opsfleet/workspace-worker/internal/domain"
	"github.com/opsfleet/workspace-worker/internal/retry"
)

// handshake announces the worker's identity to the control-plane under
// until-success retry and blocks until it is accepted. A successful
// handshake only means the control-plane is aware of this worker's
// capabilities — it does not imply work is available.
func handshake(ctx context.Context, client account.Client, identity domain.Identity, log zerolog.Logger, metrics Metrics) error {
	_, err := retry.UntilSuccess(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, client.WorkerHandshake(ctx, identity.Region, identity.Version, identity.Operation)
	}, func(attempt int, err error) {
		log.Warn().Int("attempt", attempt).Err(err).Msg("handshake retrying")
		if metrics != nil {
			metrics.RecordRetry()
		}
	})
	return err
}
