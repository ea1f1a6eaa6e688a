package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
)

// ClassifyIntent asks the router for the intent. The call is bounded by
// timeout like any other provider exchange.
func ClassifyIntent(ctx context.Context, in *GraphState, classifier contractx.Classifier, timeout time.Duration) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if err := in.advance(PhaseClassifying); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	c, err := classifier.Classify(callCtx, in.Req.Message, Summary(in.Context))
	cancel()
	if err != nil {
		return in.fail(fmt.Errorf("classify intent: %w", providerErr(err))), nil
	}
	in.Classification = c

	log.Ctx(ctx).Debug().
		Str("intent", string(c.Intent)).
		Float64("confidence", c.Confidence).
		Bool("ambiguous", c.Ambiguous).
		Msg("intent classified")
	return in, nil
}

// providerErr marks a deadline as the provider being unavailable.
func providerErr(err error) error {
	if !errors.Is(err, contractx.ErrProviderUnavailable) && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", contractx.ErrProviderUnavailable, err)
	}
	return err
}
