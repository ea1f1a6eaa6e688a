package orchestrator

import (
	"context"
	"errors"

	nodex "github.com/tanpawarit/Chative-Retail-Assistant/agent/nodes/orchestrator"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/tool"
	"github.com/tanpawarit/Chative-Retail-Assistant/pkg/commerce"
)

type commerceProfiles struct {
	svc commerce.Service
}

// CommerceProfiles reads style profiles from the commerce service. A missing
// profile renders as an empty summary.
func CommerceProfiles(svc commerce.Service) nodex.Profiles {
	return commerceProfiles{svc: svc}
}

func (p commerceProfiles) ProfileSummary(ctx context.Context, customerID string) (string, error) {
	sp, err := p.svc.StyleProfile(ctx, customerID)
	if errors.Is(err, commerce.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return tool.ProfileSummary(sp), nil
}
