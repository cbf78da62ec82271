package layout

import (
	"context"

	"github.com/fplayout/fplayout/pkg/location"
	"github.com/fplayout/fplayout/pkg/pconfig"
	"github.com/fplayout/fplayout/pkg/resolve"
)

// ProvisioningPlan collects installs, uninstalls, and per-producer update
// plans, each optional.
type ProvisioningPlan struct {
	Installs   []pconfig.FeaturePackConfig
	Uninstalls []location.FPID
	Updates    []resolve.UpdatePlan
}

// IsEmpty reports whether applying this plan would change nothing.
func (p ProvisioningPlan) IsEmpty() bool {
	if len(p.Installs) != 0 || len(p.Uninstalls) != 0 {
		return false
	}
	for _, u := range p.Updates {
		if !u.IsEmpty() {
			return false
		}
	}
	return true
}

// GetUpdates asks, for each producer, its channel for the latest build
// plus patches known to the layout, and returns only the non-empty
// per-producer plans.
func (l *ProvisioningLayout[F]) GetUpdates(ctx context.Context, producers []location.ProducerSpec) (ProvisioningPlan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if producers == nil {
		for _, fp := range l.ordered {
			producers = append(producers, fp.FPID().Producer())
		}
	}

	var plan ProvisioningPlan
	for _, producer := range producers {
		fp, ok := l.featurePacks[producer.String()]
		if !ok {
			continue
		}
		installed := fp.FPID()

		channel, err := l.deps.Universe.GetChannel(ctx, installed.Location())
		if err != nil {
			return ProvisioningPlan{}, err
		}

		patches := l.fpPatches[installed.String()]
		patchFPIDs := make([]location.FPID, len(patches))
		for i, p := range patches {
			patchFPIDs[i] = p.FPID()
		}

		_, _, isDirect := l.config.FindDirect(producer)

		update, err := channel.GetUpdatePlan(ctx, resolve.UpdateRequest{Installed: installed, Patches: patchFPIDs})
		if err != nil {
			return ProvisioningPlan{}, err
		}
		update.Transitive = !isDirect
		if !update.IsEmpty() {
			plan.Updates = append(plan.Updates, update)
		}
	}
	return plan, nil
}

// GetFeaturePackUpdate returns the update plan for a single producer, or
// an empty plan if the producer is not installed.
func (l *ProvisioningLayout[F]) GetFeaturePackUpdate(ctx context.Context, producer location.ProducerSpec) (resolve.UpdatePlan, error) {
	plan, err := l.GetUpdates(ctx, []location.ProducerSpec{producer})
	if err != nil {
		return resolve.UpdatePlan{}, err
	}
	for _, u := range plan.Updates {
		if u.Installed.ProducerSpec().Equal(producer) {
			return u, nil
		}
	}
	return resolve.UpdatePlan{}, nil
}
