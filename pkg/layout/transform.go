package layout

import "context"

// Transform builds a new layout parameterized by a different FeaturePack
// type G against the same resolved state as l, sharing its work area by
// reference count. It does not re-run resolution: every F already
// registered in l is mapped to a G via deps.Factory (fpid, spec, dir,
// kind), reusing the already-resolved directory, and every bookkeeping map
// (patches, conflicts, resolved versions, maven aliases) is carried over
// verbatim with its values converted. Go disallows type parameters on
// methods, so this is a free function rather than a method on
// ProvisioningLayout[F].
func Transform[F FeaturePack, G FeaturePack](ctx context.Context, l *ProvisioningLayout[F], deps Dependencies[G]) (*ProvisioningLayout[G], error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	shared := l.work.Share()

	convert := func(fp F) G {
		return deps.Factory(fp.FPID(), fp.Spec(), fp.Dir(), fp.Kind())
	}

	// Convert every F seen by l (ordered plus every patch, which may not
	// appear in ordered) exactly once, keyed by FPID string, so every
	// bookkeeping map below can look up its already-converted G.
	converted := make(map[string]G, len(l.featurePacks)+len(l.allPatches))
	for _, fp := range l.ordered {
		converted[fp.FPID().String()] = convert(fp)
	}
	for key, fp := range l.allPatches {
		if _, ok := converted[key]; !ok {
			converted[key] = convert(fp)
		}
	}

	g := &ProvisioningLayout[G]{
		deps:              deps,
		work:              shared,
		config:            l.config,
		featurePacks:      make(map[string]G, len(l.featurePacks)),
		ordered:           make([]G, 0, len(l.ordered)),
		allPatches:        make(map[string]G, len(l.allPatches)),
		fpPatches:         make(map[string][]G, len(l.fpPatches)),
		transitiveDeps:    copyMap(l.transitiveDeps),
		resolvedVersions:  copyMap(l.resolvedVersions),
		mavenProducers:    make(map[string]G, len(l.mavenProducers)),
		conflicts:         copyConflictMap(l.conflicts),
		pluginLocations:   copyMap(l.pluginLocations),
		pendingPatches:    copySliceMap(l.pendingPatches),
		failOnConvergence: l.failOnConvergence,
	}

	for _, fp := range l.ordered {
		g.ordered = append(g.ordered, converted[fp.FPID().String()])
	}
	for producer, fp := range l.featurePacks {
		g.featurePacks[producer] = converted[fp.FPID().String()]
	}
	for key := range l.allPatches {
		g.allPatches[key] = converted[key]
	}
	for target, patches := range l.fpPatches {
		list := make([]G, len(patches))
		for i, p := range patches {
			list[i] = converted[p.FPID().String()]
		}
		g.fpPatches[target] = list
	}
	for key, fp := range l.mavenProducers {
		g.mavenProducers[key] = converted[fp.FPID().String()]
	}

	return g, nil
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySliceMap[V any](m map[string][]V) map[string][]V {
	out := make(map[string][]V, len(m))
	for k, v := range m {
		out[k] = append([]V(nil), v...)
	}
	return out
}

func copyConflictMap(m map[string]map[string]bool) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(m))
	for k, set := range m {
		inner := make(map[string]bool, len(set))
		for id := range set {
			inner[id] = true
		}
		out[k] = inner
	}
	return out
}
