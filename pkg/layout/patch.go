package layout

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fplayout/fplayout/pkg/location"
	"github.com/fplayout/fplayout/pkg/perrors"
)

// Subtree names carried by a feature-pack archive. localOnlySubtrees are overlaid into a patched F's own
// directory only; globalSubtrees are overlaid into both the patched
// directory and the corresponding work-area aggregate.
var (
	localOnlySubtrees = []string{"packages", "features", "feature-groups", "configs", "layers"}
	globalSubtrees    = []string{"plugins", "resources"}
)

// applyPatches walks l.ordered and, for every F with pending patch
// attachments, resolves and overlays them.
func (l *ProvisioningLayout[F]) applyPatches(ctx context.Context) error {
	for i, fp := range l.ordered {
		producer := fp.FPID().Producer()
		pending := l.pendingPatches[producer.String()]
		if len(pending) == 0 {
			continue
		}
		for _, patchFPID := range pending {
			if err := l.loadPatch(ctx, patchFPID, fp.FPID()); err != nil {
				return err
			}
		}
		if err := l.overlayPatchesOnto(producer, fp); err != nil {
			return err
		}
		l.ordered[i] = fp
	}
	return nil
}

// loadPatch resolves patchFPID as an F of type PATCH, verifies it declares
// itself a patch, recursively loads the patches it itself declares, and
// appends it to fpPatches[target]. A patch is loaded at most once, keyed
// by FPID: a repeat load is a no-op.
func (l *ProvisioningLayout[F]) loadPatch(ctx context.Context, patchFPID, target location.FPID) error {
	key := patchFPID.String()
	if _, ok := l.allPatches[key]; ok {
		return nil
	}

	patchF, err := l.resolveFeaturePack(ctx, patchFPID.Location(), PatchType)
	if err != nil {
		return err
	}
	if !patchF.Spec().IsPatch {
		return perrors.New(perrors.ReasonPatchNotApplicable, "referenced feature pack does not declare itself a patch").WithFPID(key)
	}
	if !l.patchTargetsProducer(patchF.Spec().PatchFor, target.Producer()) {
		return perrors.New(perrors.ReasonPatchNotApplicable, "patch target is not installed").
			WithFPID(key).WithProducer(patchF.Spec().PatchFor)
	}

	l.allPatches[key] = patchF

	for _, dep := range patchF.Spec().PatchDeps {
		childFPID, err := l.resolvePatchDepFPID(ctx, dep)
		if err != nil {
			return err
		}
		if err := l.loadPatch(ctx, childFPID, target); err != nil {
			return err
		}
	}
	l.fpPatches[target.String()] = append(l.fpPatches[target.String()], patchF)
	return nil
}

func (l *ProvisioningLayout[F]) resolvePatchDepFPID(ctx context.Context, dep DependencySpec) (location.FPID, error) {
	loc := dep.Location()
	if loc.IsCoordinateForm() {
		fpid, err := l.deps.Universe.ResolveLatestBuild(ctx, loc)
		return fpid, err
	}
	normalized, err := l.normalize(ctx, loc)
	if err != nil {
		return location.FPID{}, err
	}
	return normalized.ToFPID()
}

// patchTargetsProducer reports whether a patch's declared PatchFor string
// names target. PatchFor may be a bare producer name or a
// ProducerSpec.String() form ("universe:producer"); either matches.
func (l *ProvisioningLayout[F]) patchTargetsProducer(patchFor string, target location.ProducerSpec) bool {
	if patchFor == target.String() {
		return true
	}
	if patchFor == target.Producer {
		return true
	}
	if idx := strings.LastIndex(target.String(), ":"); idx >= 0 && patchFor == target.String()[idx+1:] {
		return true
	}
	return false
}

// overlayPatchesOnto copies fp's directory into patched/<fpid> and overlays
// every patch in fpPatches[fp.FPID()] in insertion order, then redirects
// fp's directory pointer to the patched copy. Last write wins:
// later patches in the list shadow earlier ones.
func (l *ProvisioningLayout[F]) overlayPatchesOnto(producer location.ProducerSpec, fp F) error {
	fpid := fp.FPID()
	patches := l.fpPatches[fpid.String()]
	if len(patches) == 0 {
		return nil
	}

	patchedDir, err := l.work.Patched(fpidPath(fpid))
	if err != nil {
		return err
	}
	if err := copyBaseIntoPatched(fp.Dir(), patchedDir); err != nil {
		return err
	}

	for _, patch := range patches {
		if err := l.work.OverlayPatch(patch.Dir(), patchedDir, localOnlySubtrees, globalSubtrees); err != nil {
			return err
		}
	}

	if core, ok := any(fp).(interface{ SetDir(string) }); ok {
		core.SetDir(patchedDir)
	}
	return nil
}

// copyBaseIntoPatched copies an F's original directory into its patched
// copy before any patch overlay is applied, so unpatched paths keep their
// base content.
func copyBaseIntoPatched(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return perrors.Wrap(perrors.ReasonReadDirFailed, "walking feature pack directory", err).WithPath(path)
		}
		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			return relErr
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFileInto(path, target)
	})
}

func copyFileInto(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return perrors.Wrap(perrors.ReasonMkdirFailed, "creating patched directory", err).WithPath(filepath.Dir(dest))
	}
	in, err := os.Open(src)
	if err != nil {
		return perrors.Wrap(perrors.ReasonCopyFailed, "opening base file", err).WithPath(src)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return perrors.Wrap(perrors.ReasonCopyFailed, "statting base file", err).WithPath(src)
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return perrors.Wrap(perrors.ReasonCopyFailed, "creating patched file", err).WithPath(dest)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return perrors.Wrap(perrors.ReasonCopyFailed, "copying base file into patched dir", err).WithPath(dest)
	}
	return nil
}

func fpidPath(fpid location.FPID) string {
	loc := fpid.Location()
	parts := []string{loc.Universe.String(), loc.Producer, loc.Channel, loc.Build}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}
