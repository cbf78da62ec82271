// Package workarea implements the scoped, reference-counted working
// directory shared by a ProvisioningLayout and any views transformed from
// it: one physical directory, subdirectories created lazily, released
// exactly once the last strong reference closes.
package workarea

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/fplayout/fplayout/pkg/perrors"
)

const (
	dirPatched   = "patched"
	dirPlugins   = "plugins"
	dirResources = "resources"
	dirTmp       = "tmp"
	dirStaged    = "staged"
)

// shared is the refcounted physical resource. All Handle values produced
// from the same Acquire call (the root handle plus every transformed view)
// point at the same *shared.
type shared struct {
	root string
	refs int64
}

// Handle is a scoped, refcounted handle onto a work-area directory.
// Acquire returns the root handle; Share returns additional handles onto
// the same physical directory, each of which must itself be Closed exactly
// once: k transformed views require exactly k+1 closes to remove the
// directory.
type Handle struct {
	mu     sync.Mutex
	s      *shared
	closed bool
}

// Acquire creates a fresh work-area directory under baseDir (or the OS temp
// dir if baseDir is empty), named with a uuid so concurrent layouts never
// collide, and returns the root Handle holding the first strong reference.
func Acquire(baseDir string) (*Handle, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	root := filepath.Join(baseDir, "fplayout-"+uuid.NewString())
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, perrors.Wrap(perrors.ReasonMkdirFailed, "creating work area root", err).WithPath(root)
	}
	s := &shared{root: root, refs: 1}
	return &Handle{s: s}, nil
}

// Share returns a new Handle onto the same physical directory, incrementing
// the reference count. Used by ProvisioningLayout.Transform: the
// transformed view shares the work area with its source.
func (h *Handle) Share() *Handle {
	atomic.AddInt64(&h.s.refs, 1)
	return &Handle{s: h.s}
}

// Root returns the work-area root directory path.
func (h *Handle) Root() string { return h.s.root }

// Patched returns (creating if needed) the patched/<fpid-path> directory
// for a feature pack that requires patching.
func (h *Handle) Patched(fpidPath string) (string, error) {
	return h.ensureDir(filepath.Join(dirPatched, fpidPath))
}

// Plugins returns (creating if needed) the flat plugins/ aggregation
// directory.
func (h *Handle) Plugins() (string, error) {
	return h.ensureDir(dirPlugins)
}

// Resources returns (creating if needed) the merged resources/ tree.
func (h *Handle) Resources() (string, error) {
	return h.ensureDir(dirResources)
}

// Tmp returns (creating if needed) the caller-visible tmp/ scratch
// directory, optionally joined with further path segments.
func (h *Handle) Tmp(parts ...string) (string, error) {
	return h.ensureDir(filepath.Join(append([]string{dirTmp}, parts...)...))
}

// HasResources reports whether the resources/ aggregate has any content.
func (h *Handle) HasResources() bool {
	return dirNonEmpty(filepath.Join(h.s.root, dirResources))
}

// HasPlugins reports whether the plugins/ aggregate has any content.
func (h *Handle) HasPlugins() bool {
	return dirNonEmpty(filepath.Join(h.s.root, dirPlugins))
}

func dirNonEmpty(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

// NewStagedDir acquires the staged/ output directory, emptying it first if
// it already holds content from a previous build.
func (h *Handle) NewStagedDir() (string, error) {
	staged := filepath.Join(h.s.root, dirStaged)
	if err := os.RemoveAll(staged); err != nil {
		return "", perrors.Wrap(perrors.ReasonCopyFailed, "clearing staged dir", err).WithPath(staged)
	}
	if err := os.MkdirAll(staged, 0o755); err != nil {
		return "", perrors.Wrap(perrors.ReasonMkdirFailed, "creating staged dir", err).WithPath(staged)
	}
	return staged, nil
}

// Reset clears every subdirectory but keeps the root, used at the start of
// every rebuild. Failures during deletion are attempted best-effort and do
// not stop the reset from continuing to the next subdirectory: I/O errors
// during cleanup are swallowed rather than surfaced.
func (h *Handle) Reset() {
	for _, sub := range []string{dirPatched, dirPlugins, dirResources, dirTmp, dirStaged} {
		_ = os.RemoveAll(filepath.Join(h.s.root, sub))
	}
}

func (h *Handle) ensureDir(rel string) (string, error) {
	full := filepath.Join(h.s.root, rel)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", perrors.Wrap(perrors.ReasonMkdirFailed, "creating work area subdirectory", err).WithPath(full)
	}
	return full, nil
}

// CopyFeaturePack copies src's resources/ and plugins/ subtrees into the
// work area's global aggregates, overriding any path already copied by an
// earlier (dependency-order-preceding) feature pack: later copies win.
func (h *Handle) CopyFeaturePack(src string) error {
	if err := h.overlayIfExists(filepath.Join(src, "resources"), dirResources); err != nil {
		return err
	}
	if err := h.overlayIfExists(filepath.Join(src, "plugins"), dirPlugins); err != nil {
		return err
	}
	return nil
}

// OverlayPatch overlays a patch's declared subtrees according to §4.3's
// precedence table. localOnly lists subtree names copied only into the
// feature pack's own patched directory; global lists subtree names copied
// into both the patched directory and the corresponding work-area
// aggregate.
func (h *Handle) OverlayPatch(patchDir, targetPatchedDir string, localOnly, global []string) error {
	for _, name := range localOnly {
		src := filepath.Join(patchDir, name)
		if err := copyTreeIfExists(src, filepath.Join(targetPatchedDir, name)); err != nil {
			return perrors.Wrap(perrors.ReasonCopyFailed, "overlaying patch subtree into patched dir", err).WithPath(src)
		}
	}
	for _, name := range global {
		src := filepath.Join(patchDir, name)
		if err := copyTreeIfExists(src, filepath.Join(targetPatchedDir, name)); err != nil {
			return perrors.Wrap(perrors.ReasonCopyFailed, "overlaying patch subtree into patched dir", err).WithPath(src)
		}
		aggDir := dirResources
		if name == "plugins" {
			aggDir = dirPlugins
		}
		if err := h.overlayIfExists(src, aggDir); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handle) overlayIfExists(src, destRel string) error {
	dest, err := h.ensureDir(destRel)
	if err != nil {
		return err
	}
	return copyTreeIfExists(src, dest)
}

// copyTreeIfExists recursively copies src onto dest, skipping silently if
// src does not exist (a feature pack need not carry every well-known
// subdirectory). Existing files at dest are overwritten: "last write wins".
func copyTreeIfExists(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return perrors.Wrap(perrors.ReasonReadDirFailed, "statting copy source", err).WithPath(src)
	}
	if !info.IsDir() {
		return copyFile(src, dest)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return perrors.Wrap(perrors.ReasonReadDirFailed, "walking copy source", err).WithPath(path)
		}
		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			return relErr
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return perrors.Wrap(perrors.ReasonMkdirFailed, "creating copy destination", err).WithPath(target)
			}
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return perrors.Wrap(perrors.ReasonMkdirFailed, "creating copy destination parent", err).WithPath(filepath.Dir(dest))
	}
	in, err := os.Open(src)
	if err != nil {
		return perrors.Wrap(perrors.ReasonCopyFailed, "opening copy source", err).WithPath(src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return perrors.Wrap(perrors.ReasonCopyFailed, "statting copy source", err).WithPath(src)
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return perrors.Wrap(perrors.ReasonCopyFailed, "creating copy destination", err).WithPath(dest)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return perrors.Wrap(perrors.ReasonCopyFailed, fmt.Sprintf("copying %s to %s", src, dest), err).WithPath(dest)
	}
	return nil
}

// Close decrements the reference count; the final close removes the
// physical directory. Double-close on the same Handle is a no-op. I/O
// errors during deletion are swallowed after a best-effort attempt: close
// must never throw.
func (h *Handle) Close(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	remaining := atomic.AddInt64(&h.s.refs, -1)
	if remaining <= 0 {
		_ = os.RemoveAll(h.s.root)
	}
	return nil
}
