package resolve

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fplayout/fplayout/pkg/transports/ssh"
)

// SFTPArtifactResolver is an ArtifactResolver that fetches feature-pack and
// plugin archive bytes over SFTP and caches them on the local filesystem
//.
type SFTPArtifactResolver struct {
	client   *ssh.SSHClient
	cacheDir string

	mu    sync.Mutex
	cache map[string]string
}

// NewSFTPArtifactResolver connects to the host described by cfg and caches
// downloaded artifacts under cacheDir.
func NewSFTPArtifactResolver(ctx context.Context, cfg *ssh.Config, cacheDir string) (*SFTPArtifactResolver, error) {
	client, err := ssh.NewSSHClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("sftp artifact resolver: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("sftp artifact resolver: connect: %w", err)
	}

	return &SFTPArtifactResolver{
		client:   client,
		cacheDir: cacheDir,
		cache:    make(map[string]string),
	}, nil
}

// Resolve downloads the artifact at the sftp:// loc (or a bare remote
// path) into the cache, returning the local path. Repeated calls for the
// same loc are served from the in-memory cache without re-downloading.
func (r *SFTPArtifactResolver) Resolve(ctx context.Context, loc string) (string, error) {
	r.mu.Lock()
	if cached, ok := r.cache[loc]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	remotePath := loc
	if u, err := url.Parse(loc); err == nil && u.Scheme == "sftp" {
		remotePath = u.Path
	}

	localPath := filepath.Join(r.cacheDir, sanitizeCacheName(remotePath))

	if err := r.client.DownloadFile(ctx, remotePath, localPath); err != nil {
		return "", fmt.Errorf("sftp artifact resolver: download %s: %w", remotePath, err)
	}

	r.mu.Lock()
	r.cache[loc] = localPath
	r.mu.Unlock()

	return localPath, nil
}

// Close disconnects the underlying SSH client.
func (r *SFTPArtifactResolver) Close(ctx context.Context) error {
	return r.client.Disconnect()
}

func sanitizeCacheName(remotePath string) string {
	trimmed := strings.TrimPrefix(remotePath, "/")
	return strings.ReplaceAll(trimmed, "/", "_")
}

// LocalArtifactResolver is an ArtifactResolver for artifacts already
// present on the local filesystem, used for the "local" repo in tests and
// single-host setups where no remote fetch is needed.
type LocalArtifactResolver struct {
	Root string
}

// Resolve joins loc onto Root and verifies the result is still rooted
// under Root.
func (r *LocalArtifactResolver) Resolve(ctx context.Context, loc string) (string, error) {
	joined := filepath.Join(r.Root, loc)
	rel, err := filepath.Rel(r.Root, joined)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("local artifact resolver: %q escapes root %q", loc, r.Root)
	}
	return joined, nil
}
