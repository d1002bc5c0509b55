// Package checkout manages isolated per-session working copies of the
// surrounding repo: add(branch), remove(path), list(), prune_orphans(),
// backed by a manifest persisted under the user's home directory so
// known worktrees survive a restart.
package checkout

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/hydra-mux/hydra/scm"
)

// Entry describes one known checkout.
type Entry struct {
	Branch    string `yaml:"branch"`
	Path      string `yaml:"path"`
	CreatedAt string `yaml:"created_at"`
}

type manifest struct {
	Entries []Entry `yaml:"entries"`
}

// Manager creates, removes, and lists checkouts for one repo under a
// fixed worktree base directory.
type Manager struct {
	repoRoot string
	repoName string
	base     string // ${HOME}/.hydra/worktrees/<repo-name>
	log      *logrus.Entry
}

// New builds a Manager rooted at repoRoot, storing worktrees under
// ${home}/.hydra/worktrees/<repo-name>.
func New(repoRoot, home string, log *logrus.Entry) *Manager {
	name := scm.RepoName(repoRoot)
	return &Manager{
		repoRoot: repoRoot,
		repoName: name,
		base:     filepath.Join(home, ".hydra", "worktrees", name),
		log:      log,
	}
}

func (m *Manager) manifestPath() string {
	return filepath.Join(m.base, "manifest.yml")
}

func (m *Manager) loadManifest() (manifest, error) {
	var man manifest
	data, err := os.ReadFile(m.manifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return man, nil
		}
		return man, err
	}
	if err := yaml.Unmarshal(data, &man); err != nil {
		return manifest{}, err
	}
	return man, nil
}

func (m *Manager) saveManifest(man manifest) error {
	if err := os.MkdirAll(m.base, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(man)
	if err != nil {
		return err
	}
	return os.WriteFile(m.manifestPath(), data, 0o644)
}

// Add creates or attaches to a checkout for branch. Branch names are used
// verbatim as a directory path component — a slash in the name nests
// directories rather than being sanitized. A warning is logged so the
// caveat is visible without changing behavior.
func (m *Manager) Add(branch string) (string, error) {
	if strings.Contains(branch, "/") && m.log != nil {
		m.log.WithField("branch", branch).Warn("branch name contains '/': used verbatim as a nested directory component")
	}

	path := filepath.Join(m.base, branch)
	man, err := m.loadManifest()
	if err != nil {
		man = manifest{}
	}
	for _, e := range man.Entries {
		if e.Branch == branch {
			return e.Path, nil
		}
	}
	if _, err := os.Stat(path); err == nil {
		// Directory exists but the manifest doesn't recognize it: an
		// orphan from a prior crash. Don't reuse it out from under
		// whatever left it there.
		path = m.disambiguate(branch)
	}

	if err := os.MkdirAll(m.base, 0o755); err != nil {
		return "", err
	}
	if err := scm.AddWorktree(m.repoRoot, path, branch); err != nil {
		return "", err
	}

	man.Entries = append(man.Entries, Entry{Branch: branch, Path: path, CreatedAt: time.Now().UTC().Format(time.RFC3339)})
	if err := m.saveManifest(man); err != nil {
		return path, err
	}
	return path, nil
}

// Remove deletes a checkout at path, best-effort, and drops it from the
// manifest. Failures are logged, not surfaced: the session is still
// removed from state regardless of whether its worktree cleaned up.
func (m *Manager) Remove(path string) error {
	if err := scm.RemoveWorktree(m.repoRoot, path); err != nil {
		if m.log != nil {
			m.log.WithError(err).WithField("path", path).Warn("failed to remove worktree")
		}
	}

	man, err := m.loadManifest()
	if err != nil {
		return err
	}
	filtered := man.Entries[:0]
	for _, e := range man.Entries {
		if e.Path != path {
			filtered = append(filtered, e)
		}
	}
	man.Entries = filtered
	return m.saveManifest(man)
}

// List returns every checkout recorded in the manifest.
func (m *Manager) List() ([]Entry, error) {
	man, err := m.loadManifest()
	if err != nil {
		return nil, err
	}
	return man.Entries, nil
}

// PruneOrphans removes manifest entries whose on-disk directory is
// missing, and on-disk directories under base not present in the
// manifest (stale from a prior crash). Only called at startup; checkouts
// are otherwise preserved across a graceful shutdown.
func (m *Manager) PruneOrphans() error {
	man, err := m.loadManifest()
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(man.Entries))
	var kept []Entry
	for _, e := range man.Entries {
		if _, err := os.Stat(e.Path); err != nil {
			if m.log != nil {
				m.log.WithField("path", e.Path).Info("pruning orphaned manifest entry")
			}
			continue
		}
		known[e.Path] = true
		kept = append(kept, e)
	}
	man.Entries = kept

	entries, err := os.ReadDir(m.base)
	if err != nil {
		if os.IsNotExist(err) {
			return m.saveManifest(man)
		}
		return err
	}
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		path := filepath.Join(m.base, de.Name())
		if known[path] {
			continue
		}
		if m.log != nil {
			m.log.WithField("path", path).Info("removing orphaned worktree directory")
		}
		_ = scm.RemoveWorktree(m.repoRoot, path)
		_ = os.RemoveAll(path)
	}

	return m.saveManifest(man)
}

// disambiguate returns a uuid-suffixed candidate path for a branch whose
// directory collides with an existing, unrecognized directory — used so
// a stale orphan never silently merges with a new session's checkout.
func (m *Manager) disambiguate(branch string) string {
	return filepath.Join(m.base, branch+"-"+uuid.NewString()[:8])
}
