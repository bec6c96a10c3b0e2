// Package credentials resolves and persists named API secrets.
package credentials

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/pkg/filesystem"
	"github.com/doeshing/conv/internal/pkg/fslock"
	"github.com/doeshing/conv/internal/ports"
)

// DefaultFileName is the credential file inside the conv config directory.
const DefaultFileName = "credentials.yaml"

// DefaultEnvFileName is the dotenv file loaded at startup when present.
const DefaultEnvFileName = "conv.env"

const apiKeyField = "API_KEY"

// sections maps a credential name to its key/value pairs. Unknown keys are
// kept so a rewrite never drops data another tool put there.
type sections map[string]map[string]string

// FileStore implements ports.CredentialStore on top of a YAML file.
type FileStore struct {
	fs       afero.Fs
	path     string
	prompter ports.CredentialPrompter
	log      ports.Logger

	mu    sync.Mutex
	cache map[string]domain.Credential
}

// NewFileStore builds a store at path, or ~/.config/conv/credentials.yaml when path is empty.
// A nil prompter behaves as a non-interactive terminal.
func NewFileStore(fs afero.Fs, path string, prompter ports.CredentialPrompter, log ports.Logger) *FileStore {
	if path == "" {
		path = DefaultPath()
	}
	return &FileStore{
		fs:       fs,
		path:     filesystem.ExpandPath(path),
		prompter: prompter,
		log:      log,
		cache:    make(map[string]domain.Credential),
	}
}

// DefaultPath returns the default credential file location.
func DefaultPath() string {
	return filepath.Join(filesystem.ConfigDir(), DefaultFileName)
}

// LoadEnvFile exports the variables of a dotenv file into the process
// environment. Variables already set win, and a missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = filepath.Join(filesystem.ConfigDir(), DefaultEnvFileName)
	}
	path = filesystem.ExpandPath(path)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat env file %s", path)
	}
	return errors.Wrapf(godotenv.Load(path), "load env file %s", path)
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Resolve implements ports.CredentialStore.
func (s *FileStore) Resolve(ctx context.Context, name string) (domain.Credential, error) {
	name = domain.NormalizeCredentialName(name)
	if name == "" {
		return domain.Credential{}, &domain.ConfigError{Op: "resolve credential", Err: errors.New("empty credential name")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cred, ok := s.lookup(ctx, name); ok {
		return cred, nil
	}

	if s.prompter == nil {
		return domain.Credential{}, &domain.ConfigError{Op: "resolve credential " + name, Err: domain.ErrNonInteractive}
	}
	value, err := s.prompter.PromptSecret(ctx, name)
	if err != nil {
		return domain.Credential{}, &domain.ConfigError{Op: "resolve credential " + name, Err: err}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Credential{}, &domain.ConfigError{Op: "resolve credential " + name, Err: errors.New("empty value entered")}
	}

	cred := domain.Credential{Name: name, Value: value, Source: domain.SourcePrompt}
	if err := s.set(ctx, name, value); err != nil {
		cred.PersistErr = err
		s.warn("credential not persisted", err)
	}
	s.cache[name] = cred
	return cred, nil
}

// Lookup implements ports.CredentialStore.
func (s *FileStore) Lookup(ctx context.Context, name string) (domain.Credential, bool) {
	name = domain.NormalizeCredentialName(name)
	if name == "" {
		return domain.Credential{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(ctx, name)
}

// lookup checks the environment, then the cache, then the file. Callers hold mu.
func (s *FileStore) lookup(ctx context.Context, name string) (domain.Credential, bool) {
	if value, ok := os.LookupEnv(domain.CredentialEnvVar(name)); ok && strings.TrimSpace(value) != "" {
		return domain.Credential{Name: name, Value: strings.TrimSpace(value), Source: domain.SourceEnv}, true
	}

	if cached, ok := s.cache[name]; ok {
		return cached, true
	}

	stored, err := s.load(ctx)
	if err != nil {
		s.warn("credential file unreadable", err)
	}
	if value := stored[name][apiKeyField]; value != "" {
		cred := domain.Credential{Name: name, Value: value, Source: domain.SourceFile}
		s.cache[name] = cred
		return cred, true
	}
	return domain.Credential{}, false
}

// Set implements ports.CredentialStore. The value replaces any stored one.
func (s *FileStore) Set(ctx context.Context, name, value string) error {
	name = domain.NormalizeCredentialName(name)
	if name == "" {
		return errors.New("credential name is required")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.Errorf("credential %s: empty value", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.set(ctx, name, value); err != nil {
		return err
	}
	s.cache[name] = domain.Credential{Name: name, Value: value, Source: domain.SourceFile}
	return nil
}

func (s *FileStore) load(ctx context.Context) (sections, error) {
	var stored sections
	err := fslock.Shared(ctx, s.path, func() error {
		var err error
		stored, err = s.read()
		return err
	})
	return stored, err
}

func (s *FileStore) set(ctx context.Context, name, value string) error {
	err := fslock.Exclusive(ctx, s.path, func() error {
		stored, err := s.read()
		if err != nil {
			return err
		}
		if stored[name] == nil {
			stored[name] = make(map[string]string)
		}
		stored[name][apiKeyField] = value
		return s.writeAtomic(stored)
	})
	return errors.Wrapf(err, "persist credential %s to %s", name, s.path)
}

func (s *FileStore) read() (sections, error) {
	raw, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return sections{}, nil
		}
		return nil, errors.Wrap(err, "read credentials")
	}
	stored := sections{}
	if err := yaml.Unmarshal(raw, &stored); err != nil {
		return nil, errors.Wrap(err, "parse credentials")
	}
	if stored == nil {
		stored = sections{}
	}
	return stored, nil
}

// writeAtomic replaces the file via a synced temp file in the same directory.
func (s *FileStore) writeAtomic(stored sections) error {
	raw, err := yaml.Marshal(stored)
	if err != nil {
		return errors.Wrap(err, "encode credentials")
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, domain.DirectoryPermissions); err != nil {
		return errors.Wrap(err, "create credential dir")
	}
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = s.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := s.fs.Chmod(tmpName, domain.SecureFilePermissions); err != nil {
		return errors.Wrap(err, "chmod temp file")
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		return errors.Wrap(err, "replace credentials")
	}
	committed = true
	return nil
}

func (s *FileStore) warn(msg string, err error) {
	if s.log == nil {
		return
	}
	s.log.Warn(msg, map[string]interface{}{"path": s.path, "error": err.Error()})
}

var _ ports.CredentialStore = (*FileStore)(nil)
