// Package config implements the broker's configuration store: the
// on-disk signing secret, the provider-configuration record, and a
// redacted view of that record suitable for logging or a status
// endpoint. This replaces the teacher's dsops.yaml-oriented
// Config/Definition, which described environments, templates, and a
// standalone policy language no longer in scope here.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	dserrors "github.com/systmms/agentcred/internal/errors"
	"github.com/systmms/agentcred/internal/persist"
	"github.com/xeipuuv/gojsonschema"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

const (
	secretFileName = "token_secret"
	configFileName = "config.json"
	secretSize     = 32

	// keyringAccount is the fixed account name under which the signing
	// secret is stored when the OS-keychain backend is enabled; one
	// secret per service name, so one account is all that's needed.
	keyringAccount = "token_secret"
)

// ProviderConfig holds provider-specific configuration: which adapter
// type to instantiate and its free-form settings. The yaml tags let an
// operator seed config.json once from a hand-written YAML file; the
// json tags are what actually gets persisted.
type ProviderConfig struct {
	Type      string                 `json:"type" yaml:"type"`
	TimeoutMs int                    `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Config    map[string]interface{} `json:"config,omitempty" yaml:",inline"`
}

// GetProviderTimeout returns the provider's configured timeout in
// milliseconds, defaulting to 30 seconds when unset.
func (p ProviderConfig) GetProviderTimeout() int {
	if p.TimeoutMs <= 0 {
		return 30000
	}
	return p.TimeoutMs
}

// Record is the persisted provider-configuration document, config.json.
// Version increments on every Save so a leader/follower pair can detect a
// change without comparing the full provider map.
type Record struct {
	Version   int                       `json:"version"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// sensitiveFields are replaced wholesale with redactedPlaceholder in
// RedactedView. Matching is by exact camelCase key name; snake_case keys
// such as the client_secret or secret_access_key the adapters read are
// not in this set and pass through unredacted.
var sensitiveFields = map[string]bool{
	"apiKey":          true,
	"clientSecret":    true,
	"refreshToken":    true,
	"secretAccessKey": true,
	"token":           true,
}

// fileExistenceFields are not secrets themselves, but reference a file
// whose existence is reported instead of its path contents.
var fileExistenceFields = map[string]bool{
	"privateKeyPath": true,
}

const redactedPlaceholder = "***REDACTED***"

var providerConfigSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"properties": {
		"type": {"type": "string", "minLength": 1}
	},
	"required": ["type"]
}`)

// ValidateProviderConfig checks raw against the minimal provider-config
// shape (a non-empty "type" field). Adapter-specific fields are opaque
// to this schema; individual adapters validate their own requirements.
func ValidateProviderConfig(raw map[string]interface{}) error {
	result, err := gojsonschema.Validate(providerConfigSchema, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msg := "invalid provider configuration"
		if errs := result.Errors(); len(errs) > 0 {
			msg = errs[0].String()
		}
		return dserrors.ConfigError{Field: "type", Message: msg}
	}
	return nil
}

// Store is the on-disk configuration store rooted at a single
// directory. The zero value is not usable; construct with New.
type Store struct {
	mu  sync.Mutex
	dir string

	// keyringService, when non-empty, switches GetOrCreateSecret from the
	// flat-file backend to the OS keychain (Secret Service on Linux,
	// Keychain on macOS, Credential Manager on Windows), addressed by this
	// service name. Grounded on the teacher's keychain_darwin.go/
	// keychain_linux.go KeychainClient, collapsed to one cross-platform
	// path since go-keyring already branches per OS internally.
	keyringService string
}

// New constructs a Store rooted at dir, using the flat-file secret
// backend. It does not create dir; call EnsureDir first.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// NewWithKeyring constructs a Store whose signing secret lives in the
// OS keychain under service rather than in a file, with dir still used
// for the provider-configuration record.
func NewWithKeyring(dir, service string) *Store {
	return &Store{dir: dir, keyringService: service}
}

// EnsureDir creates the store's root directory with restricted
// permissions. Idempotent.
func (s *Store) EnsureDir() error {
	return persist.EnsureDir(s.dir)
}

func (s *Store) secretPath() string {
	return filepath.Join(s.dir, secretFileName)
}

func (s *Store) configPath() string {
	return filepath.Join(s.dir, configFileName)
}

// GetOrCreateSecret returns the standalone 32-byte HMAC secret,
// generating and persisting one on first use. The value is stable
// across process restarts. Backed by a flat file by default, or by the
// OS keychain when the store was built with NewWithKeyring.
func (s *Store) GetOrCreateSecret() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keyringService != "" {
		return s.getOrCreateSecretKeyring()
	}
	return s.getOrCreateSecretFile()
}

func (s *Store) getOrCreateSecretFile() ([]byte, error) {
	path := s.secretPath()
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, dserrors.PersistenceError{Path: path, Err: err}
	}

	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	if err := persist.WriteFileAtomic(path, secret); err != nil {
		return nil, dserrors.PersistenceError{Path: path, Err: err}
	}
	return secret, nil
}

func (s *Store) getOrCreateSecretKeyring() ([]byte, error) {
	encoded, err := keyring.Get(s.keyringService, keyringAccount)
	if err == nil {
		return base64.StdEncoding.DecodeString(encoded)
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return nil, dserrors.PersistenceError{Path: "keyring:" + s.keyringService, Err: err}
	}

	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	encoded = base64.StdEncoding.EncodeToString(secret)
	if err := keyring.Set(s.keyringService, keyringAccount, encoded); err != nil {
		return nil, dserrors.PersistenceError{Path: "keyring:" + s.keyringService, Err: err}
	}
	return secret, nil
}

// Load reads the provider-configuration record. A missing file yields
// an empty Record and a nil error.
func (s *Store) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (Record, error) {
	rec := Record{Providers: make(map[string]ProviderConfig)}
	loaded, err := persist.ReadJSON(s.configPath(), &rec)
	if err != nil {
		return Record{}, dserrors.PersistenceError{Path: s.configPath(), Err: err}
	}
	if !loaded || rec.Providers == nil {
		rec.Providers = make(map[string]ProviderConfig)
	}
	return rec, nil
}

// Save persists the provider-configuration record, overwriting whatever
// was there before, and bumps Version so readers can detect the change.
func (s *Store) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked()
	if err != nil {
		return err
	}
	rec.Version = current.Version + 1

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := persist.WriteFileAtomic(s.configPath(), data); err != nil {
		return dserrors.PersistenceError{Path: s.configPath(), Err: err}
	}
	return nil
}

// ImportRecord persists rec exactly as given, including its Version, rather
// than bumping a locally-owned counter. This is the follower-side
// counterpart to Save: a follower adopts the leader's authoritative version
// number instead of incrementing its own, so the two sides' version numbers
// never diverge.
func (s *Store) ImportRecord(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := persist.WriteFileAtomic(s.configPath(), data); err != nil {
		return dserrors.PersistenceError{Path: s.configPath(), Err: err}
	}
	return nil
}

// Version returns the record's current monotonic version, for leader/
// follower sync comparisons.
func (s *Store) Version() (int, error) {
	rec, err := s.Load()
	if err != nil {
		return 0, err
	}
	return rec.Version, nil
}

// GetProvider returns a single provider's configuration.
func (s *Store) GetProvider(name string) (ProviderConfig, bool, error) {
	rec, err := s.Load()
	if err != nil {
		return ProviderConfig{}, false, err
	}
	cfg, ok := rec.Providers[name]
	return cfg, ok, nil
}

// SetProvider upserts a single provider's configuration and persists
// the record.
func (s *Store) SetProvider(name string, cfg ProviderConfig) error {
	s.mu.Lock()
	rec, err := s.loadLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	rec.Providers[name] = cfg
	s.mu.Unlock()
	return s.Save(rec)
}

// SeedFromYAML loads a human-authored YAML document of provider
// configurations and persists it as config.json, but only if no
// config.json exists yet — it never overwrites a running store's
// state with a stale seed file.
func (s *Store) SeedFromYAML(path string) error {
	s.mu.Lock()
	if _, err := os.Stat(s.configPath()); err == nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var seed struct {
		Providers map[string]ProviderConfig `yaml:"providers"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return dserrors.ConfigError{Field: "providers", Message: "invalid YAML syntax in seed file: " + err.Error()}
	}

	return s.Save(Record{Providers: seed.Providers})
}

// RedactedView renders rec with every sensitive field replaced by a
// fixed placeholder, and every file-path field replaced with a report
// of whether the referenced file exists. Safe to log or expose over a
// status endpoint.
func RedactedView(rec Record) map[string]interface{} {
	out := make(map[string]interface{}, len(rec.Providers))
	for name, cfg := range rec.Providers {
		entry := map[string]interface{}{
			"type":       cfg.Type,
			"timeout_ms": cfg.GetProviderTimeout(),
		}
		redactedConfig := make(map[string]interface{}, len(cfg.Config))
		for k, v := range cfg.Config {
			switch {
			case sensitiveFields[k]:
				redactedConfig[k] = redactedPlaceholder
			case fileExistenceFields[k]:
				redactedConfig[k] = fileExistenceReport(v)
			default:
				redactedConfig[k] = v
			}
		}
		entry["config"] = redactedConfig
		out[name] = entry
	}
	return out
}

func fileExistenceReport(v interface{}) map[string]interface{} {
	path, _ := v.(string)
	_, err := os.Stat(path)
	return map[string]interface{}{"path_configured": path != "", "exists": err == nil}
}
