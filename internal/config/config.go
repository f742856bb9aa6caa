// Package config loads the set of managed targets.
//
// Targets come from a YAML file when REPODASH_TARGETS_FILE is set, otherwise
// from the legacy environment variable pairs (GITHUB_TOKEN / GITHUB_REPO /
// GITHUB_FILE_PATH plus the "2"-suffixed secondary set). The resulting set is
// immutable for the lifetime of the process.
package config

import (
	"fmt"
	"os"

	"github.com/repodash/repodash/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	// TargetsFileEnvVar points at a YAML file describing the managed targets.
	TargetsFileEnvVar = "REPODASH_TARGETS_FILE"

	// Legacy env vars for the two built-in targets.
	TokenEnvVar             = "GITHUB_TOKEN"
	RepoEnvVar              = "GITHUB_REPO"
	FilePathEnvVar          = "GITHUB_FILE_PATH"
	SecondaryTokenEnvVar    = "GITHUB_TOKEN2"
	SecondaryRepoEnvVar     = "GITHUB_REPO2"
	SecondaryFilePathEnvVar = "GITHUB_FILE_PATH2"

	PrimaryNameEnvVar   = "PRIMARY_NAME"
	SecondaryNameEnvVar = "SECONDARY_NAME"
)

// Targets holds the immutable set of target descriptors, keyed by target key.
// Keys preserves the declaration order for stable dashboard rendering.
type Targets struct {
	byKey map[string]types.TargetDescriptor
	Keys  []string
}

// Get returns the descriptor for key, if it exists.
func (t *Targets) Get(key string) (types.TargetDescriptor, bool) {
	d, ok := t.byKey[key]
	return d, ok
}

// All returns the descriptors in declaration order.
func (t *Targets) All() []types.TargetDescriptor {
	out := make([]types.TargetDescriptor, 0, len(t.Keys))
	for _, k := range t.Keys {
		out = append(out, t.byKey[k])
	}
	return out
}

// Len returns the number of configured targets.
func (t *Targets) Len() int { return len(t.byKey) }

// NewTargets builds a validated target set from descriptors, preserving order.
func NewTargets(descriptors []types.TargetDescriptor) (*Targets, error) {
	return newTargets(descriptors)
}

type targetsFile struct {
	Targets []types.TargetDescriptor `yaml:"targets"`
}

// LoadTargets resolves the target set from the environment, preferring the
// YAML file over the legacy env var pairs.
func LoadTargets() (*Targets, error) {
	if path := os.Getenv(TargetsFileEnvVar); path != "" {
		return loadTargetsFile(path)
	}
	return loadTargetsFromEnv()
}

func loadTargetsFile(path string) (*Targets, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	var f targetsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to parse targets file %s: %w", path, err)
	}
	if len(f.Targets) == 0 {
		return nil, fmt.Errorf("targets file %s declares no targets", path)
	}
	return newTargets(f.Targets)
}

func loadTargetsFromEnv() (*Targets, error) {
	primary := types.TargetDescriptor{
		Key:      "primary",
		Repo:     os.Getenv(RepoEnvVar),
		FilePath: os.Getenv(FilePathEnvVar),
		Token:    os.Getenv(TokenEnvVar),
		Name:     envOrDefault(PrimaryNameEnvVar, "Primary File"),
	}
	secondary := types.TargetDescriptor{
		Key:      "secondary",
		Repo:     os.Getenv(SecondaryRepoEnvVar),
		FilePath: os.Getenv(SecondaryFilePathEnvVar),
		Token:    os.Getenv(SecondaryTokenEnvVar),
		Name:     envOrDefault(SecondaryNameEnvVar, "Secondary File"),
	}

	descriptors := []types.TargetDescriptor{primary}
	// The secondary target is optional in the legacy env scheme.
	if secondary.Repo != "" || secondary.FilePath != "" || secondary.Token != "" {
		descriptors = append(descriptors, secondary)
	}
	return newTargets(descriptors)
}

func newTargets(descriptors []types.TargetDescriptor) (*Targets, error) {
	t := &Targets{byKey: make(map[string]types.TargetDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := validateTarget(d); err != nil {
			return nil, err
		}
		if _, exists := t.byKey[d.Key]; exists {
			return nil, fmt.Errorf("duplicate target key: %s", d.Key)
		}
		t.byKey[d.Key] = d
		t.Keys = append(t.Keys, d.Key)
	}
	return t, nil
}

func validateTarget(d types.TargetDescriptor) error {
	switch {
	case d.Key == "":
		return fmt.Errorf("target is missing a key")
	case d.Repo == "":
		return fmt.Errorf("target %s is missing a repository", d.Key)
	case d.FilePath == "":
		return fmt.Errorf("target %s is missing a file path", d.Key)
	case d.Token == "":
		return fmt.Errorf("target %s is missing an access token", d.Key)
	case d.Name == "":
		return fmt.Errorf("target %s is missing a display name", d.Key)
	}
	return nil
}

func envOrDefault(envVar, def string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return def
}
