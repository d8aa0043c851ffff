package tweak

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/MedGa-eth/foundry/compilation"
	"github.com/MedGa-eth/foundry/utils"
	"github.com/pkg/errors"
)

// ConfigFileName is the conventional name of the project configuration file at a project root.
const ConfigFileName = "tweak.json"

// ProjectConfig describes how a cloned project is compiled and which chain it targets.
type ProjectConfig struct {
	// ChainID is the chain the project targets. A zero value inherits the chain id recorded in the clone
	// metadata.
	ChainID uint64 `json:"chainId"`

	// Compilation describes the compilation platform and its platform-specific settings.
	Compilation *compilation.CompilationConfig `json:"compilation"`
}

// DefaultProjectConfig returns a project configuration which compiles the given root with crytic-compile and
// inherits the recorded chain id.
func DefaultProjectConfig(root string) (*ProjectConfig, error) {
	compilationConfig, err := compilation.NewCompilationConfig("crytic-compile")
	if err != nil {
		return nil, err
	}
	if err = compilationConfig.SetTarget(root); err != nil {
		return nil, err
	}
	return &ProjectConfig{
		ChainID:     0,
		Compilation: compilationConfig,
	}, nil
}

// LoadProjectConfig reads the project configuration under the given root, falling back to
// DefaultProjectConfig if no configuration file exists.
func LoadProjectConfig(root string) (*ProjectConfig, error) {
	path := filepath.Join(root, ConfigFileName)
	if !utils.FileExists(path) {
		return DefaultProjectConfig(root)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var config ProjectConfig
	if err = json.Unmarshal(b, &config); err != nil {
		return nil, errors.Wrapf(err, "could not parse project configuration at %s", path)
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the configuration names a supported compilation platform.
func (c *ProjectConfig) Validate() error {
	if c.Compilation == nil {
		return errors.New("project configuration must define a compilation config")
	}
	if !compilation.IsSupportedCompilationPlatform(c.Compilation.Platform) {
		return errors.Errorf("project configuration names an unsupported compilation platform '%s'", c.Compilation.Platform)
	}
	return nil
}

// WriteToFile persists the configuration to its conventional location under the given project root.
func (c *ProjectConfig) WriteToFile(root string) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	err = os.WriteFile(filepath.Join(root, ConfigFileName), b, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}
