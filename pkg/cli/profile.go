package cli

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/harrier/pkg/model"
	"gopkg.in/yaml.v3"
)

// loadProfile reads an agent profile from a YAML file
func loadProfile(path string) (*model.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read profile file", goerr.V("path", path))
	}

	var profile model.Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, goerr.Wrap(err, "failed to parse profile file", goerr.V("path", path))
	}

	if profile.Name == "" {
		return nil, goerr.New("profile has no name", goerr.V("path", path))
	}
	if profile.Role == "" {
		return nil, goerr.New("profile has no role", goerr.V("path", path))
	}
	if len(profile.Goals) == 0 {
		return nil, goerr.New("profile has no goals", goerr.V("path", path))
	}

	return &profile, nil
}
