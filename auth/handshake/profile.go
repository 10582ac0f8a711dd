package handshake

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Profile captures the portal-version-specific shape of the two login steps.
// SEQTA revisions disagree on the exact field names the login endpoint
// expects, so they are configuration rather than constants.
type Profile struct {
	Name string `yaml:"name"`

	// TokenField is the body key of the first login request.
	TokenField string `yaml:"token_field" validate:"required"`

	// JWTField is the body key of the second login request, the one that
	// returns the authenticated user payload.
	JWTField string `yaml:"jwt_field" validate:"required"`

	// SeedSessionCookie controls whether the jar is primed with the JWT as a
	// JSESSIONID cookie before the first step.
	SeedSessionCookie bool `yaml:"seed_session_cookie"`
}

// DefaultProfile matches current SEQTA deployments.
func DefaultProfile() Profile {
	return Profile{
		Name:              "default",
		TokenField:        "token",
		JWTField:          "jwt",
		SeedSessionCookie: true,
	}
}

// LoadProfile reads a portal profile from a YAML file, falling back to the
// default profile when path is empty.
func LoadProfile(path string) (Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, errors.Wrap(err, "[handshake.LoadProfile] read profile file")
	}

	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, errors.Wrap(err, "[handshake.LoadProfile] parse profile YAML")
	}
	if err := validate.Struct(&profile); err != nil {
		return Profile{}, errors.Wrap(err, "[handshake.LoadProfile] invalid profile")
	}
	return profile, nil
}
