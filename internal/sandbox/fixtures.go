package sandbox

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixtures seed the sandbox with accounts and objects.
type Fixtures struct {
	Users   []FixtureUser   `yaml:"users"`
	Objects []FixtureObject `yaml:"objects"`
}

// FixtureUser is a profile that may also sign in through the dialog
// when it carries a username and bcrypt hash.
type FixtureUser struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Username     string `yaml:"username,omitempty"`
	PasswordHash string `yaml:"password_hash,omitempty"`
}

// FixtureObject is an Open Graph object keyed by its URL.
type FixtureObject struct {
	URL      string           `yaml:"url"`
	ID       string           `yaml:"id,omitempty"`
	Title    string           `yaml:"title,omitempty"`
	Type     string           `yaml:"type,omitempty"`
	Likes    []string         `yaml:"likes,omitempty"`
	Comments []FixtureComment `yaml:"comments,omitempty"`
}

// FixtureComment is a comment on a FixtureObject. From is a user id.
type FixtureComment struct {
	ID          string `yaml:"id,omitempty"`
	From        string `yaml:"from"`
	Message     string `yaml:"message"`
	CreatedTime string `yaml:"created_time,omitempty"`
}

// ParseFixtures decodes YAML fixtures.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixtures: %w", err)
	}

	seen := make(map[string]struct{})

	for i, u := range f.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("fixture user %d has no id", i+1)
		}

		if _, dup := seen[u.ID]; dup {
			return nil, fmt.Errorf("duplicate fixture user id %q", u.ID)
		}

		seen[u.ID] = struct{}{}
	}

	for i, o := range f.Objects {
		if o.URL == "" {
			return nil, fmt.Errorf("fixture object %d has no url", i+1)
		}
	}

	return &f, nil
}

// LoadFixtures reads YAML fixtures from path.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}

	return ParseFixtures(data)
}
