package profiles

import (
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/opst/chemviz/cmd/chemviz/config/open"
	yaml "gopkg.in/yaml.v3"
)

var ErrProfileStoreNotFound = errors.New("profile store is not found")
var ErrProfileInvalid = errors.New("chemviz profile is invalid")

// DefaultApiRoot is the backend used when no profile is configured.
const DefaultApiRoot = "http://localhost:8000/api"

// EnvApiRoot names the environment variable overriding DefaultApiRoot.
const EnvApiRoot = "CHEMVIZ_API_URL"

// ProfileStore is a map from profile name to Profile.
type ProfileStore map[string]*Profile

type Cert struct {
	// base64 encoded CA certificate
	CA string `yaml:"ca,omitempty"`
}

// Profile tells which backend to talk to.
type Profile struct {
	// root of backend API, like "https://chemviz.example.com/api"
	ApiRoot string `yaml:"apiRoot"`

	Cert Cert `yaml:"cert"`
}

// Default returns the profile used when the profile store has nothing.
//
// ApiRoot is taken from $CHEMVIZ_API_URL, or DefaultApiRoot if unset.
func Default() *Profile {
	root := os.Getenv(EnvApiRoot)
	if root == "" {
		root = DefaultApiRoot
	}
	return &Profile{ApiRoot: root}
}

func verifyUrl(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs()
}

func verifyPEM(b64cert string) bool {
	bin, err := base64.StdEncoding.DecodeString(b64cert)
	if err != nil {
		return false
	}
	blk, _ := pem.Decode(bin)
	return blk != nil
}

// Verify returns nil if the profile is valid. Otherwise, ErrProfileInvalid.
func (p *Profile) Verify() error {
	if !verifyUrl(p.ApiRoot) {
		return fmt.Errorf("%w: apiRoot is not URL: %s", ErrProfileInvalid, p.ApiRoot)
	}
	if p.Cert.CA != "" && !verifyPEM(p.Cert.CA) {
		return fmt.Errorf("%w: cert.ca is not PEM", ErrProfileInvalid)
	}
	return nil
}

// LoadProfileStore loads profile store from file.
func LoadProfileStore(filepath string) (ProfileStore, error) {
	buf, err := os.ReadFile(filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrProfileStoreNotFound, filepath)
		}
		return nil, err
	}
	return Unmarshal(buf)
}

// Unmarshal profile store from yaml.
func Unmarshal(buf []byte) (ProfileStore, error) {
	ret := ProfileStore{}
	if err := yaml.Unmarshal(buf, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Save profile store to file.
func (ps ProfileStore) Save(path string) error {
	buf, err := yaml.Marshal(ps)
	if err != nil {
		return err
	}
	return open.WriteSafely(path, buf)
}
