package common

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultProfile is the profile name used when no .chemvizprofile is found.
const DefaultProfile = "default"

// ProfileMarker is the file naming the profile for the directory and its descendants.
const ProfileMarker = ".chemvizprofile"

type CommonFlags struct {
	Profile      string `flag:"profile" help:"chemviz profile name to use"`
	ProfileStore string `flag:"profile-store" help:"path to chemviz profile store file"`
	Session      string `flag:"session" help:"path to session file, where the credential is saved"`
}

type commonFlagDetection struct {
	home string
}

type CommonFlagDetectionOption func(*commonFlagDetection) *commonFlagDetection

func WithHome(home string) CommonFlagDetectionOption {
	return func(opt *commonFlagDetection) *commonFlagDetection {
		opt.home = home
		return opt
	}
}

// Flags detects default values of common flags.
//
// The profile name is read from the first line of .chemvizprofile in
// the directory `from` or its nearest ancestor having one.
// The profile store and the session live in ~/.chemviz .
func Flags(from string, opt ...CommonFlagDetectionOption) (CommonFlags, error) {
	detparam := commonFlagDetection{
		home: "",
	}
	for _, o := range opt {
		detparam = *o(&detparam)
	}

	home := detparam.home
	if home == "" {
		_home, err := os.UserHomeDir()
		if err != nil {
			_home = ""
		}
		home = _home
	}

	if _from, err := filepath.Abs(from); err == nil {
		from = _from
	}

	profile := DefaultProfile
	for searchpath := from; ; {
		candidate := filepath.Join(searchpath, ProfileMarker)
		if s, err := os.Stat(candidate); err == nil && s.Mode().IsRegular() {
			content, err := os.ReadFile(candidate)
			if err != nil {
				return CommonFlags{}, err
			}
			if p := strings.TrimSpace(strings.Split(string(content), "\n")[0]); p != "" {
				profile = p
			}
			break
		}

		next := filepath.Dir(searchpath)
		if next == searchpath {
			break
		}
		searchpath = next
	}

	return CommonFlags{
		Profile:      profile,
		ProfileStore: filepath.Join(home, ".chemviz", "profile"),
		Session:      filepath.Join(home, ".chemviz", "session"),
	}, nil
}
