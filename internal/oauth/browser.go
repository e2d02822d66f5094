package oauth

import (
	"runtime"

	"github.com/skratchdot/open-golang/open"

	"github.com/dvcrn/gemini-cli-auth/internal/env"
)

// launchBrowser opens a URL in the user's default browser. Overridable in tests.
var launchBrowser = open.Start

// CanLaunchBrowser reports whether the host can plausibly show a browser.
// SSH sessions, CI runners, and display-less Linux hosts cannot; they get the
// device flow regardless of the NoBrowser flag.
func CanLaunchBrowser(src env.Source) bool {
	for _, key := range []string{"SSH_CONNECTION", "SSH_TTY"} {
		if _, ok := env.Get(src, key); ok {
			return false
		}
	}
	for _, key := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "CIRCLECI", "JENKINS_URL"} {
		if _, ok := env.Get(src, key); ok {
			return false
		}
	}

	if runtime.GOOS == "linux" {
		_, hasX := env.Get(src, "DISPLAY")
		_, hasWayland := env.Get(src, "WAYLAND_DISPLAY")
		return hasX || hasWayland
	}
	return true
}
