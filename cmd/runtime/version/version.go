package version

import "fmt"

const (
	major = 0
	minor = 4
	patch = 0
)

// Get returns the release version string for the relay binaries.
func Get() string {
	return fmt.Sprintf("v%d.%d.%d", major, minor, patch)
}
