// Package version provides version information for the feedproxy application.
package version

// Version is the current version of the feedproxy application.
const Version = "0.3.0"

// AgentString returns the agent string sent to RPC endpoints.
// Format: feedproxy-go/v{version}
func AgentString() string {
	return "feedproxy-go/v" + Version
}
