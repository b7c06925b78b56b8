package app

// AppName names the binary in logs and version output.
const AppName = "physbot"

// Build metadata, set with -ldflags "-X github.com/physum/physbot/pkg/app.Version=...".
var (
	Version   = "dev"
	CommitSHA = ""
	BuildTime = ""
)

// VersionString formats the build metadata for `physbot version`.
func VersionString() string {
	out := AppName + " " + Version
	if CommitSHA != "" {
		out += " commit=" + CommitSHA
	}
	if BuildTime != "" {
		out += " built=" + BuildTime
	}
	return out
}
