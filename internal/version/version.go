package version

// Version is the current version of the engine.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/version.Version=1.2.3"
// The default value "main" indicates a development build.
var Version = "v1.4.0"

// SchemaVersion is the strategy document schema this engine understands.
// A strategy declaring a different major or minor schema version is rejected
// at load time.
const SchemaVersion = "1.4.0"

// GetVersion returns the current version of the engine.
func GetVersion() string {
	return Version
}
