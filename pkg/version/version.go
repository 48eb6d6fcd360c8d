package version

// Version is the application version, overridden at build time via
// -ldflags "-X travelogue/pkg/version.Version=...".
var Version = "v0.3.0"
