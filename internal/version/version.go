package version

// Name is the service name reported to tracing and logs.
const Name = "cdrpulse"

// Version is overridden at build time with -ldflags "-X cdrpulse/internal/version.Version=...".
var Version = "dev"
