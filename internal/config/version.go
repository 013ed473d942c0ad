package config

// Version is the proposald binary version.
// Set at build time via: -ldflags "-X github.com/splitlease/proposals/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
