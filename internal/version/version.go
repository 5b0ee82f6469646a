package version

// Version is the current version of LocalDrop.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/localdrop/localdrop/internal/version.Version=v1.0.0'"
var Version = "dev"
