package pkg

// Version is overridden at build time with -ldflags "-X github.com/pawaret/worldgate/pkg.Version=..."
var Version = "0.1.0-dev"
