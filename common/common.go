package common

var (
	// PackageName is used as the metrics namespace and the default log service tag.
	PackageName = "ethsigner"

	// Version is overridden at build time via -ldflags.
	Version = "dev"
)
