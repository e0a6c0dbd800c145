package version

// VERSION is compared with the VERSION constant in the upstream copy of
// this file that CheckVersion fetches, per the teacher's checker.go
// pattern; UPDATE_MESSAGE is the local text main prints when they differ.
const (
	VERSION        = "v0.1.0"
	UPDATE_MESSAGE = "A new version of FluidVoice is available."
)
