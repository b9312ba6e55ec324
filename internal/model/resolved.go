package model

// Origin records how a model path was chosen.
type Origin string

const (
	// OriginExplicit is a path given on the command line.
	OriginExplicit Origin = "flag"

	// OriginEnvironment is a path taken from SUMMA_MODEL_PATH.
	OriginEnvironment Origin = "env"

	// OriginConfig is a path taken from the config file.
	OriginConfig Origin = "config"

	// OriginDiscovered is a path found by scanning the search locations.
	OriginDiscovered Origin = "search"

	// OriginDownloaded is a path found after fetching a model into the cache.
	OriginDownloaded Origin = "download"
)

// Resolved is the model file chosen for a run.
type Resolved struct {
	Path   string `json:"path"`
	Origin Origin `json:"origin"`
}

// IsExplicit reports whether the path was supplied rather than discovered.
// Supplied paths are trusted as-is and only validated when loaded.
func (r Resolved) IsExplicit() bool {
	switch r.Origin {
	case OriginExplicit, OriginEnvironment, OriginConfig:
		return true
	default:
		return false
	}
}
