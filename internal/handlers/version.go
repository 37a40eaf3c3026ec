package handlers

import (
	"net/http"
	"runtime"
)

// BuildInfo describes the running binary. Fields are set through -ldflags.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Go      string `json:"go"`
}

// Version returns a handler that reports build information.
func Version(version, commit string) http.HandlerFunc {
	info := BuildInfo{Version: version, Commit: commit, Go: runtime.Version()}
	if info.Version == "" {
		info.Version = "dev"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, info)
	}
}
