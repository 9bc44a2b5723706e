package buildinfo

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFill(t *testing.T) {
	defer func(v, c, d string) { Version, Commit, Date = v, c, d }(Version, Commit, Date)

	tests := []struct {
		name        string
		version     string
		info        debug.BuildInfo
		wantVersion string
		wantCommit  string
	}{
		{
			name:    "go install",
			version: "dev",
			info: debug.BuildInfo{
				Main:     debug.Module{Version: "v1.2.3"},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}},
			},
			wantVersion: "v1.2.3",
			wantCommit:  "abc123",
		},
		{
			name:        "local build",
			version:     "dev",
			info:        debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			wantVersion: "dev",
			wantCommit:  "none",
		},
		{
			name:        "ldflags win",
			version:     "v2.0.0",
			info:        debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}},
			wantVersion: "v2.0.0",
			wantCommit:  "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit, Date = tt.version, "none", "unknown"
			fill(&tt.info)
			if Version != tt.wantVersion || Commit != tt.wantCommit {
				t.Errorf("fill() = %s/%s, want %s/%s", Version, Commit, tt.wantVersion, tt.wantCommit)
			}
		})
	}
}

func TestTemplate(t *testing.T) {
	if !strings.HasPrefix(Template(), "{{.Name}} version "+Version) {
		t.Errorf("Template() = %q", Template())
	}
	if !strings.Contains(String(), "commit: "+Commit) {
		t.Errorf("String() = %q", String())
	}
}
