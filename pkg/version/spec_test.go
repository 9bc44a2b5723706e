package version

import (
	"testing"

	"github.com/matzehuels/gallade/pkg/errors"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		input   string
		kind    Kind
		str     string
		wantErr bool
	}{
		{"1.2.3", KindExact, "1.2.3", false},
		{" 31.1-jre ", KindExact, "31.1-jre", false},
		{"[1.0,2.0)", KindRange, "[1.0,2.0)", false},
		{"(,1.0]", KindRange, "(,1.0]", false},
		{"[1.5,)", KindRange, "[1.5,)", false},
		{"[1.0]", KindRange, "[1.0]", false},
		{"[1.0,2.0), [3.0,)", KindRange, "[1.0,2.0),[3.0,)", false},
		{"latest", KindQualifier, "latest", false},
		{"RELEASE", KindQualifier, "release", false},
		{"*", KindQualifier, "release", false},

		{"", 0, "", true},
		{"[1.0,2.0", 0, "", true},
		{"1.0,2.0", 0, "", true},
		{"[2.0,1.0]", 0, "", true},
		{"[1.0,)x", 0, "", true},
		{"[,1.0]", 0, "", true},
		{"[1.0,2.0),", 0, "", true},
		{"(1.0)", 0, "", true},
		{"1.0/../x", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, err := ParseSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSpec(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errors.ErrCodeInvalidInput) {
					t.Errorf("ParseSpec(%q) code = %v", tt.input, errors.GetCode(err))
				}
				return
			}
			if s.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", s.Kind(), tt.kind)
			}
			if s.String() != tt.str {
				t.Errorf("String() = %q, want %q", s.String(), tt.str)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	available := []string{"1.0", "1.5", "1.9", "2.0", "2.1-SNAPSHOT", "3.0-rc1"}

	tests := []struct {
		spec string
		want string
		ok   bool
	}{
		{"1.5", "1.5", true},
		{"1.5.0", "1.5", true},
		{"1.6", "", false},
		{"[1.0,2.0)", "1.9", true},
		{"[1.0,2.0]", "2.0", true},
		{"(,1.0]", "1.0", true},
		{"[1.5]", "1.5", true},
		{"[2.1-SNAPSHOT,2.2)", "2.1-SNAPSHOT", true},
		{"[2.0,)", "3.0-rc1", true},
		{"[4.0,)", "", false},
		{"(,1.0),[1.5,1.6)", "1.5", true},
		{"release", "3.0-rc1", true},
		{"latest", "3.0-rc1", true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			s, err := ParseSpec(tt.spec)
			if err != nil {
				t.Fatalf("ParseSpec(%q): %v", tt.spec, err)
			}
			got, ok := s.Select(available)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Select() = %q, %v, want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSelectQualifierSnapshots(t *testing.T) {
	available := []string{"1.0", "1.1-SNAPSHOT"}

	latest, _ := ParseSpec("latest")
	if got, _ := latest.Select(available); got != "1.1-SNAPSHOT" {
		t.Errorf("latest.Select() = %q, want 1.1-SNAPSHOT", got)
	}

	release, _ := ParseSpec("release")
	if got, _ := release.Select(available); got != "1.0" {
		t.Errorf("release.Select() = %q, want 1.0", got)
	}

	if _, ok := release.Select([]string{"1.0-SNAPSHOT"}); ok {
		t.Error("release.Select() picked a snapshot")
	}
}
