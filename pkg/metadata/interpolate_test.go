package metadata

import (
	stderrors "errors"
	"testing"

	"github.com/matzehuels/gallade/pkg/errors"
)

func asError(err error, target **errors.Error) bool {
	return stderrors.As(err, target)
}

func TestInterpolate(t *testing.T) {
	m := &model{props: map[string]string{
		"a":               "1",
		"b":               "${a}.2",
		"loop":            "${loop}",
		"project.version": "3.0",
	}}

	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"${a}", "1"},
		{"${b}", "1.2"},
		{"v${a}-${project.version}", "v1-3.0"},
		{"${missing}", "${missing}"},
		{"${loop}", "${loop}"},
		{"${unterminated", "${unterminated"},
		{" ${a} ", "1"},
	}
	for _, tt := range tests {
		if got := m.interpolate(tt.in); got != tt.want {
			t.Errorf("interpolate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
