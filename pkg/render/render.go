package render

import (
	"context"
	"io"
	"strings"

	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/lockfile"
)

// Format names an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatDOT  Format = "dot"
	FormatSVG  Format = "svg"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatDOT, FormatSVG}

// ParseFormat parses a format name. The empty string is text.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatText, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want text, json, dot or svg)", s)
}

// Render writes lf to w in format f.
func Render(ctx context.Context, w io.Writer, lf *lockfile.Lockfile, f Format) error {
	switch f {
	case FormatText, "":
		return Text(w, lf)
	case FormatJSON:
		return JSON(w, lf)
	case FormatDOT:
		_, err := io.WriteString(w, ToDOT(lf))
		return err
	case FormatSVG:
		svg, err := RenderSVG(ctx, ToDOT(lf))
		if err != nil {
			return err
		}
		_, err = w.Write(svg)
		return err
	}
	return errors.New(errors.ErrCodeInvalidInput, "unknown format %q", f)
}

// index maps entry ids to entries.
func index(lf *lockfile.Lockfile) map[string]lockfile.Entry {
	byID := make(map[string]lockfile.Entry, len(lf.Entries))
	for _, e := range lf.Entries {
		byID[e.ID()] = e
	}
	return byID
}
