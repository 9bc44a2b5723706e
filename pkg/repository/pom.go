package repository

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// POM is the subset of a Maven project descriptor used for resolution.
type POM struct {
	XMLName    xml.Name   `xml:"project"`
	Parent     *ParentRef `xml:"parent"`
	GroupID    string     `xml:"groupId"`
	ArtifactID string     `xml:"artifactId"`
	Version    string     `xml:"version"`
	Packaging  string     `xml:"packaging"`
	Name       string     `xml:"name"`

	Properties Properties `xml:"properties"`

	DependencyManagement struct {
		Dependencies []Dependency `xml:"dependencies>dependency"`
	} `xml:"dependencyManagement"`

	Dependencies []Dependency `xml:"dependencies>dependency"`

	// Source is the base URL of the repository that served the descriptor.
	Source string `xml:"-"`
}

// ParentRef points at a parent descriptor.
type ParentRef struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

// Dependency is a <dependency> element. Values may still contain
// ${property} references.
type Dependency struct {
	GroupID    string      `xml:"groupId"`
	ArtifactID string      `xml:"artifactId"`
	Version    string      `xml:"version"`
	Type       string      `xml:"type"`
	Classifier string      `xml:"classifier"`
	Scope      string      `xml:"scope"`
	Optional   string      `xml:"optional"`
	Exclusions []Exclusion `xml:"exclusions>exclusion"`
}

// IsOptional reports whether the dependency is marked optional.
func (d Dependency) IsOptional() bool {
	return strings.EqualFold(strings.TrimSpace(d.Optional), "true")
}

// ManagementKey identifies a dependency in dependencyManagement.
func (d Dependency) ManagementKey() string {
	return d.GroupID + ":" + d.ArtifactID + ":" + d.Type + ":" + d.Classifier
}

// Exclusion is an <exclusion> element.
type Exclusion struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
}

// Properties holds the free-form <properties> block.
type Properties map[string]string

// UnmarshalXML reads every child element of <properties> as a name/value
// pair.
func (p *Properties) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	if *p == nil {
		*p = make(Properties)
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var value string
			if err := d.DecodeElement(&value, &t); err != nil {
				return err
			}
			(*p)[t.Name.Local] = strings.TrimSpace(value)
		case xml.EndElement:
			return nil
		}
	}
}

// ParsePOM decodes a descriptor.
func ParsePOM(data []byte) (*POM, error) {
	var pom POM
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false
	if err := dec.Decode(&pom); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse pom: %w", err)
	}
	if pom.ArtifactID == "" {
		return nil, fmt.Errorf("parse pom: missing artifactId")
	}
	return &pom, nil
}

// metadata is maven-metadata.xml at the artifact level.
type metadata struct {
	XMLName    xml.Name `xml:"metadata"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

func parseMetadata(data []byte) (*metadata, error) {
	var md metadata
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&md); err != nil {
		return nil, fmt.Errorf("parse maven-metadata.xml: %w", err)
	}
	return &md, nil
}
