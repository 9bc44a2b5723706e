package metadata

import (
	"context"
	"slices"
	"strings"

	"github.com/matzehuels/gallade/pkg/coord"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/repository"
)

// Descriptor is the effective dependency information of one coordinate.
type Descriptor struct {
	Coordinate coord.Coordinate
	Packaging  string
	Source     string // repository that served the descriptor

	// Dependencies in declaration order, inherited ones first. Versions are
	// interpolated and filled from dependencyManagement; dependencies that
	// never propagate (test, provided, optional) may still carry an empty
	// or unresolved Spec.
	Dependencies []coord.Dependency

	// Management maps "group:artifact" to the managed version.
	Management map[string]string

	Properties map[string]string
}

// model is a descriptor being merged along its parent chain.
type model struct {
	groupID, artifactID, version string
	packaging                    string
	source                       string
	parent                       *repository.ParentRef
	props                        map[string]string
	managed                      []repository.Dependency
	deps                         []repository.Dependency
}

// effective loads at and its ancestors and merges them. chain holds the
// coordinates already being expanded (for parent and import loops).
func (r *Resolver) effective(ctx context.Context, at coord.Coordinate, chain []string) (*model, error) {
	id := at.ID()
	if slices.Contains(chain, id) {
		return nil, errors.New(errors.ErrCodeUnresolved, "descriptor inherits from itself").
			WithCoordinate(id).WithChain(append(chain, id))
	}
	chain = append(chain, id)
	if len(chain) > r.maxDepth {
		return nil, errors.New(errors.ErrCodeUnresolved, "descriptor chain deeper than %d", r.maxDepth).
			WithCoordinate(id).WithChain(chain)
	}

	p, err := r.pom(ctx, at)
	if err != nil {
		return nil, err
	}

	m := &model{
		props:  make(map[string]string),
		parent: p.Parent,
		source: p.Source,
	}
	if p.Parent != nil {
		parentAt := coord.Coordinate{Group: p.Parent.GroupID, Artifact: p.Parent.ArtifactID, Version: p.Parent.Version}
		if err := parentAt.Validate(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeUnresolved, err, "invalid parent").
				WithCoordinate(id).WithChain(chain)
		}
		pm, err := r.effective(ctx, parentAt, chain)
		if err != nil {
			return nil, err
		}
		m.inherit(pm)
	}
	m.apply(p)

	if err := r.importBOMs(ctx, m, chain); err != nil {
		return nil, err
	}
	return m, nil
}

// inherit copies everything a child inherits from its parent.
func (m *model) inherit(parent *model) {
	m.groupID = parent.groupID
	m.version = parent.version
	for k, v := range parent.props {
		m.props[k] = v
	}
	m.managed = append(m.managed, parent.managed...)
	m.deps = append(m.deps, parent.deps...)
}

// apply overlays p on m; p takes precedence.
func (m *model) apply(p *repository.POM) {
	if p.GroupID != "" {
		m.groupID = p.GroupID
	}
	if p.Version != "" {
		m.version = p.Version
	}
	m.artifactID = p.ArtifactID
	m.packaging = p.Packaging
	for k, v := range p.Properties {
		m.props[k] = v
	}
	m.managed = mergeDeps(m.managed, p.DependencyManagement.Dependencies)
	m.deps = mergeDeps(m.deps, p.Dependencies)

	m.props["project.groupId"] = m.groupID
	m.props["project.artifactId"] = m.artifactID
	m.props["project.version"] = m.version
	m.props["pom.groupId"] = m.groupID
	m.props["pom.version"] = m.version
	if p.Parent != nil {
		m.props["project.parent.groupId"] = p.Parent.GroupID
		m.props["project.parent.artifactId"] = p.Parent.ArtifactID
		m.props["project.parent.version"] = p.Parent.Version
	}
}

// mergeDeps overlays child entries on base by management key; replaced
// entries keep their position, new ones are appended.
func mergeDeps(base, child []repository.Dependency) []repository.Dependency {
	out := slices.Clone(base)
	index := make(map[string]int, len(out))
	for i, d := range out {
		index[normalizedKey(d)] = i
	}
	for _, d := range child {
		k := normalizedKey(d)
		if i, ok := index[k]; ok {
			out[i] = d
			continue
		}
		index[k] = len(out)
		out = append(out, d)
	}
	return out
}

func normalizedKey(d repository.Dependency) string {
	t := d.Type
	if t == "" {
		t = coord.DefaultType
	}
	return d.GroupID + ":" + d.ArtifactID + ":" + t + ":" + d.Classifier
}

// importBOMs replaces scope=import entries in dependencyManagement with the
// management section of the referenced descriptor. Entries declared
// directly win over imported ones.
func (r *Resolver) importBOMs(ctx context.Context, m *model, chain []string) error {
	var own, imported []repository.Dependency
	for _, d := range m.managed {
		if !strings.EqualFold(d.Scope, string(coord.ScopeImport)) || d.Type != "pom" {
			own = append(own, d)
			continue
		}
		at := coord.Coordinate{
			Group:    m.interpolate(d.GroupID),
			Artifact: m.interpolate(d.ArtifactID),
			Version:  m.interpolate(d.Version),
		}
		if err := at.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeUnresolved, err, "invalid BOM import").
				WithCoordinate(m.id()).WithChain(chain)
		}
		bom, err := r.effective(ctx, at, chain)
		if err != nil {
			return err
		}
		for _, md := range bom.managed {
			md.GroupID = bom.interpolate(md.GroupID)
			md.ArtifactID = bom.interpolate(md.ArtifactID)
			md.Version = bom.interpolate(md.Version)
			imported = append(imported, md)
		}
	}
	m.managed = mergeDeps(imported, own)
	return nil
}

func (m *model) id() string { return m.groupID + ":" + m.artifactID + ":" + m.version }

// descriptor finalizes m into a Descriptor for at.
func (m *model) descriptor(at coord.Coordinate) (*Descriptor, error) {
	managed := make(map[string]repository.Dependency, len(m.managed))
	management := make(map[string]string, len(m.managed))
	for _, d := range m.managed {
		d.GroupID = m.interpolate(d.GroupID)
		d.ArtifactID = m.interpolate(d.ArtifactID)
		d.Version = m.interpolate(d.Version)
		managed[normalizedKey(d)] = d
		if d.Type == "" || d.Type == coord.DefaultType {
			management[d.GroupID+":"+d.ArtifactID] = d.Version
		}
	}

	desc := &Descriptor{
		Coordinate: at,
		Packaging:  m.packaging,
		Source:     m.source,
		Management: management,
		Properties: m.props,
	}

	for _, d := range m.deps {
		d.GroupID = m.interpolate(d.GroupID)
		d.ArtifactID = m.interpolate(d.ArtifactID)
		d.Version = m.interpolate(d.Version)
		d.Classifier = m.interpolate(d.Classifier)

		if md, ok := managed[normalizedKey(d)]; ok {
			if d.Version == "" {
				d.Version = md.Version
			}
			if d.Scope == "" {
				d.Scope = md.Scope
			}
			d.Exclusions = append(d.Exclusions, md.Exclusions...)
		}

		dep, err := convert(d, m.interpolate(d.Scope))
		if err != nil {
			if !propagates(dep) {
				desc.Dependencies = append(desc.Dependencies, dep)
				continue
			}
			return nil, errors.Wrap(errors.ErrCodeUnresolved, err, "dependency %s:%s of %s", d.GroupID, d.ArtifactID, at.ID()).
				WithCoordinate(d.GroupID + ":" + d.ArtifactID).WithChain([]string{at.ID()})
		}
		desc.Dependencies = append(desc.Dependencies, dep)
	}
	return desc, nil
}

func propagates(d coord.Dependency) bool {
	return d.Scope.Transitive() && !d.Optional
}

// convert builds a coord.Dependency. The returned dependency is filled in
// as far as possible even when err is non-nil.
func convert(d repository.Dependency, rawScope string) (coord.Dependency, error) {
	scope, scopeErr := coord.ParseScope(rawScope)
	if scopeErr != nil {
		// Unknown scopes in published descriptors do not propagate.
		scope = coord.ScopeProvided
	}
	dep := coord.Dependency{
		Group:      d.GroupID,
		Artifact:   d.ArtifactID,
		Spec:       d.Version,
		Classifier: d.Classifier,
		Type:       d.Type,
		Scope:      scope,
		Optional:   d.IsOptional(),
	}
	for _, ex := range d.Exclusions {
		g, a := ex.GroupID, ex.ArtifactID
		if g == "" {
			g = "*"
		}
		if a == "" {
			a = "*"
		}
		dep.Exclusions = append(dep.Exclusions, coord.Exclusion{Group: g, Artifact: a})
	}

	switch {
	case strings.Contains(d.GroupID+d.ArtifactID+d.Version, "${"):
		return dep, errors.New(errors.ErrCodeUnresolved, "unresolved property in %s:%s:%s", d.GroupID, d.ArtifactID, d.Version)
	case d.Version == "":
		return dep, errors.New(errors.ErrCodeUnresolved, "no version declared or managed")
	}
	if err := (coord.Key{Group: d.GroupID, Artifact: d.ArtifactID}).Validate(); err != nil {
		return dep, err
	}
	return dep, nil
}
