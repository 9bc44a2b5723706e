package cache

// ScopedKeyer wraps a Keyer with a prefix. A shared Redis cache used by
// several configurations (different repository mirrors, different tool
// versions) scopes its keys so entries never collide.
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "gallade:v1:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

func (k *ScopedKeyer) VersionsKey(repo, group, artifact string) string {
	return k.prefix + k.inner.VersionsKey(repo, group, artifact)
}

func (k *ScopedKeyer) DescriptorKey(repo, group, artifact, version string) string {
	return k.prefix + k.inner.DescriptorKey(repo, group, artifact, version)
}

func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}
