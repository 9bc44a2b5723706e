// Package repotest serves an in-memory Maven2 repository over HTTP for
// tests. Every request is counted per path so tests can assert how often the
// code under test went to the network.
package repotest

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Dep is a dependency declared by a published artifact.
type Dep struct {
	Coord      string // "group:artifact[:version]"; version may be a range or empty
	Scope      string
	Optional   bool
	Classifier string
	Type       string
	Exclusions []string // "group:artifact", "*" allowed
}

// Artifact describes one published coordinate.
type Artifact struct {
	Coord      string // "group:artifact:version"
	Packaging  string
	Parent     string // "group:artifact:version"
	Properties map[string]string
	Managed    []Dep
	Deps       []Dep
	Jar        []byte // defaults to a body derived from Coord
	NoChecksum bool   // publish no checksum sidecars
	SHA1Only   bool   // publish only a .sha1 sidecar
}

// Repo is an in-memory repository.
type Repo struct {
	t      testing.TB
	server *httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	hits     map[string]int
	failures map[string]int
	versions map[string][]string
	gate     chan struct{}
}

// New starts a repository server that is closed when the test ends.
func New(t testing.TB) *Repo {
	t.Helper()
	r := &Repo{
		t:        t,
		files:    make(map[string][]byte),
		hits:     make(map[string]int),
		failures: make(map[string]int),
		versions: make(map[string][]string),
	}

	router := chi.NewRouter()
	router.Use(r.count)
	router.Get("/*", r.serve)
	router.Head("/*", r.serve)

	r.server = httptest.NewServer(router)
	t.Cleanup(r.server.Close)
	return r
}

// URL returns the repository base URL.
func (r *Repo) URL() string { return r.server.URL }

func (r *Repo) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.hits[strings.TrimPrefix(req.URL.Path, "/")]++
		gate := r.gate
		r.mu.Unlock()
		if gate != nil {
			select {
			case <-gate:
			case <-req.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, req)
	})
}

func (r *Repo) serve(w http.ResponseWriter, req *http.Request) {
	path := chi.URLParam(req, "*")

	r.mu.Lock()
	if n := r.failures[path]; n > 0 {
		r.failures[path] = n - 1
		r.mu.Unlock()
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	data, ok := r.files[path]
	r.mu.Unlock()

	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	if req.Method == http.MethodGet {
		w.Write(data)
	}
}

// Put stores data at path, replacing any existing file.
func (r *Repo) Put(path string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[strings.TrimPrefix(path, "/")] = data
}

// Remove deletes the file at path.
func (r *Repo) Remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, strings.TrimPrefix(path, "/"))
}

// Fail makes the next n requests for path answer 503.
func (r *Repo) Fail(path string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[path] = n
}

// Hold makes every request wait until the returned function is called.
func (r *Repo) Hold() (release func()) {
	ch := make(chan struct{})
	r.mu.Lock()
	r.gate = ch
	r.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.gate = nil
			r.mu.Unlock()
			close(ch)
		})
	}
}

// Hits returns how many requests were made for path.
func (r *Repo) Hits(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[strings.TrimPrefix(path, "/")]
}

// TotalHits returns the number of requests served.
func (r *Repo) TotalHits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.hits {
		n += h
	}
	return n
}

// ResetHits clears the request counters.
func (r *Repo) ResetHits() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits = make(map[string]int)
}

// Publish adds a descriptor, artifact, checksum sidecars and a version
// listing entry for a.
func (r *Repo) Publish(a Artifact) {
	r.t.Helper()
	g, art, v := split3(r.t, a.Coord)
	dir := strings.ReplaceAll(g, ".", "/") + "/" + art

	r.Put(dir+"/"+v+"/"+art+"-"+v+".pom", []byte(pomXML(r.t, a)))

	if a.Packaging != "pom" {
		jar := a.Jar
		if jar == nil {
			jar = JarBytes(a.Coord)
		}
		jarPath := dir + "/" + v + "/" + art + "-" + v + ".jar"
		r.Put(jarPath, jar)
		if !a.NoChecksum {
			if !a.SHA1Only {
				r.Put(jarPath+".sha256", []byte(SHA256(jar)+"  "+art+"-"+v+".jar\n"))
			}
			r.Put(jarPath+".sha1", []byte(sha1Hex(jar)+"\n"))
		}
	}

	r.mu.Lock()
	key := g + ":" + art
	if !contains(r.versions[key], v) {
		r.versions[key] = append(r.versions[key], v)
	}
	versions := append([]string(nil), r.versions[key]...)
	r.mu.Unlock()

	r.Put(dir+"/maven-metadata.xml", []byte(metadataXML(g, art, versions)))
}

// PathOf returns the layout path of the jar of "group:artifact:version".
func PathOf(gav string) string {
	parts := strings.Split(gav, ":")
	dir := strings.ReplaceAll(parts[0], ".", "/") + "/" + parts[1] + "/" + parts[2]
	return dir + "/" + parts[1] + "-" + parts[2] + ".jar"
}

// POMPath returns the layout path of the descriptor of "group:artifact:version".
func POMPath(gav string) string {
	return strings.TrimSuffix(PathOf(gav), ".jar") + ".pom"
}

// MetadataPath returns the layout path of the version listing of "group:artifact".
func MetadataPath(ga string) string {
	parts := strings.Split(ga, ":")
	return strings.ReplaceAll(parts[0], ".", "/") + "/" + parts[1] + "/maven-metadata.xml"
}

// JarBytes is the default artifact body published for gav.
func JarBytes(gav string) []byte { return []byte("PK jar " + gav) }

// SHA256 returns the hex sha256 of data.
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func split3(t testing.TB, gav string) (string, string, string) {
	parts := strings.Split(gav, ":")
	if len(parts) != 3 {
		t.Fatalf("repotest: expected group:artifact:version, got %q", gav)
	}
	return parts[0], parts[1], parts[2]
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func metadataXML(g, a string, versions []string) string {
	sorted := append([]string(nil), versions...)
	sort.Strings(sorted)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<metadata>\n")
	fmt.Fprintf(&b, "  <groupId>%s</groupId>\n  <artifactId>%s</artifactId>\n", g, a)
	b.WriteString("  <versioning>\n    <versions>\n")
	for _, v := range sorted {
		fmt.Fprintf(&b, "      <version>%s</version>\n", v)
	}
	b.WriteString("    </versions>\n  </versioning>\n</metadata>\n")
	return b.String()
}

func pomXML(t testing.TB, a Artifact) string {
	g, art, v := split3(t, a.Coord)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<project>\n")
	if a.Parent != "" {
		pg, pa, pv := split3(t, a.Parent)
		fmt.Fprintf(&b, "  <parent><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version></parent>\n", pg, pa, pv)
	}
	fmt.Fprintf(&b, "  <groupId>%s</groupId>\n  <artifactId>%s</artifactId>\n  <version>%s</version>\n", g, art, v)
	if a.Packaging != "" {
		fmt.Fprintf(&b, "  <packaging>%s</packaging>\n", a.Packaging)
	}
	if len(a.Properties) > 0 {
		keys := make([]string, 0, len(a.Properties))
		for k := range a.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("  <properties>\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "    <%s>%s</%s>\n", k, a.Properties[k], k)
		}
		b.WriteString("  </properties>\n")
	}
	if len(a.Managed) > 0 {
		b.WriteString("  <dependencyManagement>\n")
		writeDeps(&b, a.Managed)
		b.WriteString("  </dependencyManagement>\n")
	}
	writeDeps(&b, a.Deps)
	b.WriteString("</project>\n")
	return b.String()
}

func writeDeps(b *strings.Builder, deps []Dep) {
	if len(deps) == 0 {
		return
	}
	b.WriteString("  <dependencies>\n")
	for _, d := range deps {
		parts := strings.SplitN(d.Coord, ":", 3)
		b.WriteString("    <dependency>\n")
		fmt.Fprintf(b, "      <groupId>%s</groupId>\n      <artifactId>%s</artifactId>\n", parts[0], parts[1])
		if len(parts) == 3 && parts[2] != "" {
			fmt.Fprintf(b, "      <version>%s</version>\n", parts[2])
		}
		if d.Type != "" {
			fmt.Fprintf(b, "      <type>%s</type>\n", d.Type)
		}
		if d.Classifier != "" {
			fmt.Fprintf(b, "      <classifier>%s</classifier>\n", d.Classifier)
		}
		if d.Scope != "" {
			fmt.Fprintf(b, "      <scope>%s</scope>\n", d.Scope)
		}
		if d.Optional {
			b.WriteString("      <optional>true</optional>\n")
		}
		if len(d.Exclusions) > 0 {
			b.WriteString("      <exclusions>\n")
			for _, ex := range d.Exclusions {
				eg, ea, _ := strings.Cut(ex, ":")
				fmt.Fprintf(b, "        <exclusion><groupId>%s</groupId><artifactId>%s</artifactId></exclusion>\n", eg, ea)
			}
			b.WriteString("      </exclusions>\n")
		}
		b.WriteString("    </dependency>\n")
	}
	b.WriteString("  </dependencies>\n")
}
