// Package shader keeps the registry of fragment shaders that draw commands
// reference and consolidates the shaders used by one render pass into a
// single uber shader.
//
// Every shader is a WGSL function named shade_<name> taking a Fragment and
// returning premultiplied color. An uber shader is the shared prelude, the
// functions of its shader set, and a fragment entry point that switches on
// the per-vertex shader id.
package shader

import (
	"embed"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gogpu/vbuf/internal/cache"
	"github.com/gogpu/vbuf/internal/command"
)

// Shader errors.
var (
	// ErrUnknownShader is returned for ids that were never registered.
	ErrUnknownShader = errors.New("shader: unknown shader")

	// ErrDuplicateShader is returned when an id or name is registered twice.
	ErrDuplicateShader = errors.New("shader: duplicate shader")

	// ErrInvalidSource is returned for sources without the expected function.
	ErrInvalidSource = errors.New("shader: invalid source")

	// ErrNoHALDevice is returned when a provider does not expose a HAL device.
	ErrNoHALDevice = errors.New("shader: provider does not expose a HAL device")
)

// ID identifies a shader. It is the id stored in draw commands.
type ID = command.ShaderID

// Reserved shaders registered by NewLibrary.
const (
	// Solid fills with the item color.
	Solid ID = iota
	// Image samples the source texture.
	Image
	// MaskIntersect writes old clip coverage times fill coverage.
	MaskIntersect
	// MaskSubtract writes old clip coverage minus fill coverage.
	MaskSubtract
	// MaskTile paints the item color through a mask tile.
	MaskTile
	// MixedTile composites a tile covered by both clip-in and clip-out.
	MixedTile
	// MaskExclude writes coverage outside both the old clip and the fill.
	MaskExclude

	// FirstUserID is the first id handed out by Register.
	FirstUserID ID = 16
)

//go:embed shaders/*.wgsl
var sources embed.FS

var reserved = []struct {
	id   ID
	name string
}{
	{Solid, "solid"},
	{Image, "image"},
	{MaskIntersect, "mask_intersect"},
	{MaskSubtract, "mask_subtract"},
	{MaskTile, "mask_tile"},
	{MixedTile, "mixed_tile"},
	{MaskExclude, "mask_exclude"},
}

var validName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Shader is a registered fragment shader.
type Shader struct {
	ID     ID
	Name   string
	Source string
}

// EntryPoint returns the name of the shader's WGSL function.
func (s *Shader) EntryPoint() string {
	return "shade_" + s.Name
}

// CompileFunc compiles WGSL to SPIR-V bytes.
type CompileFunc func(wgsl string) ([]byte, error)

// Library is a shader registry with a cache of compiled uber shaders.
// Library is safe for concurrent use.
type Library struct {
	mu      sync.RWMutex
	byID    map[ID]*Shader
	byName  map[string]ID
	nextID  ID
	prelude string

	compile  CompileFunc
	programs *cache.Cache[string, *Program]
}

// NewLibrary creates a library holding the reserved shaders. Compiled
// uber shaders are cached up to cacheSize entries; compile nil selects
// the naga compiler.
func NewLibrary(cacheSize int, compile CompileFunc) *Library {
	if compile == nil {
		compile = nagaCompile
	}
	l := &Library{
		byID:     make(map[ID]*Shader),
		byName:   make(map[string]ID),
		nextID:   FirstUserID,
		prelude:  mustSource("prelude"),
		compile:  compile,
		programs: cache.New[string, *Program](cacheSize),
	}
	l.programs.OnEvict(func(_ string, p *Program) { p.release() })
	for _, r := range reserved {
		l.byID[r.id] = &Shader{ID: r.id, Name: r.name, Source: mustSource(r.name)}
		l.byName[r.name] = r.id
	}
	return l
}

func mustSource(name string) string {
	b, err := sources.ReadFile("shaders/" + name + ".wgsl")
	if err != nil {
		panic(fmt.Sprintf("shader: missing embedded source %s: %v", name, err))
	}
	return string(b)
}

// Register adds a shader. source must define fn shade_<name>.
func (l *Library) Register(name, source string) (ID, error) {
	if !validName.MatchString(name) {
		return 0, fmt.Errorf("%w: bad name %q", ErrInvalidSource, name)
	}
	if !strings.Contains(source, "fn shade_"+name+"(") {
		return 0, fmt.Errorf("%w: %q does not define shade_%s", ErrInvalidSource, name, name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byName[name]; ok {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateShader, name)
	}
	id := l.nextID
	l.nextID++
	l.byID[id] = &Shader{ID: id, Name: name, Source: source}
	l.byName[name] = id
	return id, nil
}

// Lookup returns the shader with the given id.
func (l *Library) Lookup(id ID) (*Shader, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownShader, id)
	}
	return s, nil
}

// ByName returns the id of a named shader.
func (l *Library) ByName(name string) (ID, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byName[name]
	return id, ok
}

// Len returns the number of registered shaders.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byID)
}

// UberKey is the set of shaders consolidated into one uber shader.
type UberKey struct {
	ids []ID
}

// CreateUberShadingKey returns an empty key.
func (l *Library) CreateUberShadingKey() *UberKey {
	return &UberKey{}
}

// AddShader adds id to key. It fails for unregistered ids.
func (l *Library) AddShader(key *UberKey, id ID) error {
	if _, err := l.Lookup(id); err != nil {
		return err
	}
	key.Add(id)
	return nil
}

// Add inserts id, keeping the set sorted.
func (k *UberKey) Add(id ID) {
	i, found := slices.BinarySearch(k.ids, id)
	if !found {
		k.ids = slices.Insert(k.ids, i, id)
	}
}

// Shaders returns the ids in the key, ascending.
func (k *UberKey) Shaders() []ID {
	return k.ids
}

// Len returns the number of shaders in the key.
func (k *UberKey) Len() int {
	return len(k.ids)
}

// Signature returns a string identifying the shader set.
func (k *UberKey) Signature() string {
	var b strings.Builder
	for i, id := range k.ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(id)))
	}
	return b.String()
}

// Source assembles the WGSL of the uber shader for key.
func (l *Library) Source(key *UberKey) (string, error) {
	shaders := make([]*Shader, 0, key.Len())
	for _, id := range key.ids {
		s, err := l.Lookup(id)
		if err != nil {
			return "", err
		}
		shaders = append(shaders, s)
	}

	var b strings.Builder
	b.WriteString(l.prelude)
	for _, s := range shaders {
		b.WriteString("\n")
		b.WriteString(s.Source)
	}
	b.WriteString("\n@fragment\nfn fs_main(in: Fragment) -> @location(0) vec4<f32> {\n")
	b.WriteString("    switch in.shader {\n")
	for _, s := range shaders {
		fmt.Fprintf(&b, "        case %du: { return %s(in); }\n", s.ID, s.EntryPoint())
	}
	b.WriteString("        default: { return vec4<f32>(0.0); }\n")
	b.WriteString("    }\n}\n")
	return b.String(), nil
}
