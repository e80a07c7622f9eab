package npm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gobwas/glob"
)

// PackageJSONRaw defines the package.json of a NPM package as it appears on
// disk. Duck-typed fields are decoded leniently and normalized by
// ToPackageJSON.
type PackageJSONRaw struct {
	Name                 string          `json:"name"`
	Version              string          `json:"version"`
	Type                 string          `json:"type"`
	Main                 JSONAny         `json:"main"`
	Module               JSONAny         `json:"module"`
	Browser              json.RawMessage `json:"browser"`
	Exports              json.RawMessage `json:"exports"`
	Imports              json.RawMessage `json:"imports"`
	SideEffects          any             `json:"sideEffects"`
	Dependencies         any             `json:"dependencies"`
	PeerDependencies     any             `json:"peerDependencies"`
	PeerDependenciesMeta any             `json:"peerDependenciesMeta"`
}

// PeerDependencyMeta defines a `peerDependenciesMeta` entry.
type PeerDependencyMeta struct {
	Optional bool `json:"optional"`
}

// PackageJSON is the normalized form of a package manifest consumed by the
// resolver. The `exports`, `imports` and object-form `browser` fields keep
// their declaration order: for all three, iteration order decides which
// branch wins on ties.
type PackageJSON struct {
	Name                 string
	Version              string
	Type                 string
	Main                 string
	Module               string
	BrowserEntry         string // string-form browser field
	Browser              JSONObject
	Exports              JSONObject
	Imports              JSONObject
	SideEffects          *SideEffects
	Dependencies         map[string]string
	PeerDependencies     map[string]string
	PeerDependenciesMeta map[string]PeerDependencyMeta

	// the full manifest with declaration order kept, for arbitrary
	// string-valued entry fields ("jsnext:main", "sass", ...)
	fields JSONObject
}

// StringField returns the manifest field with the given name if its value is
// a string.
func (p *PackageJSON) StringField(name string) string {
	if v, ok := p.fields.Get(name); ok {
		if s, isStr := v.(string); isStr {
			return s
		}
	}
	return ""
}

// ParsePackageJSON parses and normalizes a package manifest.
func ParsePackageJSON(data []byte) (*PackageJSON, error) {
	var raw PackageJSONRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	p := raw.ToPackageJSON()
	// keep the ordered raw fields for custom entry-field lookups
	if err := p.fields.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return p, nil
}

// ToPackageJSON converts PackageJSONRaw to PackageJSON.
func (a *PackageJSONRaw) ToPackageJSON() *PackageJSON {
	p := &PackageJSON{
		Name:    a.Name,
		Version: a.Version,
		Type:    a.Type,
		Main:    a.Main.MainString(),
		Module:  a.Module.MainString(),
	}

	if a.Browser != nil {
		var s string
		if json.Unmarshal(a.Browser, &s) == nil {
			p.BrowserEntry = s
		} else {
			p.Browser.UnmarshalJSON(a.Browser)
		}
	}

	if a.Exports != nil {
		p.Exports = normalizeExports(a.Exports)
	}
	if a.Imports != nil {
		p.Imports.UnmarshalJSON(a.Imports)
	}

	p.Dependencies = toStringMap(a.Dependencies)
	p.PeerDependencies = toStringMap(a.PeerDependencies)

	if m, ok := a.PeerDependenciesMeta.(map[string]any); ok {
		p.PeerDependenciesMeta = make(map[string]PeerDependencyMeta, len(m))
		for k, v := range m {
			if meta, ok := v.(map[string]any); ok {
				b, _ := meta["optional"].(bool)
				p.PeerDependenciesMeta[k] = PeerDependencyMeta{Optional: b}
			}
		}
	}

	p.SideEffects = parseSideEffects(a.SideEffects)
	return p
}

// normalizeExports maps all the export shorthand forms onto a subpath-keyed
// object: a bare string/array target or a condition object without subpath
// keys becomes the target of the "." subpath.
// see https://nodejs.org/api/packages.html#exports
func normalizeExports(raw json.RawMessage) JSONObject {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s == "" {
			return JSONObject{}
		}
		return NewJSONObject([]string{"."}, map[string]any{".": s})
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		arr, err := parseJSONArray(raw)
		if err != nil {
			return JSONObject{}
		}
		return NewJSONObject([]string{"."}, map[string]any{".": arr})
	}
	var obj JSONObject
	if obj.UnmarshalJSON(raw) != nil {
		return JSONObject{}
	}
	for _, key := range obj.Keys() {
		if strings.HasPrefix(key, ".") {
			return obj
		}
	}
	// a conditions object applies to the root subpath
	if obj.Len() > 0 {
		return NewJSONObject([]string{"."}, map[string]any{".": obj})
	}
	return obj
}

// SideEffects is the compiled form of a manifest `sideEffects` field.
type SideEffects struct {
	none  bool
	globs []glob.Glob
}

func parseSideEffects(v any) *SideEffects {
	switch se := v.(type) {
	case bool:
		if se {
			return nil // same as absent: everything may have side effects
		}
		return &SideEffects{none: true}
	case string:
		return compileSideEffects([]string{se})
	case []any:
		patterns := make([]string, 0, len(se))
		for _, item := range se {
			if s, ok := item.(string); ok {
				patterns = append(patterns, s)
			}
		}
		return compileSideEffects(patterns)
	}
	return nil
}

func compileSideEffects(patterns []string) *SideEffects {
	se := &SideEffects{}
	for _, pattern := range patterns {
		// a pattern without a slash matches against the basename anywhere
		// in the package, per the webpack sideEffects contract
		if !strings.ContainsRune(pattern, '/') {
			pattern = "**/" + pattern
		}
		pattern = strings.TrimPrefix(pattern, "./")
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			continue
		}
		se.globs = append(se.globs, g)
	}
	return se
}

// Match reports whether the package-relative path is declared to have side
// effects. A nil receiver means the manifest made no declaration, which is
// treated as "has side effects" by the caller.
func (se *SideEffects) Match(relPath string) bool {
	if se == nil {
		return true
	}
	if se.none {
		return false
	}
	relPath = strings.TrimPrefix(relPath, "./")
	for _, g := range se.globs {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

// JSONObject is a readonly JSON object that keeps its key declaration order.
type JSONObject struct {
	keys   []string
	values map[string]any
}

// NewJSONObject creates a JSONObject with the given keys and values.
func NewJSONObject(keys []string, values map[string]any) JSONObject {
	return JSONObject{keys: keys, values: values}
}

// Len returns the number of keys in the object.
func (obj *JSONObject) Len() int {
	return len(obj.keys)
}

// Keys returns the keys in declaration order.
func (obj *JSONObject) Keys() []string {
	return obj.keys
}

// Get returns the value of the key in the object.
func (obj *JSONObject) Get(key string) (any, bool) {
	v, ok := obj.values[key]
	return v, ok
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (obj *JSONObject) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	t, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := t.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expect JSON object open with '{'")
	}
	if err := obj.parse(dec); err != nil {
		return err
	}
	if t, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("expect end of JSON object but got more token: %T: %v or err: %v", t, t, err)
	}
	return nil
}

func (obj *JSONObject) parse(dec *json.Decoder) (err error) {
	var t json.Token
	for dec.More() {
		t, err = dec.Token()
		if err != nil {
			return err
		}
		key, ok := t.(string)
		if !ok {
			return fmt.Errorf("expecting JSON key should be always a string: %T: %v", t, t)
		}

		t, err = dec.Token()
		if err == io.EOF {
			break
		} else if err != nil {
			return err
		}

		var value any
		value, err = decodeValue(t, dec)
		if err != nil {
			return err
		}

		obj.keys = append(obj.keys, key)
		if obj.values == nil {
			obj.values = make(map[string]any)
		}
		obj.values[key] = value
	}

	t, err = dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := t.(json.Delim); !ok || delim != '}' {
		return fmt.Errorf("expect JSON object close with '}'")
	}
	return nil
}

func decodeArray(dec *json.Decoder) (arr []any, err error) {
	var t json.Token
	arr = make([]any, 0)
	for dec.More() {
		t, err = dec.Token()
		if err != nil {
			return
		}
		var value any
		value, err = decodeValue(t, dec)
		if err != nil {
			return
		}
		arr = append(arr, value)
	}
	t, err = dec.Token()
	if err != nil {
		return
	}
	if delim, ok := t.(json.Delim); !ok || delim != ']' {
		err = fmt.Errorf("expect JSON array close with ']'")
	}
	return
}

func decodeValue(t json.Token, dec *json.Decoder) (any, error) {
	if delim, ok := t.(json.Delim); ok {
		switch delim {
		case '{':
			obj := JSONObject{values: make(map[string]any)}
			if err := obj.parse(dec); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter: %q", delim)
		}
	}
	return t, nil
}

func parseJSONArray(data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	t, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := t.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("expect JSON array open with '['")
	}
	return decodeArray(dec)
}

// JSONAny is a union over the string and object forms a manifest entry field
// may take.
type JSONAny struct {
	Str string
	Map map[string]any
	Any any
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (a *JSONAny) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) == nil {
		a.Str = s
		return nil
	}
	var m map[string]any
	if json.Unmarshal(b, &m) == nil {
		a.Map = m
		return nil
	}
	return json.Unmarshal(b, &a.Any)
}

// MainString returns the string form of the field, falling back to the "."
// key of the object form.
func (a *JSONAny) MainString() string {
	if a.Str != "" {
		return a.Str
	}
	if a.Map != nil {
		if v, ok := a.Map["."]; ok {
			if s, isStr := v.(string); isStr {
				return s
			}
		}
	}
	return ""
}

func toStringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, item := range m {
		if s, ok := item.(string); ok && k != "" && s != "" {
			out[k] = s
		}
	}
	return out
}
