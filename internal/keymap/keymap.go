// Package keymap loads the mapping from output symbols to physical keys.
//
// A keymap file binds each symbol to the keys that produce it:
//
//	name = "qwerty"
//
//	[bindings]
//	"S-" = ["q", "a"]
//	"T-" = ["w"]
//	"no-op" = ["z", "x"]
//	"Mark as chord" = ["F1"]
//
// The symbol "no-op" binds keys that take part in chords but contribute
// nothing. A few special actions may also be bound; their keys never reach
// the classifier. TOML, YAML and JSON files are accepted and all are checked
// against the same JSON schema before use.
package keymap

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"halfkbd/internal/chord"
	"halfkbd/internal/keystroke"
)

// NoOp is the symbol for keys that produce nothing.
const NoOp = "no-op"

// Special actions. Keys bound to these are dropped at capture.
const (
	ActionMarkAsChord   = "Mark as chord"
	ActionMarkAsKeys    = "Mark as keys"
	ActionChangeToChord = "Change to chord"
	ActionChangeToKeys  = "Change to keys"
)

// Actions lists every special action.
var Actions = []string{
	ActionMarkAsChord,
	ActionMarkAsKeys,
	ActionChangeToChord,
	ActionChangeToKeys,
}

// IsAction reports whether symbol is a special action.
func IsAction(symbol string) bool {
	return slices.Contains(Actions, symbol)
}

var (
	// ErrDuplicateKey is returned when a key is bound to more than one symbol.
	ErrDuplicateKey = errors.New("key bound more than once")

	// ErrUnknownKey is returned for a key no capture backend can report.
	ErrUnknownKey = errors.New("unknown key")

	// ErrSchema is returned when a file does not match the keymap schema.
	ErrSchema = errors.New("keymap does not match schema")
)

// Format is a keymap file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension. Unknown extensions
// are read as TOML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Keymap binds output symbols to physical keys.
type Keymap struct {
	Name     string              `toml:"name,omitempty" json:"name,omitempty" yaml:"name,omitempty"`
	Bindings map[string][]string `toml:"bindings" json:"bindings" yaml:"bindings"`
}

//go:embed keymap.schema.json
var schemaJSON []byte

const schemaURL = "keymap.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return compiler.Compile(schemaURL)
})

// Parse decodes and validates a keymap.
func Parse(data []byte, format Format) (*Keymap, error) {
	var doc map[string]any
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown keymap format %q", format)
	}

	// Normalise every format to JSON values before checking the schema.
	normalised, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalise keymap: %w", err)
	}
	var instance any
	if err := json.Unmarshal(normalised, &instance); err != nil {
		return nil, fmt.Errorf("normalise keymap: %w", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile keymap schema: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	km := &Keymap{}
	if err := json.Unmarshal(normalised, km); err != nil {
		return nil, fmt.Errorf("decode keymap: %w", err)
	}
	if err := km.Validate(); err != nil {
		return nil, err
	}
	return km, nil
}

// Load reads a keymap file.
func Load(path string) (*Keymap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keymap: %w", err)
	}
	km, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return km, nil
}

// Save writes the keymap to path in the format its extension names.
func (k *Keymap) Save(path string) error {
	data, err := k.Marshal(FormatFromPath(path))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create keymap directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Marshal encodes the keymap.
func (k *Keymap) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(k, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(k)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(k); err != nil {
			return nil, fmt.Errorf("encode TOML: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown keymap format %q", format)
	}
}

// Validate checks that every key is known and bound at most once.
func (k *Keymap) Validate() error {
	var errs []error
	owner := make(map[string]string)

	for _, symbol := range k.Symbols() {
		for _, key := range k.Bindings[symbol] {
			if !keystroke.SupportedKey(key) {
				errs = append(errs, fmt.Errorf("%w: %q (bound to %q)", ErrUnknownKey, key, symbol))
				continue
			}
			if prev, ok := owner[key]; ok {
				errs = append(errs, fmt.Errorf("%w: %q is bound to %q and %q", ErrDuplicateKey, key, prev, symbol))
				continue
			}
			owner[key] = symbol
		}
	}
	return errors.Join(errs...)
}

// Symbols returns the bound symbols in sorted order.
func (k *Keymap) Symbols() []string {
	symbols := make([]string, 0, len(k.Bindings))
	for s := range k.Bindings {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Keys returns every bound key, including no-op and action keys, in sorted
// order. These are the keys a capture backend suppresses.
func (k *Keymap) Keys() []string {
	var keys []string
	for _, ks := range k.Bindings {
		keys = append(keys, ks...)
	}
	sort.Strings(keys)
	return slices.Compact(keys)
}

// ChordBindings returns the key to symbol table the classifier uses. No-op
// keys map to the empty symbol; action keys are left out.
func (k *Keymap) ChordBindings() chord.Bindings {
	b := make(chord.Bindings)
	for symbol, keys := range k.Bindings {
		if IsAction(symbol) {
			continue
		}
		if symbol == NoOp {
			symbol = ""
		}
		for _, key := range keys {
			b[key] = symbol
		}
	}
	return b
}

// ActionKeys returns the keys bound to special actions, mapped to their
// action.
func (k *Keymap) ActionKeys() map[string]string {
	actions := make(map[string]string)
	for symbol, keys := range k.Bindings {
		if !IsAction(symbol) {
			continue
		}
		for _, key := range keys {
			actions[key] = symbol
		}
	}
	return actions
}
