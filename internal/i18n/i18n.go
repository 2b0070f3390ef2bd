// Package i18n resolves localized bot texts from YAML catalogs.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embedded embed.FS

const (
	localesDir  = "locales"
	fallbackTag = "ru"
)

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	// Tf resolves key and substitutes {{.Name}} placeholders from name/value pairs.
	Tf(key string, kv ...string) string
	Lang() string
}

// catalog maps a language tag to its flattened "section.key" entries.
type catalog map[string]map[string]string

func (c catalog) merge(other catalog) {
	for lang, entries := range other {
		dst, ok := c[lang]
		if !ok {
			dst = make(map[string]string, len(entries))
			c[lang] = dst
		}
		for key, value := range entries {
			dst[key] = value
		}
	}
}

// Manager stores all available translations.
type Manager struct {
	texts       catalog
	defaultLang string
}

// Load reads the catalogs compiled into the binary.
func Load(defaultLang string) (*Manager, error) {
	return LoadFS(embedded, localesDir, defaultLang)
}

// LoadFS loads translations from the YAML files in dir of fsys. Files are merged in name
// order, so a later file overrides keys of an earlier one.
func LoadFS(fsys fs.FS, dir, defaultLang string) (*Manager, error) {
	texts, err := readCatalogs(fsys, dir)
	if err != nil {
		return nil, err
	}

	defaultLang = normalize(defaultLang)
	if defaultLang == "" {
		defaultLang = fallbackTag
	}
	if _, ok := texts[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	return &Manager{texts: texts, defaultLang: defaultLang}, nil
}

// Translator returns a translator for the requested language, falling back to the default one.
// Region suffixes are dropped, so "en-US" resolves to "en".
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	tag := normalize(lang)
	if _, ok := m.texts[tag]; !ok {
		tag = m.defaultLang
	}

	return translator{
		primary:  m.texts[tag],
		fallback: m.texts[m.defaultLang],
		lang:     tag,
	}
}

// Default returns the translator for the configured default language.
func (m *Manager) Default() Translator {
	if m == nil {
		return translator{}
	}
	return m.Translator(m.defaultLang)
}

// Languages returns all loaded languages in sorted order.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}

	languages := make([]string, 0, len(m.texts))
	for lang := range m.texts {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}

func normalize(lang string) string {
	tag := strings.ToLower(strings.TrimSpace(lang))
	tag, _, _ = strings.Cut(tag, "-")
	return tag
}

type translator struct {
	primary  map[string]string
	fallback map[string]string
	lang     string
}

func (t translator) Lang() string {
	return t.lang
}

// T returns the key itself when neither the language nor the default has it.
func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if value := t.primary[key]; value != "" {
		return value
	}
	if value := t.fallback[key]; value != "" {
		return value
	}
	return key
}

func (t translator) Tf(key string, kv ...string) string {
	return Format(t.T(key), kv...)
}

// Format substitutes {{.Name}} placeholders. A trailing name without a value is ignored.
func Format(text string, kv ...string) string {
	if len(kv) < 2 {
		return text
	}

	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{{."+kv[i]+"}}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func readCatalogs(fsys fs.FS, dir string) (catalog, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(fsys, path.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("i18n: glob %s: %w", dir, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("i18n: no yaml files found in %s", dir)
	}
	sort.Strings(files)

	texts := make(catalog)
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("i18n: read file %s: %w", name, err)
		}

		parsed, err := parseCatalog(data)
		if err != nil {
			return nil, fmt.Errorf("i18n: parse file %s: %w", name, err)
		}
		texts.merge(parsed)
	}

	return texts, nil
}

// parseCatalog decodes a document of the form {lang: {section: {key: text}}}.
// Non-string leaves are ignored.
func parseCatalog(data []byte) (catalog, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	out := make(catalog)
	if len(root.Content) == 0 {
		return out, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level must be a mapping of languages")
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		lang := normalize(doc.Content[i].Value)
		body := doc.Content[i+1]
		if lang == "" || body.Kind != yaml.MappingNode {
			continue
		}

		entries := make(map[string]string)
		collect("", body, entries)
		if len(entries) > 0 {
			out[lang] = entries
		}
	}

	return out, nil
}

func collect(prefix string, node *yaml.Node, out map[string]string) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}

		switch value := node.Content[i+1]; value.Kind {
		case yaml.ScalarNode:
			if value.Tag == "!!str" {
				out[key] = value.Value
			}
		case yaml.MappingNode:
			collect(key, value, out)
		}
	}
}
