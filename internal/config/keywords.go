package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	"shopwatch/internal/filter"
	"shopwatch/internal/model"
)

type keywordFile struct {
	Keywords []keywordEntry `json:"keywords"`

	// Per-site lists of plain queries.
	Yahoo      []string `json:"yahoo"`
	Mercari    []string `json:"mercari"`
	Lashinbang []string `json:"lashinbang"`
}

type keywordEntry struct {
	Query     string   `json:"query"`
	Sources   []string `json:"sources"`
	Include   []string `json:"include"`
	Exclude   []string `json:"exclude"`
	IncludeRe []string `json:"include_re"`
	ExcludeRe []string `json:"exclude_re"`
}

// LoadKeywords reads the JSON5 keyword file at path, merged with
// <name>.local.<ext> next to it when present, and validates every entry
// against the enabled sources.
func LoadKeywords(path string, enabled []model.Source, log *slog.Logger) ([]model.Keyword, error) {
	file, err := readFile[keywordFile](path, log)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &ConfigError{Field: "KEYWORDS_PATH", Reason: fmt.Sprintf("keyword file %s not found", path)}
	}
	if err != nil {
		return nil, &ConfigError{Field: "KEYWORDS_PATH", Reason: err.Error()}
	}
	return file.keywords(enabled)
}

func (f keywordFile) keywords(enabled []model.Source) ([]model.Keyword, error) {
	var out []model.Keyword
	for i, e := range f.Keywords {
		field := fmt.Sprintf("keywords[%d]", i)
		kw, err := e.keyword(field, enabled)
		if err != nil {
			return nil, err
		}
		out = append(out, kw)
	}

	perSite := []struct {
		src     model.Source
		queries []string
	}{
		{model.SourceYahoo, f.Yahoo},
		{model.SourceMercari, f.Mercari},
		{model.SourceLashinbang, f.Lashinbang},
	}
	for _, site := range perSite {
		for i, q := range site.queries {
			e := keywordEntry{Query: q, Sources: []string{string(site.src)}}
			kw, err := e.keyword(fmt.Sprintf("%s[%d]", site.src, i), enabled)
			if err != nil {
				return nil, err
			}
			out = append(out, kw)
		}
	}

	if len(out) == 0 {
		return nil, &ConfigError{Field: "keywords", Reason: "no keywords configured"}
	}
	return out, nil
}

func (e keywordEntry) keyword(field string, enabled []model.Source) (model.Keyword, error) {
	kw := model.Keyword{Query: strings.TrimSpace(e.Query)}
	if kw.Query == "" {
		return kw, &ConfigError{Field: field + ".query", Reason: "must not be empty"}
	}

	for _, s := range e.Sources {
		src := model.Source(strings.ToLower(strings.TrimSpace(s)))
		if !src.Valid() {
			return kw, &ConfigError{Field: field + ".sources", Reason: fmt.Sprintf("unknown source %q", s)}
		}
		if !contains(enabled, src) {
			return kw, &ConfigError{Field: field + ".sources", Reason: fmt.Sprintf("source %q is not configured", s)}
		}
		kw.Sources = append(kw.Sources, src)
	}

	rules := []struct {
		kind   model.RuleKind
		values []string
	}{
		{model.RuleInclude, e.Include},
		{model.RuleExclude, e.Exclude},
		{model.RuleIncludeRe, e.IncludeRe},
		{model.RuleExcludeRe, e.ExcludeRe},
	}
	for _, r := range rules {
		for _, v := range r.values {
			if strings.TrimSpace(v) == "" {
				continue
			}
			if r.kind == model.RuleIncludeRe || r.kind == model.RuleExcludeRe {
				if err := filter.ValidateRegex(v); err != nil {
					return kw, &ConfigError{Field: field + "." + string(r.kind), Reason: err.Error()}
				}
			}
			kw.Rules = append(kw.Rules, model.Rule{Kind: r.kind, Value: v})
		}
	}
	return kw, nil
}

func contains(list []model.Source, src model.Source) bool {
	for _, s := range list {
		if s == src {
			return true
		}
	}
	return false
}

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), strings.TrimPrefix(ext, ".")
}

// readFile decodes the JSON5 file name and then merges <name>.local.<ext>
// over it. It returns os.ErrNotExist only when neither file exists.
func readFile[T any](name string, log *slog.Logger) (T, error) {
	var out T
	found := false

	data, err := os.ReadFile(name) //nolint:gosec // path comes from configuration
	if err != nil && !os.IsNotExist(err) {
		return out, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) > 0 {
		if err := json5.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("decode %s: %w", name, err)
		}
		found = true
	}

	prefix, ext := splitExt(filepath.Base(name))
	local := filepath.Join(filepath.Dir(name), fmt.Sprintf("%s.local.%s", prefix, ext))
	data, err = os.ReadFile(local) //nolint:gosec // path derived from configuration
	if err != nil && !os.IsNotExist(err) {
		return out, fmt.Errorf("read %s: %w", local, err)
	}
	if len(data) > 0 {
		var override T
		if err := json5.Unmarshal(data, &override); err != nil {
			return out, fmt.Errorf("decode %s: %w", local, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("merge %s: %w", local, err)
		}
		log.Info("merging keywords with local overrides", "local", local)
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}
