package detectors

import (
	"sort"
	"strings"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

// Ensure ExtensionDetector implements the interface.
var _ driven.Detector = (*ExtensionDetector)(nil)

// DefaultRules are the built-in extension and name-token rules.
func DefaultRules() map[domain.Tag]domain.DetectorRule {
	return map[domain.Tag]domain.DetectorRule{
		domain.TagCompress:   {ExtAny: []string{".cw7", ".xml"}, NameTokensAny: []string{"compress", "codeware"}},
		domain.TagAMETank:    {ExtAny: []string{".mdl", ".xmt_txt"}, NameTokensAny: []string{"ametank", "ame"}},
		domain.TagCAD:        {ExtAny: []string{".dwg", ".dxf"}},
		domain.TagPDF:        {ExtAny: []string{".pdf"}},
		domain.TagLegacyCalc: {ExtAny: []string{".wk1", ".wk3", ".wk4", ".fmt", ".prn"}},
		domain.TagExcel:      {ExtAny: []string{".xlsx", ".xlsm", ".xls", ".csv"}},
		domain.TagWord:       {ExtAny: []string{".docx", ".doc"}},
		domain.TagPowerPoint: {ExtAny: []string{".pptx", ".ppt"}},
		domain.TagArchive:    {ExtAny: []string{".zip", ".7z", ".rar"}},
		domain.TagPhoto:      {ExtAny: []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".heic"}},
	}
}

// MergeRules overlays configured rules on the defaults. A configured
// field replaces the default field of the same tag; unknown tags are
// added as new rules.
func MergeRules(base map[domain.Tag]domain.DetectorRule, overrides map[string]domain.DetectorRule) map[domain.Tag]domain.DetectorRule {
	out := make(map[domain.Tag]domain.DetectorRule, len(base)+len(overrides))
	for t, r := range base {
		out[t] = r
	}
	for name, o := range overrides {
		tag := domain.ParseTag(name)
		if tag == "" {
			continue
		}
		r := out[tag]
		if o.ExtAny != nil {
			r.ExtAny = o.ExtAny
		}
		if o.NameTokensAny != nil {
			r.NameTokensAny = o.NameTokensAny
		}
		out[tag] = r
	}
	return out
}

type compiledRule struct {
	tag    domain.Tag
	exts   map[string]struct{}
	tokens map[string]struct{}
}

// ExtensionDetector tags a file when its extension, or any of its name
// tokens, is listed in a rule.
type ExtensionDetector struct {
	rules []compiledRule
}

// NewExtensionDetector compiles rules keyed by tag.
func NewExtensionDetector(rules map[domain.Tag]domain.DetectorRule) *ExtensionDetector {
	d := &ExtensionDetector{}
	for tag, r := range rules {
		c := compiledRule{
			tag:    tag,
			exts:   make(map[string]struct{}, len(r.ExtAny)),
			tokens: make(map[string]struct{}, len(r.NameTokensAny)),
		}
		for _, e := range r.ExtAny {
			e = strings.ToLower(strings.TrimSpace(e))
			if e != "" && !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			if e != "" {
				c.exts[e] = struct{}{}
			}
		}
		for _, t := range r.NameTokensAny {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				c.tokens[t] = struct{}{}
			}
		}
		d.rules = append(d.rules, c)
	}
	sort.Slice(d.rules, func(i, j int) bool { return d.rules[i].tag < d.rules[j].tag })
	return d
}

// Name identifies the detector.
func (d *ExtensionDetector) Name() string { return "extension" }

// Detect returns every tag whose rule matches.
func (d *ExtensionDetector) Detect(p *domain.FileSample) []domain.Tag {
	if p == nil {
		return nil
	}
	ext := strings.ToLower(p.Ext)
	var tags []domain.Tag
	for _, r := range d.rules {
		if _, ok := r.exts[ext]; ok && ext != "" {
			tags = append(tags, r.tag)
			continue
		}
		for _, tok := range p.NameTokens {
			if _, ok := r.tokens[tok]; ok {
				tags = append(tags, r.tag)
				break
			}
		}
	}
	return tags
}
