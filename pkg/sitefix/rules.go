// Package sitefix holds the per-site DOM normalization table applied to a
// page before it reaches an extraction engine. Rules are data: each row pairs
// a URL matcher with a transform, and only the first matching row runs.
package sitefix

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/readerview/pkg/config"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

// Transform mutates a parsed page in place. Transforms must tolerate missing
// structure and must leave the document unchanged when applied a second time.
type Transform func(doc *goquery.Document)

// Rule is one row of the normalization table
type Rule struct {
	Name        string
	Host        string           // Exact host match, lowercase; empty matches any host
	URLContains []string         // Every substring must appear in the lowercased URL
	Paths       []*regexp.Regexp // When set, at least one must match the URL path
	Transform   Transform
}

// Matches reports whether the rule applies to u
func (r Rule) Matches(u *url.URL) bool {
	if u == nil {
		return false
	}
	if r.Host == "" && len(r.URLContains) == 0 && len(r.Paths) == 0 {
		return false
	}
	if r.Host != "" && strings.ToLower(u.Hostname()) != r.Host {
		return false
	}
	raw := strings.ToLower(u.String())
	for _, sub := range r.URLContains {
		if !strings.Contains(raw, strings.ToLower(sub)) {
			return false
		}
	}
	if len(r.Paths) == 0 {
		return true
	}
	for _, re := range r.Paths {
		if re.MatchString(u.Path) {
			return true
		}
	}
	return false
}

// Table is an ordered rule set; the first matching rule wins
type Table struct {
	rules []Rule
	log   *logrus.Entry
}

// NewTable builds a table from rules in precedence order
func NewTable(log *logrus.Entry, rules ...Rule) *Table {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Table{rules: rules, log: log.WithField("component", "sitefix")}
}

// FromConfig builds the table described by configuration rows
func FromConfig(rows []config.RuleConfig, log *logrus.Entry) (*Table, error) {
	rules := make([]Rule, 0, len(rows))
	for i := range rows {
		row := rows[i]
		if err := row.Validate(); err != nil {
			return nil, err
		}
		var tf Transform
		switch row.Action {
		case config.ActionPictureSrcSet:
			tf = ResolvePictureSources()
		case config.ActionArchiveCleanup:
			tf = ArchiveMirrorCleanup(row.RemoveSelectors, row.SrcSetAttr)
		case config.ActionRemoveElements:
			tf = RemoveElements(row.RemoveSelectors...)
		case config.ActionStripConditionalComments:
			tf = StripConditionalComments()
		default:
			return nil, fmt.Errorf("rule %q: unsupported action %q", row.Name, row.Action)
		}
		paths, err := utils.CompilePatterns(row.PathPatterns)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", row.Name, err)
		}
		rules = append(rules, Rule{
			Name:        row.Name,
			Host:        row.Host,
			URLContains: row.URLContains,
			Paths:       paths,
			Transform:   tf,
		})
	}
	return NewTable(log, rules...), nil
}

// Default returns the built-in table
func Default(log *logrus.Entry) *Table {
	t, err := FromConfig(config.DefaultRules(), log)
	if err != nil {
		panic(fmt.Sprintf("sitefix: built-in rules invalid: %v", err))
	}
	return t
}

// Rules returns a copy of the table rows in precedence order
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Match returns the first rule matching u
func (t *Table) Match(u *url.URL) (Rule, bool) {
	for _, r := range t.rules {
		if r.Matches(u) {
			return r, true
		}
	}
	return Rule{}, false
}

// Apply runs the first matching rule against doc and returns its name, or ""
// when no rule matched. A failing transform is logged and leaves whatever
// partial mutation it made; it never propagates.
func (t *Table) Apply(doc *goquery.Document, u *url.URL) (applied string) {
	if t == nil || doc == nil {
		return ""
	}
	r, ok := t.Match(u)
	if !ok || r.Transform == nil {
		return ""
	}
	defer func() {
		if p := recover(); p != nil {
			t.log.WithFields(logrus.Fields{"rule": r.Name, "url": u.String()}).Errorf("Normalization rule panicked: %v", p)
		}
	}()
	r.Transform(doc)
	t.log.WithFields(logrus.Fields{"rule": r.Name, "url": u.String()}).Debug("Applied normalization rule")
	return r.Name
}
