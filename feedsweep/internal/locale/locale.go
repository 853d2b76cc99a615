// CLAUDE:SUMMARY Declarative marker -> UI text pattern table (ja/en built in, YAML-extendable) with NFKC-normalised matching.
// Package locale holds every piece of on-screen text the engine recognises.
// Classifier, prober and actuator ask the table whether a string carries a
// marker; supporting another UI language is a matter of adding patterns.
package locale

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Marker is the canonical meaning of a piece of UI text.
type Marker string

const (
	Promoted      Marker = "promoted"
	Mute          Marker = "mute"
	NotInterested Marker = "not_interested"
	NotRelevant   Marker = "not_relevant"
	Follow        Marker = "follow"
	Unfollow      Marker = "unfollow"
	Reshare       Marker = "reshare"
	Upsell        Marker = "upsell"
	Toast         Marker = "toast"
	ForYouTab     Marker = "for_you_tab"
	FollowingTab  Marker = "following_tab"
	MoreLabel     Marker = "more_label"
	CloseLabel    Marker = "close_label"
)

var known = map[Marker]bool{
	Promoted: true, Mute: true, NotInterested: true, NotRelevant: true,
	Follow: true, Unfollow: true, Reshare: true, Upsell: true, Toast: true,
	ForYouTab: true, FollowingTab: true, MoreLabel: true, CloseLabel: true,
}

// Pattern is one way a marker shows up on screen. Exactly one of Text or
// Regex is set. Text matches as a substring, case-insensitively when Fold is
// set.
type Pattern struct {
	Locale string `yaml:"locale"`
	Text   string `yaml:"text"`
	Regex  string `yaml:"regex"`
	Fold   bool   `yaml:"fold"`

	re *regexp.Regexp
}

func (p *Pattern) compile() error {
	switch {
	case p.Text != "" && p.Regex != "":
		return fmt.Errorf("both text and regex set")
	case p.Regex != "":
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return err
		}
		p.re = re
	case p.Text != "":
		p.Text = Normalize(p.Text)
		if p.Fold {
			p.Text = strings.ToLower(p.Text)
		}
	default:
		return fmt.Errorf("empty pattern")
	}
	return nil
}

func (p *Pattern) match(s, lower string) bool {
	switch {
	case p.re != nil:
		return p.re.MatchString(s)
	case p.Fold:
		return strings.Contains(lower, p.Text)
	default:
		return strings.Contains(s, p.Text)
	}
}

// Table maps markers to their patterns. A Table is immutable once built and
// safe for concurrent use.
type Table struct {
	markers map[Marker][]Pattern
}

// Default returns the built-in ja/en table.
func Default() *Table {
	t, err := Parse(defaultYAML)
	if err != nil {
		panic("locale: embedded table: " + err.Error())
	}
	return t
}

// Parse reads a table from YAML.
func Parse(data []byte) (*Table, error) {
	var raw map[Marker][]Pattern
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("locale: parse: %w", err)
	}
	t := &Table{markers: make(map[Marker][]Pattern, len(raw))}
	for m, pats := range raw {
		if !known[m] {
			return nil, fmt.Errorf("locale: unknown marker %q", m)
		}
		for i := range pats {
			if err := pats[i].compile(); err != nil {
				return nil, fmt.Errorf("locale: %s[%d]: %w", m, i, err)
			}
		}
		t.markers[m] = pats
	}
	return t, nil
}

// LoadFile reads a table from a YAML file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("locale: %w", err)
	}
	return Parse(data)
}

// Merge returns a new table holding the patterns of t followed by those of
// other.
func (t *Table) Merge(other *Table) *Table {
	out := &Table{markers: make(map[Marker][]Pattern, len(t.markers))}
	for m, p := range t.markers {
		out.markers[m] = append([]Pattern(nil), p...)
	}
	if other != nil {
		for m, p := range other.markers {
			out.markers[m] = append(out.markers[m], p...)
		}
	}
	return out
}

// Match reports whether s carries marker m in any locale.
func (t *Table) Match(m Marker, s string) bool {
	pats := t.markers[m]
	if len(pats) == 0 || s == "" {
		return false
	}
	s = Normalize(s)
	lower := strings.ToLower(s)
	for i := range pats {
		if pats[i].match(s, lower) {
			return true
		}
	}
	return false
}

// Locales lists the locale tags present in the table.
func (t *Table) Locales() []string {
	seen := make(map[string]bool)
	for _, pats := range t.markers {
		for _, p := range pats {
			if p.Locale != "" {
				seen[p.Locale] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Normalize folds compatibility forms (full-width Latin, half-width kana)
// so patterns match regardless of how the page renders them.
func Normalize(s string) string {
	return norm.NFKC.String(s)
}
