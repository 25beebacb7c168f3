package readme

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/dshills/vcpkg-mcp/pkg/types"
)

const (
	// DefaultLinkBase prefixes relative links rewritten by CleanupContent
	DefaultLinkBase = "https://github.com/microsoft/vcpkg/blob/master/"

	// MaxIncludes is the number of #include lines folded into one example
	MaxIncludes = 5

	// minBuildCallLength filters trivial build system calls
	minBuildCallLength = 20

	includesTitle = "Header Includes"
	buildTitle    = "CMake Integration"
)

// usageSections are heading texts that mark usage documentation. A heading
// matches when either string contains the other.
var usageSections = []string{
	"usage",
	"examples",
	"example",
	"quick start",
	"quickstart",
	"getting started",
	"how to use",
	"tutorial",
	"guide",
	"basic usage",
	"simple example",
	"sample code",
	"integration",
	"installation",
	"cmake",
	"vcpkg",
}

var languageAliases = map[string]string{
	"c++":   "cpp",
	"cxx":   "cpp",
	"cc":    "cpp",
	"sh":    "bash",
	"shell": "bash",
	"ps1":   "powershell",
	"yml":   "yaml",
	"make":  "makefile",
	"":      "text",
}

var (
	headingLine    = regexp.MustCompile(`^\s{0,3}(#{1,6})\s+(.*?)\s*#*\s*$`)
	buildCall      = regexp.MustCompile(`(?:find_package|target_link_libraries)\s*\([^)]*\)`)
	includeLine    = regexp.MustCompile(`(?m)^[ \t]*#include[ \t]*[<"][^>"\n]+[>"]`)
	badgeLink      = regexp.MustCompile(`\[!\[[^\]]*\]\([^)]*\)\]\([^)]*\)`)
	htmlComment    = regexp.MustCompile(`(?s)<!--.*?-->`)
	blankRun       = regexp.MustCompile(`\n{3,}`)
	markdownLink   = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)
	absoluteTarget = regexp.MustCompile(`^(?i:[a-z][a-z0-9+.-]*:|//|#)`)
)

// Extractor pulls descriptions and usage examples out of README markdown
type Extractor struct {
	linkBase string
	logger   log.Logger
}

// New creates an Extractor. logger may be nil.
func New(logger log.Logger) *Extractor {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Extractor{linkBase: DefaultLinkBase, logger: logger}
}

// scanState tracks one pass over the markdown lines
type scanState struct {
	section     string // current heading text
	usage       bool   // current section is usage-like
	title       string // pending example title
	description []string

	inCode   bool
	language string
	code     []string
}

// ParseUsageExamples extracts usage examples from markdown. It never fails:
// on an internal error the examples found so far are returned.
func (e *Extractor) ParseUsageExamples(markdown string) (examples []types.UsageExample) {
	defer func() {
		if r := recover(); r != nil {
			level.Error(e.logger).Log("msg", "usage example extraction failed", "err", fmt.Sprint(r), "partial", len(examples))
			examples = dedupExamples(examples)
		}
	}()

	var st scanState
	for _, line := range strings.Split(normalizeNewlines(markdown), "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			if !st.inCode {
				st.inCode = true
				st.language = fenceLanguage(trimmed)
				st.code = st.code[:0]
				continue
			}
			st.inCode = false
			if ex, ok := st.example(); ok {
				examples = append(examples, ex)
				st.description = nil
			}
			continue
		}

		if st.inCode {
			st.code = append(st.code, line)
			continue
		}

		if m := headingLine.FindStringSubmatch(line); m != nil {
			st.section = m[2]
			st.usage = isUsageSection(m[2])
			st.description = nil
			st.title = ""
			if st.usage {
				st.title = m[2]
			}
			continue
		}

		if st.usage && trimmed != "" {
			st.description = append(st.description, trimmed)
		}
	}

	examples = append(examples, patternExamples(markdown, examples)...)
	return dedupExamples(examples)
}

// example builds the example for a just closed code block
func (st *scanState) example() (types.UsageExample, bool) {
	code := strings.TrimSpace(strings.Join(st.code, "\n"))
	if code == "" || !st.usage {
		return types.UsageExample{}, false
	}

	title := st.title
	if title == "" {
		title = titleCase(st.section)
	}
	return types.UsageExample{
		Title:       title,
		Description: strings.Join(st.description, " "),
		Code:        code,
		Language:    NormalizeLanguage(st.language),
	}, true
}

// patternExamples finds build system calls and include lines anywhere in
// the text. Matches already present in a fenced example are skipped.
func patternExamples(markdown string, found []types.UsageExample) []types.UsageExample {
	var out []types.UsageExample

	for _, call := range buildCall.FindAllString(markdown, -1) {
		call = strings.TrimSpace(call)
		if len(call) < minBuildCallLength || coveredBy(found, call) {
			continue
		}
		out = append(out, types.UsageExample{
			Title:       buildTitle,
			Description: "CMake configuration for linking the library",
			Code:        call,
			Language:    "cmake",
		})
	}

	var includes []string
	seen := make(map[string]bool)
	for _, inc := range includeLine.FindAllString(markdown, -1) {
		inc = strings.TrimSpace(inc)
		if seen[inc] {
			continue
		}
		seen[inc] = true
		includes = append(includes, inc)
		if len(includes) == MaxIncludes {
			break
		}
	}
	if len(includes) > 0 {
		code := strings.Join(includes, "\n")
		if !coveredBy(found, includes...) {
			out = append(out, types.UsageExample{
				Title:       includesTitle,
				Description: "Headers to include",
				Code:        code,
				Language:    "cpp",
			})
		}
	}

	return out
}

// coveredBy reports whether every snippet appears in some example's code
func coveredBy(examples []types.UsageExample, snippets ...string) bool {
	for _, s := range snippets {
		hit := false
		for _, ex := range examples {
			if strings.Contains(ex.Code, s) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// dedupExamples drops invalid examples and repeated (title, code) pairs,
// keeping first-seen order
func dedupExamples(examples []types.UsageExample) []types.UsageExample {
	type key struct{ title, code string }
	seen := make(map[key]bool, len(examples))
	out := make([]types.UsageExample, 0, len(examples))
	for _, ex := range examples {
		if ex.Validate() != nil {
			continue
		}
		k := key{ex.Title, ex.Code}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, ex)
	}
	return out
}

// ExtractDescription returns the text between the first and second heading,
// skipping leading blank lines and badge images. It returns "" when the
// document has no heading or nothing follows it.
func (e *Extractor) ExtractDescription(markdown string) (desc string) {
	defer func() {
		if r := recover(); r != nil {
			level.Error(e.logger).Log("msg", "description extraction failed", "err", fmt.Sprint(r))
			desc = ""
		}
	}()

	var (
		block      []string
		seenHeader bool
		inCode     bool
	)
	for _, line := range strings.Split(normalizeNewlines(markdown), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inCode = !inCode
		}

		if !inCode && headingLine.MatchString(line) {
			if seenHeader {
				break
			}
			seenHeader = true
			continue
		}
		if !seenHeader {
			continue
		}

		if len(block) == 0 && (trimmed == "" || isBadge(trimmed)) {
			continue
		}
		block = append(block, line)
	}

	return strings.TrimSpace(strings.Join(block, "\n"))
}

// CleanupContent strips badges and HTML comments, collapses blank line runs
// and makes relative links absolute. The input is returned unchanged if
// anything goes wrong.
func (e *Extractor) CleanupContent(markdown string) (cleaned string) {
	defer func() {
		if r := recover(); r != nil {
			level.Error(e.logger).Log("msg", "content cleanup failed", "err", fmt.Sprint(r))
			cleaned = markdown
		}
	}()

	out := normalizeNewlines(markdown)
	// Comments go first; one inside a badge would hide it from badgeLink
	out = htmlComment.ReplaceAllString(out, "")
	out = badgeLink.ReplaceAllString(out, "")
	out = blankRun.ReplaceAllString(out, "\n\n")
	out = markdownLink.ReplaceAllStringFunc(out, e.absoluteLink)
	return strings.TrimSpace(out)
}

func (e *Extractor) absoluteLink(link string) string {
	m := markdownLink.FindStringSubmatch(link)
	target := m[2]
	if absoluteTarget.MatchString(target) {
		return link
	}
	target = strings.TrimPrefix(strings.TrimPrefix(target, "./"), "/")
	return "[" + m[1] + "](" + e.linkBase + target + ")"
}

// NormalizeLanguage maps fence language aliases to canonical tags
func NormalizeLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if canonical, ok := languageAliases[tag]; ok {
		return canonical
	}
	return tag
}

func isUsageSection(heading string) bool {
	h := strings.ToLower(strings.TrimSpace(heading))
	if h == "" {
		return false
	}
	for _, s := range usageSections {
		if strings.Contains(h, s) || strings.Contains(s, h) {
			return true
		}
	}
	return false
}

func isBadge(line string) bool {
	return strings.HasPrefix(line, "[![") || strings.HasPrefix(line, "![")
}

// fenceLanguage returns the info string's first word of an opening fence
func fenceLanguage(fence string) string {
	info := strings.TrimSpace(strings.TrimLeft(fence, "`"))
	if i := strings.IndexAny(info, " \t{"); i >= 0 {
		info = info[:i]
	}
	return info
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
