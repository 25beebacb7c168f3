package vcpkg

import (
	"regexp"
	"strings"
)

var fromGitHubCall = regexp.MustCompile(`(?is)vcpkg_from_github\s*\(([^)]*)\)`)

// UpstreamSource is where a port downloads its sources from
type UpstreamSource struct {
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Ref     string `json:"ref,omitempty"`
	SHA512  string `json:"sha512,omitempty"`
	HeadRef string `json:"head_ref,omitempty"`
}

// FullName returns owner/repo
func (u *UpstreamSource) FullName() string {
	return u.Owner + "/" + u.Repo
}

// Portfile is the metadata extracted from portfile.cmake
type Portfile struct {
	Upstream *UpstreamSource `json:"upstream,omitempty"`
}

// ParsePortfile extracts the first vcpkg_from_github call. version expands
// ${VERSION} in the ref; pass "" to leave it untouched.
func ParsePortfile(content, version string) *Portfile {
	pf := &Portfile{}

	m := fromGitHubCall.FindStringSubmatch(stripCMakeComments(content))
	if m == nil {
		return pf
	}

	args := parseCallArgs(m[1])
	owner, repo, ok := strings.Cut(args["REPO"], "/")
	if !ok || owner == "" || repo == "" {
		return pf
	}

	ref := args["REF"]
	if version != "" {
		ref = strings.ReplaceAll(ref, "${VERSION}", version)
	}

	pf.Upstream = &UpstreamSource{
		Owner:   owner,
		Repo:    repo,
		Ref:     ref,
		SHA512:  args["SHA512"],
		HeadRef: args["HEAD_REF"],
	}
	return pf
}

// parseCallArgs reads KEY value pairs of a cmake call. Flags without a
// value map to "".
func parseCallArgs(body string) map[string]string {
	fields := strings.Fields(body)
	args := make(map[string]string, len(fields)/2)
	for i := 0; i < len(fields); i++ {
		key := fields[i]
		if !isKeyword(key) {
			continue
		}
		if i+1 < len(fields) && !isKeyword(fields[i+1]) {
			args[key] = strings.Trim(fields[i+1], `"`)
			i++
			continue
		}
		args[key] = ""
	}
	return args
}

func isKeyword(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && r != '_' && (r < '0' || r > '9') {
			return false
		}
	}
	return s[0] >= 'A' && s[0] <= 'Z'
}

func stripCMakeComments(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "#"); idx >= 0 && !strings.Contains(line[:idx], `"`) {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}
