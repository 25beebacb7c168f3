package readme

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vcpkg-mcp/pkg/types"
)

func TestParseUsageExamples_SingleBlock(t *testing.T) {
	md := "# Boost.Algorithm\n\n## Usage\n\n```cpp\n#include <boost/algorithm.hpp>\n```\n"

	examples := New(nil).ParseUsageExamples(md)
	require.Len(t, examples, 1)
	assert.Equal(t, "Usage", examples[0].Title)
	assert.Equal(t, "cpp", examples[0].Language)
	assert.Contains(t, examples[0].Code, "#include <boost/algorithm.hpp>")
}

func TestParseUsageExamples_DedupSameSection(t *testing.T) {
	md := strings.Join([]string{
		"## Usage",
		"```cpp",
		"#include <lib.h>",
		"```",
		"## Usage",
		"```cpp",
		"#include <lib.h>",
		"```",
	}, "\n")

	examples := New(nil).ParseUsageExamples(md)
	require.Len(t, examples, 1)
	assert.Equal(t, "#include <lib.h>", examples[0].Code)
}

func TestParseUsageExamples_DedupKeyIncludesTitle(t *testing.T) {
	md := strings.Join([]string{
		"## Usage",
		"```cpp",
		"#include <lib.h>",
		"```",
		"## Example",
		"```cpp",
		"#include <lib.h>",
		"```",
	}, "\n")

	examples := New(nil).ParseUsageExamples(md)
	require.Len(t, examples, 2)
	assert.Equal(t, "Usage", examples[0].Title)
	assert.Equal(t, "Example", examples[1].Title)

	for _, ex := range examples {
		assert.NotEqual(t, includesTitle, ex.Title, "include already covered by a fenced block")
	}
}

func TestParseUsageExamples_SkipsNonUsageSections(t *testing.T) {
	md := strings.Join([]string{
		"# mylib",
		"## License",
		"```text",
		"MIT",
		"```",
		"## Changelog",
		"```",
		"v1.0 initial",
		"```",
	}, "\n")

	assert.Empty(t, New(nil).ParseUsageExamples(md))
}

func TestParseUsageExamples_Descriptions(t *testing.T) {
	md := strings.Join([]string{
		"## Getting Started",
		"Install the package first.",
		"",
		"Then run:",
		"```sh",
		"vcpkg install fmt",
		"```",
		"Link it:",
		"```cmake",
		"target_link_libraries(main PRIVATE fmt::fmt)",
		"```",
	}, "\n")

	examples := New(nil).ParseUsageExamples(md)
	require.Len(t, examples, 2)

	assert.Equal(t, "Getting Started", examples[0].Title)
	assert.Equal(t, "Install the package first. Then run:", examples[0].Description)
	assert.Equal(t, "bash", examples[0].Language)
	assert.Equal(t, "vcpkg install fmt", examples[0].Code)

	assert.Equal(t, "Link it:", examples[1].Description)
	assert.Equal(t, "cmake", examples[1].Language)
}

func TestParseUsageExamples_HeadingMatching(t *testing.T) {
	tests := []struct {
		heading string
		usage   bool
	}{
		{"Usage", true},
		{"Basic Usage", true},
		{"Examples", true},
		{"CMake integration", true},
		{"Installing with vcpkg", true},
		{"Quick Start", true},
		{"use", true}, // contained in "how to use"
		{"License", false},
		{"API Reference", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.heading, func(t *testing.T) {
			assert.Equal(t, tt.usage, isUsageSection(tt.heading))
		})
	}
}

func TestParseUsageExamples_EmptyAndUnterminated(t *testing.T) {
	e := New(nil)

	assert.Empty(t, e.ParseUsageExamples(""))
	assert.Empty(t, e.ParseUsageExamples("## Usage\n```cpp\n\n```"))
	assert.Empty(t, e.ParseUsageExamples("## Usage\n```cpp\nint main() {}\n"), "unterminated fence emits nothing")
}

func TestParseUsageExamples_HeadingInsideCode(t *testing.T) {
	md := "## Usage\n```bash\n# install the port\nvcpkg install zlib\n```\n"

	examples := New(nil).ParseUsageExamples(md)
	require.Len(t, examples, 1)
	assert.Equal(t, "Usage", examples[0].Title)
	assert.Contains(t, examples[0].Code, "# install the port")
}

func TestParseUsageExamples_BuildCalls(t *testing.T) {
	md := strings.Join([]string{
		"# zlib",
		"The package provides CMake targets:",
		"    find_package(ZLIB REQUIRED)",
		"    target_link_libraries(main PRIVATE ZLIB::ZLIB)",
		"and find_package(x) is too short.",
	}, "\n")

	examples := New(nil).ParseUsageExamples(md)
	require.Len(t, examples, 2)
	for _, ex := range examples {
		assert.Equal(t, buildTitle, ex.Title)
		assert.Equal(t, "cmake", ex.Language)
	}
	assert.Equal(t, "find_package(ZLIB REQUIRED)", examples[0].Code)
	assert.Equal(t, "target_link_libraries(main PRIVATE ZLIB::ZLIB)", examples[1].Code)
}

func TestParseUsageExamples_IncludeBatch(t *testing.T) {
	var lines []string
	lines = append(lines, "# Overview", "```cpp")
	for _, h := range []string{"a", "b", "c", "a", "d", "e", "f"} {
		lines = append(lines, "#include <"+h+".h>")
	}
	lines = append(lines, "```")

	examples := New(nil).ParseUsageExamples(strings.Join(lines, "\n"))
	require.Len(t, examples, 1)
	assert.Equal(t, includesTitle, examples[0].Title)
	assert.Equal(t, "cpp", examples[0].Language)
	assert.Equal(t, "#include <a.h>\n#include <b.h>\n#include <c.h>\n#include <d.h>\n#include <e.h>", examples[0].Code)
}

func TestParseUsageExamples_ResultsAreValid(t *testing.T) {
	md := "## Usage\n```\ncode\n```\n## Example\n```C++\nint x;\n```\n"

	examples := New(nil).ParseUsageExamples(md)
	require.Len(t, examples, 2)
	assert.Equal(t, "text", examples[0].Language)
	assert.Equal(t, "cpp", examples[1].Language)
	for _, ex := range examples {
		assert.NoError(t, ex.Validate())
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]string{
		"c++":     "cpp",
		"CXX":     "cpp",
		"cc":      "cpp",
		"sh":      "bash",
		"shell":   "bash",
		"ps1":     "powershell",
		"yml":     "yaml",
		"make":    "makefile",
		"":        "text",
		"  ":      "text",
		" CMake ": "cmake",
		"Python":  "python",
	}

	for in, want := range tests {
		assert.Equal(t, want, NormalizeLanguage(in), "input %q", in)
	}
}

func TestFenceLanguage(t *testing.T) {
	assert.Equal(t, "cpp", fenceLanguage("```cpp"))
	assert.Equal(t, "cpp", fenceLanguage("``` cpp title=main.cpp"))
	assert.Equal(t, "python", fenceLanguage("```python{1,3}"))
	assert.Equal(t, "", fenceLanguage("```"))
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want string
	}{
		{
			name: "text after first heading",
			md:   "# fmt\n\nA modern formatting library.\nFast and safe.\n\n## Install\nvcpkg install fmt",
			want: "A modern formatting library.\nFast and safe.",
		},
		{
			name: "badges before and after heading",
			md:   "[![CI](https://ci/badge.svg)](https://ci)\n# zlib\n\n[![Build](b.svg)](c)\n![logo](logo.png)\n\nCompression library.\n# Next",
			want: "Compression library.",
		},
		{
			name: "no heading",
			md:   "Just some text",
			want: "",
		},
		{
			name: "nothing between headings",
			md:   "# A\n\n## B\ntext",
			want: "",
		},
		{
			name: "single heading",
			md:   "# A\n\nOnly section.",
			want: "Only section.",
		},
		{
			name: "comment in code is not a heading",
			md:   "# A\nIntro\n```sh\n# comment\n```\n## B",
			want: "Intro\n```sh\n# comment\n```",
		},
	}

	e := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.ExtractDescription(tt.md))
		})
	}
}

func TestCleanupContent(t *testing.T) {
	md := strings.Join([]string{
		"# lib [![CI](https://ci/badge.svg)](https://ci/run)",
		"<!-- hidden",
		"comment -->",
		"",
		"",
		"",
		"",
		"See [the docs](docs/README.md), [guide](./guide.md) and [site](https://example.com).",
		"Jump to [usage](#usage) or [mail](mailto:a@b.c).",
		"",
	}, "\n")

	got := New(nil).CleanupContent(md)

	assert.NotContains(t, got, "badge.svg")
	assert.NotContains(t, got, "hidden")
	assert.NotContains(t, got, "\n\n\n")
	assert.Contains(t, got, "[the docs](https://github.com/microsoft/vcpkg/blob/master/docs/README.md)")
	assert.Contains(t, got, "[guide](https://github.com/microsoft/vcpkg/blob/master/guide.md)")
	assert.Contains(t, got, "[site](https://example.com)")
	assert.Contains(t, got, "[usage](#usage)")
	assert.Contains(t, got, "[mail](mailto:a@b.c)")
	assert.True(t, strings.HasPrefix(got, "# lib"))
	assert.False(t, strings.HasSuffix(got, "\n"))
}

func TestCleanupContent_Idempotent(t *testing.T) {
	fixtures := []string{
		"",
		"plain text",
		"[![a](b)](c)\n\n\n\ntext",
		"<!-- x -->\n\n\n<!--\nmulti\n-->\nbody\n\n\n\n",
		"  [rel](a/b.md)  \n\n\n![img](img/logo.png)",
		"# T\r\n\r\n\r\n\r\nwindows [x](y)",
		"[abs](http://example.com) [![b](c)](d) <!-- c -->",
		"[![ci](badge.svg)<!-- x -->](ci)\n\ntext",
	}

	e := New(nil)
	for _, md := range fixtures {
		once := e.CleanupContent(md)
		assert.Equal(t, once, e.CleanupContent(once), "fixture %q", md)
	}
}

func TestCleanupContent_CommentInsideBadge(t *testing.T) {
	e := New(nil)
	assert.Equal(t, "text", e.CleanupContent("[![ci](badge.svg)<!-- x -->](ci)\n\ntext"))
}

func TestDedupExamples_DropsInvalid(t *testing.T) {
	examples := []types.UsageExample{
		{Title: "Usage", Code: "find_package(zlib)", Language: "cmake"},
		{Title: "", Code: "orphan()", Language: "cmake"},
		{Title: "Usage", Code: "", Language: "cmake"},
		{Title: "Usage", Code: "find_package(zlib)", Language: "cmake"},
	}

	out := dedupExamples(examples)
	require.Len(t, out, 1)
	assert.Equal(t, "find_package(zlib)", out[0].Code)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Basic Usage", titleCase("basic usage"))
	assert.Equal(t, "Über Guide", titleCase("über guide"))
	assert.Equal(t, "", titleCase("  "))
}
