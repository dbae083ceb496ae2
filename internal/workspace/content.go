package workspace

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a named deny-list entry matched against text write payloads.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Description string
}

// PatternMatch reports where a deny pattern matched.
type PatternMatch struct {
	PatternName string
	MatchedText string
	LineNumber  int
	Column      int
}

// ContentValidator scans text write payloads for patterns associated with
// process spawning or dynamic code evaluation. It is advisory: a match
// aborts the write before any filesystem mutation, but callers may bypass
// the check per call.
type ContentValidator struct {
	patterns []Pattern
}

// DefaultPatterns returns the built-in deny list. The set is deliberately
// narrow; site-specific additions come from configuration.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "python-subprocess",
			Regex:       regexp.MustCompile(`\bimport\s+subprocess\b|\bfrom\s+subprocess\s+import\b|\bsubprocess\.(Popen|run|call|check_output)\b`),
			Description: "Python subprocess module usage",
		},
		{
			Name:        "os-system",
			Regex:       regexp.MustCompile(`\bos\.(system|popen|exec[lv]p?e?|spawn[lv]p?e?)\s*\(`),
			Description: "Python os-level process spawning",
		},
		{
			Name:        "dynamic-eval",
			Regex:       regexp.MustCompile(`\b(eval|exec|compile)\s*\(`),
			Description: "dynamic code evaluation",
		},
		{
			Name:        "node-child-process",
			Regex:       regexp.MustCompile(`\brequire\s*\(\s*['"]child_process['"]\s*\)|\bchild_process\b`),
			Description: "Node.js child_process usage",
		},
		{
			Name:        "shell-command-substitution",
			Regex:       regexp.MustCompile("\\$\\(\\s*(curl|wget|bash|sh)\\b|`\\s*(curl|wget|bash|sh)\\b"),
			Description: "shell command substitution fetching or running code",
		},
		{
			Name:        "java-runtime-exec",
			Regex:       regexp.MustCompile(`\bRuntime\.getRuntime\(\)\.exec\s*\(`),
			Description: "Java process spawning",
		},
	}
}

// NewContentValidator compiles exprs into a deny list. An empty list
// falls back to DefaultPatterns. Configured expressions are named by
// position (custom-1, custom-2, ...).
func NewContentValidator(exprs []string) (*ContentValidator, error) {
	if len(exprs) == 0 {
		return &ContentValidator{patterns: DefaultPatterns()}, nil
	}

	patterns := make([]Pattern, 0, len(exprs))
	for i, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid deny pattern %q: %w", expr, err)
		}
		patterns = append(patterns, Pattern{
			Name:  fmt.Sprintf("custom-%d", i+1),
			Regex: re,
		})
	}

	return &ContentValidator{patterns: patterns}, nil
}

// AddPattern appends a pattern to the deny list.
func (v *ContentValidator) AddPattern(p Pattern) {
	v.patterns = append(v.patterns, p)
}

// Check scans content line by line and returns the first match, or nil
// when the content passes.
func (v *ContentValidator) Check(content string) *PatternMatch {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		for _, pattern := range v.patterns {
			loc := pattern.Regex.FindStringIndex(line)
			if loc == nil {
				continue
			}
			return &PatternMatch{
				PatternName: pattern.Name,
				MatchedText: line[loc[0]:loc[1]],
				LineNumber:  i + 1,
				Column:      loc[0] + 1,
			}
		}
	}
	return nil
}
