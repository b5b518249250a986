package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const grepMaxMatches = 200

// GrepArgs is the schema for grep.
type GrepArgs struct {
	Pattern string `json:"pattern" jsonschema:"required,description=Regular expression to search for"`
	Path    string `json:"path" jsonschema:"description=Directory or file to search under, relative to the workspace root (defaults to the root itself)"`
}

// GrepTool recursively searches text files under the workspace for a
// regular expression, in the style of a bounded ripgrep invocation.
type GrepTool struct {
	resolver Resolver
}

// NewGrepTool returns a GrepTool confined to root.
func NewGrepTool(root string) *GrepTool {
	return &GrepTool{resolver: Resolver{Root: root}}
}

func (g *GrepTool) Name() string { return "grep" }
func (g *GrepTool) Description() string {
	return "Search workspace files for lines matching a regular expression."
}
func (g *GrepTool) Schema() json.RawMessage {
	return GenerateSchema(GrepArgs{})
}

func (g *GrepTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var a GrepArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return &Result{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}

	re, err := regexp.Compile(a.Pattern)
	if err != nil {
		return &Result{Content: fmt.Sprintf("invalid pattern: %v", err), IsError: true}, nil
	}

	root, err := g.resolver.Resolve(a.Path)
	if err != nil {
		return &Result{Content: err.Error(), IsError: true}, nil
	}

	var matches []string
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if len(matches) >= grepMaxMatches {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		matches = append(matches, grepFile(path, rel, re, grepMaxMatches-len(matches))...)
		return nil
	})
	if walkErr != nil && walkErr != filepath.SkipAll {
		return &Result{Content: fmt.Sprintf("grep: %v", walkErr), IsError: true}, nil
	}

	if len(matches) == 0 {
		return &Result{Content: "no matches"}, nil
	}
	suffix := ""
	if len(matches) >= grepMaxMatches {
		suffix = fmt.Sprintf("\n... truncated at %d matches", grepMaxMatches)
	}
	return &Result{Content: strings.Join(matches, "\n") + suffix}, nil
}

func grepFile(absPath, relPath string, re *regexp.Regexp, limit int) []string {
	f, err := os.Open(absPath)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if re.MatchString(line) {
			out = append(out, fmt.Sprintf("%s:%d:%s", relPath, lineNo, line))
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}
