package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Resolver confines relative paths to a workspace root, rejecting any
// path that would escape it via ".." or an absolute override.
type Resolver struct {
	Root string
}

// Resolve returns the absolute path of p under r.Root, or an error if p
// escapes the root.
func (r Resolver) Resolve(p string) (string, error) {
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return "", fmt.Errorf("tools: resolve root: %w", err)
	}
	joined := filepath.Join(root, p)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("tools: resolve path: %w", err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("tools: resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("tools: path %q escapes workspace root", p)
	}
	return abs, nil
}

// WriteFileArgs is the schema for write_file.
type WriteFileArgs struct {
	Path    string `json:"path" jsonschema:"required,description=Path relative to the workspace root"`
	Content string `json:"content" jsonschema:"required,description=File content to write"`
}

// WriteFileTool writes a file under the workspace, creating parent
// directories as needed, via write-to-temp-then-rename for atomicity.
type WriteFileTool struct {
	resolver Resolver
}

// NewWriteFileTool returns a WriteFileTool confined to root.
func NewWriteFileTool(root string) *WriteFileTool {
	return &WriteFileTool{resolver: Resolver{Root: root}}
}

func (w *WriteFileTool) Name() string        { return "write_file" }
func (w *WriteFileTool) Description() string { return "Write a file within the session workspace." }
func (w *WriteFileTool) Schema() json.RawMessage {
	return GenerateSchema(WriteFileArgs{})
}

func (w *WriteFileTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var a WriteFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return &Result{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}

	target, err := w.resolver.Resolve(a.Path)
	if err != nil {
		return &Result{Content: err.Error(), IsError: true}, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &Result{Content: fmt.Sprintf("mkdir: %v", err), IsError: true}, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return &Result{Content: fmt.Sprintf("create temp: %v", err), IsError: true}, nil
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(a.Content); err != nil {
		tmp.Close()
		return &Result{Content: fmt.Sprintf("write: %v", err), IsError: true}, nil
	}
	if err := tmp.Close(); err != nil {
		return &Result{Content: fmt.Sprintf("close: %v", err), IsError: true}, nil
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return &Result{Content: fmt.Sprintf("rename: %v", err), IsError: true}, nil
	}

	return &Result{Content: fmt.Sprintf("wrote %d bytes to %s", len(a.Content), a.Path)}, nil
}

// ReadFileArgs is the schema for read_file.
type ReadFileArgs struct {
	Path string `json:"path" jsonschema:"required,description=Path relative to the workspace root"`
}

// ReadFileTool reads a file within the workspace.
type ReadFileTool struct {
	resolver Resolver
}

// NewReadFileTool returns a ReadFileTool confined to root.
func NewReadFileTool(root string) *ReadFileTool {
	return &ReadFileTool{resolver: Resolver{Root: root}}
}

func (rt *ReadFileTool) Name() string        { return "read_file" }
func (rt *ReadFileTool) Description() string { return "Read a file within the session workspace." }
func (rt *ReadFileTool) Schema() json.RawMessage {
	return GenerateSchema(ReadFileArgs{})
}

func (rt *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var a ReadFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return &Result{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}

	target, err := rt.resolver.Resolve(a.Path)
	if err != nil {
		return &Result{Content: err.Error(), IsError: true}, nil
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return &Result{Content: fmt.Sprintf("no such file: %s", a.Path), IsError: true}, nil
		}
		return &Result{Content: fmt.Sprintf("read: %v", err), IsError: true}, nil
	}
	return &Result{Content: string(data)}, nil
}

// ListFilesArgs is the schema for list_files.
type ListFilesArgs struct {
	Path string `json:"path" jsonschema:"description=Directory to list, relative to the workspace root (defaults to the root itself)"`
}

// ListFilesTool lists the immediate entries of a directory within the
// workspace.
type ListFilesTool struct {
	resolver Resolver
}

// NewListFilesTool returns a ListFilesTool confined to root.
func NewListFilesTool(root string) *ListFilesTool {
	return &ListFilesTool{resolver: Resolver{Root: root}}
}

func (l *ListFilesTool) Name() string { return "list_files" }
func (l *ListFilesTool) Description() string {
	return "List the files and subdirectories directly under a workspace directory."
}
func (l *ListFilesTool) Schema() json.RawMessage {
	return GenerateSchema(ListFilesArgs{})
}

func (l *ListFilesTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var a ListFilesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return &Result{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}

	target, err := l.resolver.Resolve(a.Path)
	if err != nil {
		return &Result{Content: err.Error(), IsError: true}, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		if os.IsNotExist(err) {
			return &Result{Content: fmt.Sprintf("no such directory: %s", a.Path), IsError: true}, nil
		}
		return &Result{Content: fmt.Sprintf("list: %v", err), IsError: true}, nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name()+"/")
		} else {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return &Result{Content: "(empty directory)"}, nil
	}
	return &Result{Content: strings.Join(names, "\n")}, nil
}

// DeleteFileArgs is the schema for delete_file.
type DeleteFileArgs struct {
	Path string `json:"path" jsonschema:"required,description=Path relative to the workspace root"`
}

// DeleteFileTool removes a single file within the workspace. It refuses
// to remove directories; use run_command for recursive deletes.
type DeleteFileTool struct {
	resolver Resolver
}

// NewDeleteFileTool returns a DeleteFileTool confined to root.
func NewDeleteFileTool(root string) *DeleteFileTool {
	return &DeleteFileTool{resolver: Resolver{Root: root}}
}

func (d *DeleteFileTool) Name() string        { return "delete_file" }
func (d *DeleteFileTool) Description() string { return "Delete a single file within the session workspace." }
func (d *DeleteFileTool) Schema() json.RawMessage {
	return GenerateSchema(DeleteFileArgs{})
}

func (d *DeleteFileTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var a DeleteFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return &Result{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}

	target, err := d.resolver.Resolve(a.Path)
	if err != nil {
		return &Result{Content: err.Error(), IsError: true}, nil
	}

	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return &Result{Content: fmt.Sprintf("no such file: %s", a.Path), IsError: true}, nil
		}
		return &Result{Content: fmt.Sprintf("stat: %v", err), IsError: true}, nil
	}
	if info.IsDir() {
		return &Result{Content: fmt.Sprintf("%s is a directory, not a file", a.Path), IsError: true}, nil
	}

	if err := os.Remove(target); err != nil {
		return &Result{Content: fmt.Sprintf("delete: %v", err), IsError: true}, nil
	}
	return &Result{Content: fmt.Sprintf("deleted %s", a.Path)}, nil
}

// MkdirArgs is the schema for mkdir.
type MkdirArgs struct {
	Path string `json:"path" jsonschema:"required,description=Directory path relative to the workspace root"`
}

// MkdirTool creates a directory (and any missing parents) within the
// workspace.
type MkdirTool struct {
	resolver Resolver
}

// NewMkdirTool returns a MkdirTool confined to root.
func NewMkdirTool(root string) *MkdirTool {
	return &MkdirTool{resolver: Resolver{Root: root}}
}

func (m *MkdirTool) Name() string        { return "mkdir" }
func (m *MkdirTool) Description() string { return "Create a directory within the session workspace." }
func (m *MkdirTool) Schema() json.RawMessage {
	return GenerateSchema(MkdirArgs{})
}

func (m *MkdirTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var a MkdirArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return &Result{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}

	target, err := m.resolver.Resolve(a.Path)
	if err != nil {
		return &Result{Content: err.Error(), IsError: true}, nil
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return &Result{Content: fmt.Sprintf("mkdir: %v", err), IsError: true}, nil
	}
	return &Result{Content: fmt.Sprintf("created %s", a.Path)}, nil
}
