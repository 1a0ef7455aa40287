package tools

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

const maxFileContent = 10000

// ReadFileArgs is the input for read_file_content tool.
type ReadFileArgs struct {
	Filepath string `json:"filepath" jsonschema:"Path of the file to read, relative to the working directory"`
}

// ListDirectoryArgs is the input for list_directory tool.
type ListDirectoryArgs struct {
	Path string `json:"path,omitempty" jsonschema:"Directory to list, relative to the working directory"`
}

// DirEntry is one item returned by list_directory.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
	Size  int64  `json:"size,omitempty"`
}

// ListDirectoryResult is the output for list_directory tool.
type ListDirectoryResult struct {
	Success bool       `json:"success"`
	Data    []DirEntry `json:"data,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// resolveInWorkDir resolves p against workDir and rejects paths that escape it.
func resolveInWorkDir(workDir, p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(workDir, p)
	}

	absPath, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("invalid working directory: %w", err)
	}

	if !within(absWorkDir, absPath) {
		return "", fmt.Errorf("access denied: path is outside working directory")
	}

	// Symlinks are followed before the final check so a link inside the
	// working directory cannot point outside it.
	realWorkDir, err := filepath.EvalSymlinks(absWorkDir)
	if err != nil {
		return "", fmt.Errorf("invalid working directory: %w", err)
	}
	realPath, err := filepath.EvalSymlinks(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		return absPath, nil
	}
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if !within(realWorkDir, realPath) {
		return "", fmt.Errorf("access denied: path is outside working directory")
	}
	return realPath, nil
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func readFile(workDir string, args ReadFileArgs) ToolResult {
	if args.Filepath == "" {
		return ToolResult{Success: false, Error: "filepath is required"}
	}

	absPath, err := resolveInWorkDir(workDir, args.Filepath)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("failed to read file: %v", err)}
	}

	contentStr := string(content)
	if len(contentStr) > maxFileContent {
		contentStr = truncateString(contentStr, maxFileContent) + "\n... (truncated)"
	}
	return ToolResult{Success: true, Data: contentStr}
}

func listDirectory(workDir string, args ListDirectoryArgs) ListDirectoryResult {
	dirPath := args.Path
	if dirPath == "" {
		dirPath = "."
	}

	absPath, err := resolveInWorkDir(workDir, dirPath)
	if err != nil {
		return ListDirectoryResult{Success: false, Error: err.Error()}
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return ListDirectoryResult{Success: false, Error: fmt.Sprintf("failed to read directory: %v", err)}
	}

	items := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		item := DirEntry{Name: entry.Name(), IsDir: entry.IsDir()}
		if info, err := entry.Info(); err == nil && !entry.IsDir() {
			item.Size = info.Size()
		}
		items = append(items, item)
	}
	return ListDirectoryResult{Success: true, Data: items}
}

func createReadFileTool(cfg ToolsConfig) (tool.Tool, error) {
	handler := func(ctx tool.Context, args ReadFileArgs) (ToolResult, error) {
		return readFile(cfg.WorkDir, args), nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "read_file_content",
		Description: "Read a file from the working directory. Use it to check how existing code follows the rules.",
	}, handler)
}

func createListDirectoryTool(cfg ToolsConfig) (tool.Tool, error) {
	handler := func(ctx tool.Context, args ListDirectoryArgs) (ListDirectoryResult, error) {
		return listDirectory(cfg.WorkDir, args), nil
	}

	return functiontool.New(functiontool.Config{
		Name:        "list_directory",
		Description: "List files and subdirectories in the working directory.",
	}, handler)
}

// truncateString cuts s to at most limit bytes without splitting a rune.
func truncateString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
