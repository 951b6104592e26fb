package agentloop

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// RegisterCoreTools registers read_file, write_file and list_files on reg.
// The tools delegate to the ExecutionEnvironment passed at execution time.
func RegisterCoreTools(reg *ToolRegistry) {
	registerReadFile(reg)
	registerWriteFile(reg)
	registerListFiles(reg)
}

func registerReadFile(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        "read_file",
			Description: "Read the full contents of a file in the workspace.",
			Parameters: objectSchema(map[string]string{
				"path": "Path to the file, relative to the workspace root.",
			}, "path"),
		},
		Executor: func(raw json.RawMessage, env ExecutionEnvironment) (string, error) {
			var args pathArgs
			if err := decodeArgs(raw, &args); err != nil {
				return "", err
			}
			content, err := env.ReadFile(args.Path)
			switch {
			case err == nil:
				return content, nil
			case isPolicyError(err):
				return "", err
			case errors.Is(err, fs.ErrNotExist):
				return "File not found: " + args.Path, nil
			default:
				return "Error reading file: " + err.Error(), nil
			}
		},
	})
}

func registerWriteFile(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        "write_file",
			Description: "Write content to a file in the workspace. Creates parent directories and overwrites existing content.",
			Parameters: objectSchema(map[string]string{
				"path":    "Path to the file, relative to the workspace root.",
				"content": "Complete new file contents.",
			}, "path", "content"),
		},
		Executor: func(raw json.RawMessage, env ExecutionEnvironment) (string, error) {
			var args struct {
				pathArgs
				Content string `json:"content"`
			}
			if err := decodeArgs(raw, &args); err != nil {
				return "", err
			}
			if err := env.WriteFile(args.Path, args.Content); err != nil {
				if isPolicyError(err) {
					return "", err
				}
				return "Error writing file: " + err.Error(), nil
			}
			return fmt.Sprintf("Successfully wrote %d bytes to %s", len(args.Content), args.Path), nil
		},
	})
}

func registerListFiles(reg *ToolRegistry) {
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{
			Name:        "list_files",
			Description: "List the entries of a directory in the workspace. Directories are suffixed with /.",
			Parameters: objectSchema(map[string]string{
				"path": "Directory path relative to the workspace root. Use . for the root.",
			}, "path"),
		},
		Executor: func(raw json.RawMessage, env ExecutionEnvironment) (string, error) {
			var args pathArgs
			if err := decodeArgs(raw, &args); err != nil {
				return "", err
			}
			entries, err := env.ListDirectory(args.Path)
			switch {
			case err == nil:
			case isPolicyError(err):
				return "", err
			case errors.Is(err, fs.ErrNotExist):
				return "Directory not found: " + args.Path, nil
			default:
				return "Error listing directory: " + err.Error(), nil
			}
			if len(entries) == 0 {
				return "Directory is empty: " + args.Path, nil
			}
			names := make([]string, len(entries))
			for i, e := range entries {
				names[i] = e.Name
				if e.IsDir {
					names[i] += "/"
				}
			}
			return strings.Join(names, "\n"), nil
		},
	})
}

type pathArgs struct {
	Path string `json:"path"`
}

func decodeArgs(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// objectSchema builds a closed JSON Schema object whose properties are all
// strings.
func objectSchema(props map[string]string, required ...string) map[string]interface{} {
	properties := make(map[string]interface{}, len(props))
	for name, desc := range props {
		properties[name] = map[string]interface{}{"type": "string", "description": desc}
	}
	return map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func isPolicyError(err error) bool {
	return errors.Is(err, ErrPathOutsideWorkspace) || errors.Is(err, ErrPathRequired)
}
