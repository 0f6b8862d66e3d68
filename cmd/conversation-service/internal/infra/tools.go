package infra

import (
	"fmt"
	"os"

	"chatassistant/cmd/conversation-service/internal/domain"

	"gopkg.in/yaml.v3"
)

// toolsFile 工具定义文件
type toolsFile struct {
	Tools []domain.ToolDefinition `yaml:"tools"`
}

// DefaultTools 内置工具定义
func DefaultTools() []domain.ToolDefinition {
	return []domain.ToolDefinition{{
		Name: "change_background_color",
		Description: "Change the background color of the chat interface using Tailwind CSS color classes. " +
			"Available colors: slate, gray, zinc, neutral, stone, red, orange, amber, yellow, lime, green, emerald, " +
			"teal, cyan, sky, blue, indigo, violet, purple, fuchsia, pink, rose. " +
			"Shades: 50, 100, 200, 300, 400, 500, 600, 700, 800, 900. Also: white, black.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"color": map[string]any{
					"type": "string",
					"description": `A Tailwind CSS background color class (e.g., "bg-blue-500", "bg-slate-100", "bg-rose-200"). ` +
						`Use the full class name with "bg-" prefix.`,
				},
			},
			"required": []any{"color"},
		},
	}}
}

// LoadToolDefinitions 从 YAML 文件加载工具定义，路径为空时使用内置定义
func LoadToolDefinitions(path string) ([]domain.ToolDefinition, error) {
	if path == "" {
		return DefaultTools(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools file: %w", err)
	}

	var file toolsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tools file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Tools))
	for i, tool := range file.Tools {
		if tool.Name == "" {
			return nil, fmt.Errorf("tool #%d has no name", i)
		}
		if _, ok := seen[tool.Name]; ok {
			return nil, fmt.Errorf("duplicate tool %q", tool.Name)
		}
		seen[tool.Name] = struct{}{}
	}

	return file.Tools, nil
}
