package conversation

import "github.com/tcz/rotarygpt/internal/tools"

// ToolRegistryAdapter adapts a *tools.Registry to the ToolRegistry
// interface this package owns, so tools never needs to import conversation.
type ToolRegistryAdapter struct {
	Registry *tools.Registry
}

func (a ToolRegistryAdapter) ExportedSchemas() []ExportedTool {
	schemas := a.Registry.ExportedSchemas()
	out := make([]ExportedTool, 0, len(schemas))
	for _, s := range schemas {
		props := make(map[string]ToolProperty, len(s.Parameters.Properties))
		for name, p := range s.Parameters.Properties {
			props[name] = ToolProperty{Type: p.Type, Description: p.Description}
		}
		out = append(out, ExportedTool{
			Name:        s.Name,
			Description: s.Description,
			Parameters: ToolSchema{
				Type:       s.Parameters.Type,
				Properties: props,
				Required:   s.Parameters.Required,
			},
		})
	}
	return out
}

func (a ToolRegistryAdapter) CallJSON(name string, rawArgs []byte) string {
	return a.Registry.CallJSON(name, rawArgs)
}
