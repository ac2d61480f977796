// Package tools implements the tool-function registry the conversation
// controller dispatches LLM tool calls through (spec.md §4.11).
package tools

import (
	"fmt"

	"github.com/tcz/rotarygpt/internal/logging"
)

// Schema is a JSON-Schema subset describing a tool's parameters: an object
// with typed properties and a required list.
type Schema struct {
	Type       string               `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string             `json:"required"`
}

// Property describes one parameter of a tool's Schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ExportedSchema is the {name, description, parameters} shape the LLM
// client sends as part of a chat-completion request.
type ExportedSchema struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

// Handler is a tool's implementation. It runs synchronously on the
// controller's turn and may block on network I/O.
type Handler func(args map[string]interface{}) string

// Descriptor is one registered tool: its qualified name, human description,
// parameter schema, and handler.
type Descriptor struct {
	QualifiedName string
	Description   string
	Parameters    Schema
	Handler       Handler
}

// Registry is a name -> Descriptor map. Duplicate names overwrite the
// previous registration but keep the position of the first one;
// ExportedSchemas lists tools in that first-registration order.
type Registry struct {
	byName map[string]Descriptor
	order  []string
	log    logging.Logger
}

// NewRegistry creates an empty Registry. A nil log defaults to
// logging.NoOpLogger.
func NewRegistry(log logging.Logger) *Registry {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Registry{byName: make(map[string]Descriptor), log: log}
}

// Register stores d under d.QualifiedName, overwriting any prior
// registration with the same name.
func (r *Registry) Register(d Descriptor) {
	if _, exists := r.byName[d.QualifiedName]; !exists {
		r.order = append(r.order, d.QualifiedName)
	}
	r.byName[d.QualifiedName] = d
	r.log.Debug("registered tool", "name", d.QualifiedName)
}

// ExportedSchemas lists every registered tool's {name, description,
// parameters}, in registration order.
func (r *Registry) ExportedSchemas() []ExportedSchema {
	out := make([]ExportedSchema, 0, len(r.order))
	for _, name := range r.order {
		d := r.byName[name]
		out = append(out, ExportedSchema{
			Name:        d.QualifiedName,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	return out
}

// Call dispatches name with parsed JSON args, returning the handler's
// string output. Unknown names and handler panics both return the fixed
// sentinel strings from spec.md §4.11/§7 rather than propagating an error.
func (r *Registry) Call(name string, args map[string]interface{}) (out string) {
	d, ok := r.byName[name]
	if !ok {
		return fmt.Sprintf("Function with name %s not found.", name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("tool handler panicked", "name", name, "recover", rec)
			out = "Function call failed."
		}
	}()

	return d.Handler(args)
}

// CallJSON decodes rawArgs against name's schema (coercing numeric-looking
// strings, see DecodeArgs) and dispatches through Call. A name that doesn't
// exist still returns the same "not found" sentinel without attempting to
// decode.
func (r *Registry) CallJSON(name string, rawArgs []byte) string {
	d, ok := r.byName[name]
	if !ok {
		return fmt.Sprintf("Function with name %s not found.", name)
	}

	args, err := DecodeArgs(d, rawArgs)
	if err != nil {
		r.log.Warn("tool call arguments failed to parse", "name", name, "error", err)
		args = map[string]interface{}{}
	}

	return r.Call(name, args)
}
