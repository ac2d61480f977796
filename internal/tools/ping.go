package tools

// NewPingTool builds a trivial zero-argument tool used to exercise the
// dispatch loop without a network dependency.
func NewPingTool() Descriptor {
	return Descriptor{
		QualifiedName: "rotarygpt__ping",
		Description:   "Replies pong. Used to verify the tool dispatch path is working.",
		Parameters: Schema{
			Type:       "object",
			Properties: map[string]Property{},
			Required:   []string{},
		},
		Handler: func(args map[string]interface{}) string {
			return "pong"
		},
	}
}
