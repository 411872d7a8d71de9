package pysyntax

// Param is one declared parameter of a function or lambda.
type Param struct {
	Name    string
	Default Node // nil when the parameter has no default value
}

// Parameters lists the parameters declared by a parameters or
// lambda_parameters node. Separators (`*`, `/`) are skipped; `*args` and
// `**kwargs` are reported by their bare names.
func Parameters(params Node) []Param {
	var out []Param
	for _, child := range params.NamedChildren() {
		switch child.Type() {
		case "identifier":
			out = append(out, Param{Name: child.Text()})
		case "default_parameter", "typed_default_parameter":
			name := child.Field("name")
			out = append(out, Param{Name: paramName(name), Default: child.Field("value")})
		case "typed_parameter":
			for _, inner := range child.NamedChildren() {
				if name := paramName(inner); name != "" {
					out = append(out, Param{Name: name})
					break
				}
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			if name := paramName(child); name != "" {
				out = append(out, Param{Name: name})
			}
		}
	}
	return out
}

func paramName(n Node) string {
	switch n.Type() {
	case "identifier":
		return n.Text()
	case "list_splat_pattern", "dictionary_splat_pattern":
		if id := n.ChildOfType("identifier"); !id.IsNil() {
			return id.Text()
		}
	}
	return ""
}
