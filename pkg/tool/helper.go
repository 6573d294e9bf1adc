package tool

// ToOpenAITool converts a Tool to the OpenAI function-calling format.
// Only the name, description and parameter schema cross this boundary;
// the implementation stays on the host side.
func ToOpenAITool(tool Tool) map[string]interface{} {
	return map[string]interface{}{
		"type": "function",
		"function": map[string]interface{}{
			"name":        tool.GetName(),
			"description": tool.GetDescription(),
			"parameters":  tool.GetParametersSchema(),
		},
	}
}

// ToOpenAITools converts a slice of Tools to the OpenAI tool format
func ToOpenAITools(tools []Tool) []map[string]interface{} {
	result := make([]map[string]interface{}, len(tools))
	for i, tool := range tools {
		result[i] = ToOpenAITool(tool)
	}
	return result
}

// Schemas converts tools to the []interface{} form carried on a model
// request.
func Schemas(tools []Tool) []interface{} {
	if len(tools) == 0 {
		return nil
	}
	openAITools := ToOpenAITools(tools)
	result := make([]interface{}, len(openAITools))
	for i, t := range openAITools {
		result[i] = t
	}
	return result
}
