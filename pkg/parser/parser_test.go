package parser

import (
	"testing"
)

func TestParseReturnsNilForPlainText(t *testing.T) {
	cases := []string{
		"",
		"   \n\t  ",
		"The answer is 42.",
		"I considered using a tool here (see below) but decided against it.",
		"Some JSON-ish text { not a call } trailing",
	}
	for _, content := range cases {
		if call := Parse(content); call != nil {
			t.Errorf("Parse(%q) = %+v, want nil", content, call)
		}
	}
}

func TestParseTaggedCall(t *testing.T) {
	content := `Let me look that up.
<tool_call>{"name": "search", "arguments": {"query": "go generics"}}</tool_call>`

	call := Parse(content)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Name != "search" {
		t.Errorf("Name = %q, want search", call.Name)
	}
	if call.Args["query"] != "go generics" {
		t.Errorf("Args[query] = %v, want go generics", call.Args["query"])
	}
}

func TestParseTaggedCallWithoutClosingTag(t *testing.T) {
	// Truncated generations often lose the closing tag but keep a
	// complete object
	content := `<tool_call>{"name": "get_time", "arguments": {"format": "kitchen"}}`

	call := Parse(content)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Name != "get_time" {
		t.Errorf("Name = %q, want get_time", call.Name)
	}
	if call.Args["format"] != "kitchen" {
		t.Errorf("Args[format] = %v, want kitchen", call.Args["format"])
	}
}

func TestParseTaggedCallWithEscapedQuotes(t *testing.T) {
	content := `<tool_call>{\"name\": \"search\", \"arguments\": {\"query\": \"escaped\"}}</tool_call>`

	call := Parse(content)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Name != "search" {
		t.Errorf("Name = %q, want search", call.Name)
	}
	if call.Args["query"] != "escaped" {
		t.Errorf("Args[query] = %v, want escaped", call.Args["query"])
	}
}

func TestParseTaggedCallWithTrailingProse(t *testing.T) {
	// Without a closing tag everything to the end of input is payload;
	// only the balanced object should be decoded
	content := `<tool_call>{"name": "add", "arguments": {"a": 1, "b": 2}} and then I will summarize`

	call := Parse(content)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Name != "add" {
		t.Errorf("Name = %q, want add", call.Name)
	}
}

func TestParseBareJSONCall(t *testing.T) {
	content := `I'll call the calculator now: {"name": "calculate", "arguments": {"operation": "add", "a": 2, "b": 3}} done`

	call := Parse(content)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Name != "calculate" {
		t.Errorf("Name = %q, want calculate", call.Name)
	}
	if call.Args["operation"] != "add" {
		t.Errorf("Args[operation] = %v, want add", call.Args["operation"])
	}
}

func TestParseBareJSONWithNestedArguments(t *testing.T) {
	content := `{"name": "update", "arguments": {"filter": {"status": "open", "tags": ["a", "b"]}, "limit": 5}}`

	call := Parse(content)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	filter, ok := call.Args["filter"].(map[string]interface{})
	if !ok {
		t.Fatalf("Args[filter] = %T, want map", call.Args["filter"])
	}
	if filter["status"] != "open" {
		t.Errorf("filter[status] = %v, want open", filter["status"])
	}
}

func TestParseBareJSONUnbalancedBraces(t *testing.T) {
	content := `{"name": "calculate", "arguments": {"a": 1`

	if call := Parse(content); call != nil {
		t.Errorf("Parse = %+v, want nil for unbalanced object", call)
	}
}

func TestParseBareJSONArgsKeyVariant(t *testing.T) {
	content := `{"name": "lookup", "args": {"id": "x1"}}`

	call := Parse(content)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Args["id"] != "x1" {
		t.Errorf("Args[id] = %v, want x1", call.Args["id"])
	}
}

func TestParseBareJSONMissingName(t *testing.T) {
	// Looks like a call start but the name is not a usable string
	content := `{"name": 42, "arguments": {}}`

	if call := Parse(content); call != nil {
		t.Errorf("Parse = %+v, want nil when name is not a string", call)
	}
}

func TestParseFunctionSyntaxWithJSONBody(t *testing.T) {
	content := `calculate("operation": "multiply", "a": 6, "b": 7)`

	call := Parse(content)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Name != "calculate" {
		t.Errorf("Name = %q, want calculate", call.Name)
	}
	if call.Args["operation"] != "multiply" {
		t.Errorf("Args[operation] = %v, want multiply", call.Args["operation"])
	}
	if call.Args["a"] != float64(6) {
		t.Errorf("Args[a] = %v (%T), want 6", call.Args["a"], call.Args["a"])
	}
}

func TestParseFunctionSyntaxNaiveArgs(t *testing.T) {
	content := `get_weather(region: 'stockholm', day: tomorrow)`

	call := Parse(content)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Name != "get_weather" {
		t.Errorf("Name = %q, want get_weather", call.Name)
	}
	if call.Args["region"] != "stockholm" {
		t.Errorf("Args[region] = %v, want stockholm", call.Args["region"])
	}
	if call.Args["day"] != "tomorrow" {
		t.Errorf("Args[day] = %v, want tomorrow", call.Args["day"])
	}
}

func TestParseFunctionSyntaxNoArgs(t *testing.T) {
	call := Parse(`refresh_cache()`)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Name != "refresh_cache" {
		t.Errorf("Name = %q, want refresh_cache", call.Name)
	}
	if len(call.Args) != 0 {
		t.Errorf("Args = %v, want empty", call.Args)
	}
}

func TestParseUnwrapsEncodedEnvelope(t *testing.T) {
	// Transports sometimes double-encode the generation; the real
	// content lives in cleanContent
	content := `{"cleanContent": "<tool_call>{\"name\": \"search\", \"arguments\": {\"query\": \"x\"}}</tool_call>", "raw": "ignored"}`

	call := Parse(content)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Name != "search" {
		t.Errorf("Name = %q, want search", call.Name)
	}
	if call.Args["query"] != "x" {
		t.Errorf("Args[query] = %v, want x", call.Args["query"])
	}
}

func TestParsePrefersTaggedOverBareJSON(t *testing.T) {
	content := `{"name": "bare_first", "arguments": {}} <tool_call>{"name": "tagged", "arguments": {}}</tool_call>`

	call := Parse(content)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Name != "tagged" {
		t.Errorf("Name = %q, want tagged (tagged form wins over bare JSON)", call.Name)
	}
}

func TestParseMissingArgumentsDefaultsEmpty(t *testing.T) {
	call := Parse(`<tool_call>{"name": "ping"}</tool_call>`)
	if call == nil {
		t.Fatal("expected a tool call")
	}
	if call.Args == nil || len(call.Args) != 0 {
		t.Errorf("Args = %v, want empty non-nil map", call.Args)
	}
}

func TestScanBalancedObjectHonorsStrings(t *testing.T) {
	object, ok := scanBalancedObject(`{"a": "brace } in string", "b": {"c": 1}} trailing`)
	if !ok {
		t.Fatal("expected balanced object")
	}
	want := `{"a": "brace } in string", "b": {"c": 1}}`
	if object != want {
		t.Errorf("object = %q, want %q", object, want)
	}
}
