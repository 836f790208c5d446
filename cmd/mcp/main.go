package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// JSON-RPC structures
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCP structures
type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MCPServer bridges MCP tool calls to the SmartReminder REST API.
type MCPServer struct {
	apiURL      string
	apiUsername string
	apiPassword string
	client      *http.Client
}

func NewMCPServer() *MCPServer {
	apiURL := os.Getenv("SMARTREMINDER_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	return &MCPServer{
		apiURL:      strings.TrimRight(apiURL, "/"),
		apiUsername: os.Getenv("SMARTREMINDER_API_USER"),
		apiPassword: os.Getenv("SMARTREMINDER_API_PASSWORD"),
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Run serves newline-delimited JSON-RPC from in until EOF.
func (s *MCPServer) Run(in io.Reader, out io.Writer) {
	reader := bufio.NewReader(in)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "Error reading: %v\n", err)
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing JSON: %v\n", err)
			continue
		}

		// Notifications carry no id and get no response.
		if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
			continue
		}

		response := s.handleRequest(req)
		responseBytes, _ := json.Marshal(response)
		fmt.Fprintln(out, string(responseBytes))
	}
}

func (s *MCPServer) handleRequest(req JSONRPCRequest) JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized":
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: nil}
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	default:
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32601, Message: "Method not found"},
		}
	}
}

func (s *MCPServer) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	result := InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	}
	result.ServerInfo.Name = "smartreminder-mcp"
	result.ServerInfo.Version = "1.0.0"

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

var definitionProperties = map[string]Property{
	"title":            {Type: "string", Description: "Title"},
	"description":      {Type: "string", Description: "Notes (optional)"},
	"location":         {Type: "string", Description: "Location (optional)"},
	"type":             {Type: "string", Description: "Kind of item", Enum: []string{"Task", "Class", "Routine", "Meeting", "Work"}},
	"date":             {Type: "string", Description: "Date YYYY-MM-DD (one-time items)"},
	"start_date":       {Type: "string", Description: "First day YYYY-MM-DD (repeating items)"},
	"end_date":         {Type: "string", Description: "Last day YYYY-MM-DD (optional)"},
	"time":             {Type: "string", Description: "Time of day, HH:MM AM/PM"},
	"repeat_frequency": {Type: "string", Description: "Repetition", Enum: []string{"none", "daily", "weekly"}},
	"repeat_days":      {Type: "array", Description: "Weekdays for weekly items, e.g. [\"Mon\", \"Wed\"]"},
	"reminder_minutes": {Type: "number", Description: "Minutes before start to remind (optional)"},
}

func withProperties(extra map[string]Property) map[string]Property {
	props := make(map[string]Property, len(definitionProperties)+len(extra))
	for k, v := range definitionProperties {
		props[k] = v
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

func (s *MCPServer) tools() []Tool {
	ref := map[string]Property{
		"task_id": {Type: "string", Description: "Task id or occurrence key such as 12-2024-03-04"},
	}
	return []Tool{
		{
			Name:        "smartreminder_list_occurrences",
			Description: "List tasks and schedule occurrences between two dates, sorted by date and time. Defaults to the next 7 days.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"from": {Type: "string", Description: "First day YYYY-MM-DD (optional)"},
					"to":   {Type: "string", Description: "Last day YYYY-MM-DD (optional)"},
				},
			},
		},
		{
			Name:        "smartreminder_list_missed",
			Description: "List pending tasks whose deadline has passed.",
			InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
		},
		{
			Name:        "smartreminder_create",
			Description: "Create a task or a schedule. Schedules (Class, Routine, Meeting, Work) are rejected when they clash with an existing schedule at the same time.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: definitionProperties,
				Required:   []string{"title", "time"},
			},
		},
		{
			Name:        "smartreminder_check_conflict",
			Description: "Check whether a schedule would clash with an existing one, without saving it.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: withProperties(map[string]Property{
					"exclude_id": {Type: "number", Description: "Id to ignore, when checking an edit (optional)"},
				}),
				Required: []string{"title", "time"},
			},
		},
		{
			Name:        "smartreminder_complete",
			Description: "Mark a task or schedule as done.",
			InputSchema: InputSchema{Type: "object", Properties: ref, Required: []string{"task_id"}},
		},
		{
			Name:        "smartreminder_delete",
			Description: "Delete a task or schedule with all its occurrences.",
			InputSchema: InputSchema{Type: "object", Properties: ref, Required: []string{"task_id"}},
		},
	}
}

func (s *MCPServer) handleToolsList(req JSONRPCRequest) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: s.tools()}}
}

func (s *MCPServer) handleToolsCall(req JSONRPCRequest) JSONRPCResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32602, Message: "Invalid params"},
		}
	}

	var result string
	var isError bool

	switch params.Name {
	case "smartreminder_list_occurrences":
		q := url.Values{}
		for _, k := range []string{"from", "to"} {
			if v, ok := params.Arguments[k].(string); ok && v != "" {
				q.Set(k, v)
			}
		}
		path := "/api/occurrences"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		result, isError = s.apiGet(path)
	case "smartreminder_list_missed":
		result, isError = s.apiGet("/api/tasks/missed")
	case "smartreminder_create":
		result, isError = s.apiPost("/api/tasks", params.Arguments)
	case "smartreminder_check_conflict":
		result, isError = s.apiPost("/api/conflicts", params.Arguments)
	case "smartreminder_complete":
		taskID := url.PathEscape(fmt.Sprintf("%v", params.Arguments["task_id"]))
		result, isError = s.apiPost("/api/task/"+taskID+"/done", nil)
	case "smartreminder_delete":
		taskID := url.PathEscape(fmt.Sprintf("%v", params.Arguments["task_id"]))
		result, isError = s.apiDelete("/api/task/" + taskID)
	default:
		result = "Unknown tool: " + params.Name
		isError = true
	}

	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: result}},
			IsError: isError,
		},
	}
}

func (s *MCPServer) apiGet(path string) (string, bool) {
	return s.apiRequest("GET", path, nil)
}

func (s *MCPServer) apiPost(path string, body interface{}) (string, bool) {
	return s.apiRequest("POST", path, body)
}

func (s *MCPServer) apiDelete(path string) (string, bool) {
	return s.apiRequest("DELETE", path, nil)
}

func (s *MCPServer) apiRequest(method, path string, body interface{}) (string, bool) {
	endpoint := s.apiURL + path

	var reqBody io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, endpoint, reqBody)
	if err != nil {
		return fmt.Sprintf("Error creating request: %v", err), true
	}

	req.SetBasicAuth(s.apiUsername, s.apiPassword)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error making request: %v", err), true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), true
	}

	// Parse and format the response
	var apiResp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}

	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return string(respBody), resp.StatusCode >= 400
	}

	if !apiResp.Success {
		return fmt.Sprintf("API Error: %s", apiResp.Error), true
	}

	// Pretty print the data
	var prettyData bytes.Buffer
	if err := json.Indent(&prettyData, apiResp.Data, "", "  "); err != nil {
		return string(apiResp.Data), false
	}

	return prettyData.String(), false
}

func main() {
	server := NewMCPServer()
	server.Run(os.Stdin, os.Stdout)
}
