/*
 * Copyright 2025 Cong Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var (
	registryURL = "http://localhost:8080"
	verbose     = false
)

const apiBase = "/apis/registry/v2"

// API request/response structures
type RuleRequest struct {
	Type   string `json:"type"`
	Config string `json:"config"`
}

type RuleConfigResponse struct {
	Config string `json:"config"`
}

type ArtifactMeta struct {
	GroupID     string   `json:"groupId"`
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type"`
	Version     int64    `json:"version"`
	GlobalID    int64    `json:"globalId"`
	State       string   `json:"state"`
	Labels      []string `json:"labels,omitempty"`
	CreatedBy   string   `json:"createdBy,omitempty"`
	CreatedOn   int64    `json:"createdOn"`
	ModifiedOn  int64    `json:"modifiedOn"`
}

type SearchResults struct {
	Artifacts []ArtifactMeta `json:"artifacts"`
	Count     int            `json:"count"`
}

type ListIDsResponse struct {
	IDs []string `json:"ids"`
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Healthy    bool              `json:"healthy"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Ready        bool              `json:"ready"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Parse global flags
	globalFlags := flag.NewFlagSet("global", flag.ContinueOnError)
	globalFlags.StringVar(&registryURL, "registry-url", "http://localhost:8080", "Registry URL")
	globalFlags.BoolVar(&verbose, "v", false, "Verbose output")
	globalFlags.BoolVar(&verbose, "verbose", false, "Verbose output")

	// Find where the command starts (after global flags)
	args := os.Args[1:]
	commandIndex := 0

	// Parse global flags until we hit a non-flag argument
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			commandIndex = i
			break
		}
		// Skip flag values
		if arg == "--registry-url" && i+1 < len(args) {
			registryURL = args[i+1]
			i++ // Skip the value
		} else if arg == "-v" || arg == "--verbose" {
			verbose = true
		}
	}

	if commandIndex >= len(args) {
		printUsage()
		os.Exit(1)
	}

	command := args[commandIndex]
	commandArgs := args[commandIndex+1:]

	switch command {
	case "rule":
		handleRuleCommand(commandArgs)
	case "artifact":
		handleArtifactCommand(commandArgs)
	case "health":
		handleHealth(commandArgs)
	case "ready":
		handleReady(commandArgs)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Registry Admin Tool")
	fmt.Println("")
	fmt.Println("Usage: registry-admin [global-flags] <command> [args]")
	fmt.Println("")
	fmt.Println("Global Flags:")
	fmt.Println("  --registry-url <url>      Registry URL (default: http://localhost:8080)")
	fmt.Println("  -v, --verbose             Verbose output")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  rule                      Global rule management commands")
	fmt.Println("    create <type> [flags]               Configure a global rule (VALIDITY, COMPATIBILITY)")
	fmt.Println("    list                                List configured global rules")
	fmt.Println("    get <type>                          Show a global rule configuration")
	fmt.Println("    update <type> [flags]               Change a global rule configuration")
	fmt.Println("    delete <type>                       Remove a global rule")
	fmt.Println("    clear                               Remove all global rules")
	fmt.Println("")
	fmt.Println("  artifact                  Artifact inspection commands")
	fmt.Println("    list [flags]                        List distinct artifact ids")
	fmt.Println("    search [flags]                      Search artifacts by metadata")
	fmt.Println("    meta <group> <id>                   Show artifact metadata")
	fmt.Println("    delete <group> <id>                 Delete an artifact and all its versions")
	fmt.Println("")
	fmt.Println("  health                    Check registry health")
	fmt.Println("  ready                     Check registry readiness")
	fmt.Println("")
	fmt.Println("Rule Flags:")
	fmt.Println("  --config <value>          Rule configuration value (e.g. FULL, BACKWARD)")
	fmt.Println("")
	fmt.Println("Artifact Search Flags:")
	fmt.Println("  --name <value>            Filter by name substring")
	fmt.Println("  --group <value>           Filter by exact group (case-insensitive)")
	fmt.Println("  --description <value>     Filter by description substring")
	fmt.Println("  --labels <value>          Filter by label substring")
	fmt.Println("  --offset <n>              Result offset (default: 0)")
	fmt.Println("  --limit <n>               Page size (default: 20)")
}

func handleRuleCommand(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Rule command requires a subcommand\n")
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "create":
		handleRuleCreate(args[1:])
	case "list":
		handleRuleList(args[1:])
	case "get":
		handleRuleGet(args[1:])
	case "update":
		handleRuleUpdate(args[1:])
	case "delete":
		handleRuleDelete(args[1:])
	case "clear":
		handleRuleClear(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown rule subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func handleRuleCreate(args []string) {
	createFlags := flag.NewFlagSet("create", flag.ExitOnError)
	config := createFlags.String("config", "", "Rule configuration value")

	createFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: registry-admin rule create <type> [--config <value>]\n")
	}

	if len(args) < 1 {
		createFlags.Usage()
		os.Exit(1)
	}

	ruleType := strings.ToUpper(args[0])

	if err := createFlags.Parse(args[1:]); err != nil {
		os.Exit(1)
	}

	_, err := makeAPIRequest("POST", apiBase+"/admin/rules", RuleRequest{Type: ruleType, Config: *config})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create rule: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Rule %s configured: %s\n", ruleType, *config)
}

func handleRuleList(args []string) {
	listFlags := flag.NewFlagSet("list", flag.ExitOnError)
	if err := listFlags.Parse(args); err != nil {
		os.Exit(1)
	}

	resp, err := makeAPIRequest("GET", apiBase+"/admin/rules", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list rules: %v\n", err)
		os.Exit(1)
	}

	var rules []string
	if err := json.Unmarshal(resp, &rules); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	if len(rules) == 0 {
		fmt.Println("No global rules configured")
		return
	}
	fmt.Printf("Found %d rule(s):\n\n", len(rules))
	for _, rule := range rules {
		fmt.Printf("  %s\n", rule)
	}
}

func handleRuleGet(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: registry-admin rule get <type>\n")
		os.Exit(1)
	}
	ruleType := strings.ToUpper(args[0])

	resp, err := makeAPIRequest("GET", apiBase+"/admin/rules/"+ruleType, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get rule: %v\n", err)
		os.Exit(1)
	}

	var rule RuleConfigResponse
	if err := json.Unmarshal(resp, &rule); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: %s\n", ruleType, rule.Config)
}

func handleRuleUpdate(args []string) {
	updateFlags := flag.NewFlagSet("update", flag.ExitOnError)
	config := updateFlags.String("config", "", "Rule configuration value")

	updateFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: registry-admin rule update <type> --config <value>\n")
	}

	if len(args) < 1 {
		updateFlags.Usage()
		os.Exit(1)
	}

	ruleType := strings.ToUpper(args[0])

	if err := updateFlags.Parse(args[1:]); err != nil {
		os.Exit(1)
	}

	_, err := makeAPIRequest("PUT", apiBase+"/admin/rules/"+ruleType, RuleRequest{Type: ruleType, Config: *config})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to update rule: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Rule %s updated: %s\n", ruleType, *config)
}

func handleRuleDelete(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: registry-admin rule delete <type>\n")
		os.Exit(1)
	}
	ruleType := strings.ToUpper(args[0])

	if _, err := makeAPIRequest("DELETE", apiBase+"/admin/rules/"+ruleType, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to delete rule: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Rule %s deleted\n", ruleType)
}

func handleRuleClear(args []string) {
	clearFlags := flag.NewFlagSet("clear", flag.ExitOnError)
	if err := clearFlags.Parse(args); err != nil {
		os.Exit(1)
	}

	if _, err := makeAPIRequest("DELETE", apiBase+"/admin/rules", nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to clear rules: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("All global rules removed")
}

func handleArtifactCommand(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Artifact command requires a subcommand\n")
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		handleArtifactList(args[1:])
	case "search":
		handleArtifactSearch(args[1:])
	case "meta":
		handleArtifactMeta(args[1:])
	case "delete":
		handleArtifactDelete(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown artifact subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func handleArtifactList(args []string) {
	listFlags := flag.NewFlagSet("list", flag.ExitOnError)
	limit := listFlags.Int("limit", 0, "Maximum number of ids (0 = no limit)")

	if err := listFlags.Parse(args); err != nil {
		os.Exit(1)
	}

	endpoint := apiBase + "/artifacts"
	if *limit > 0 {
		endpoint += fmt.Sprintf("?limit=%d", *limit)
	}

	resp, err := makeAPIRequest("GET", endpoint, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list artifacts: %v\n", err)
		os.Exit(1)
	}

	var response ListIDsResponse
	if err := json.Unmarshal(resp, &response); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d artifact id(s):\n\n", len(response.IDs))
	for _, id := range response.IDs {
		fmt.Printf("  %s\n", id)
	}
}

func handleArtifactSearch(args []string) {
	searchFlags := flag.NewFlagSet("search", flag.ExitOnError)
	name := searchFlags.String("name", "", "Filter by name substring")
	group := searchFlags.String("group", "", "Filter by exact group")
	description := searchFlags.String("description", "", "Filter by description substring")
	labels := searchFlags.String("labels", "", "Filter by label substring")
	offset := searchFlags.Int("offset", 0, "Result offset")
	limit := searchFlags.Int("limit", 20, "Page size")

	if err := searchFlags.Parse(args); err != nil {
		os.Exit(1)
	}

	query := url.Values{}
	if *name != "" {
		query.Set("name", *name)
	}
	if *group != "" {
		query.Set("group", *group)
	}
	if *description != "" {
		query.Set("description", *description)
	}
	if *labels != "" {
		query.Set("labels", *labels)
	}
	query.Set("offset", fmt.Sprintf("%d", *offset))
	query.Set("limit", fmt.Sprintf("%d", *limit))

	resp, err := makeAPIRequest("GET", apiBase+"/search/artifacts?"+query.Encode(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to search artifacts: %v\n", err)
		os.Exit(1)
	}

	var results SearchResults
	if err := json.Unmarshal(resp, &results); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d artifact(s), showing %d:\n\n", results.Count, len(results.Artifacts))
	for _, artifact := range results.Artifacts {
		line := fmt.Sprintf("  %s/%s  type=%s state=%s", artifact.GroupID, artifact.ID, artifact.Type, artifact.State)
		if artifact.Name != "" {
			line += fmt.Sprintf("  name=%q", artifact.Name)
		}
		fmt.Println(line)
	}
}

func handleArtifactMeta(args []string) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: registry-admin artifact meta <group> <id>\n")
		os.Exit(1)
	}
	group, id := args[0], args[1]

	resp, err := makeAPIRequest("GET", fmt.Sprintf("%s/groups/%s/artifacts/%s/meta",
		apiBase, url.PathEscape(group), url.PathEscape(id)), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get artifact metadata: %v\n", err)
		os.Exit(1)
	}

	var meta ArtifactMeta
	if err := json.Unmarshal(resp, &meta); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	prettyJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to format metadata: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Artifact: %s/%s\n\n", group, id)
	fmt.Println(string(prettyJSON))
}

func handleArtifactDelete(args []string) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: registry-admin artifact delete <group> <id>\n")
		os.Exit(1)
	}
	group, id := args[0], args[1]

	_, err := makeAPIRequest("DELETE", fmt.Sprintf("%s/groups/%s/artifacts/%s",
		apiBase, url.PathEscape(group), url.PathEscape(id)), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to delete artifact: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Artifact %s/%s deleted\n", group, id)
}

func handleHealth(args []string) {
	resp, err := makeAPIRequest("GET", "/health", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}

	var health HealthResponse
	if err := json.Unmarshal(resp, &health); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Status: %s (version %s)\n", health.Status, health.Version)
	for component, status := range health.Components {
		fmt.Printf("  %s: %s\n", component, status)
	}
	if !health.Healthy {
		os.Exit(1)
	}
}

func handleReady(args []string) {
	resp, err := makeAPIRequest("GET", "/ready", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Readiness check failed: %v\n", err)
		os.Exit(1)
	}

	var readiness ReadinessResponse
	if err := json.Unmarshal(resp, &readiness); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Status: %s (version %s)\n", readiness.Status, readiness.Version)
	for dependency, status := range readiness.Dependencies {
		fmt.Printf("  %s: %s\n", dependency, status)
	}
	if !readiness.Ready {
		os.Exit(1)
	}
}

func makeAPIRequest(method, endpoint string, body interface{}) ([]byte, error) {
	requestURL := strings.TrimRight(registryURL, "/") + endpoint

	if verbose {
		fmt.Printf("Making %s request to: %s\n", method, requestURL)
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)

		if verbose {
			fmt.Printf("Request body: %s\n", string(jsonData))
		}
	}

	req, err := http.NewRequest(method, requestURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if verbose {
		fmt.Printf("Response status: %d\n", resp.StatusCode)
		fmt.Printf("Response body: %s\n", string(respBody))
	}

	if resp.StatusCode >= 400 {
		// The registry wraps errors in an {"error": {...}} envelope
		var errorResp struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &errorResp) == nil && errorResp.Error != nil {
			return nil, fmt.Errorf("API error (%d) %s: %s", resp.StatusCode, errorResp.Error.Code, errorResp.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
