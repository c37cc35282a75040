package server

import (
	"time"

	"go-sniper/models"
)

// DefaultWorkspace receives scans launched without a workspace.
const DefaultWorkspace = "default"

// response defines the basic HTTP error response returned by the server.
type response struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

// CommandResponse defines the JSON structure of a rendered command.
type CommandResponse struct {
	Command string   `json:"command"`
	Tokens  []string `json:"tokens"`
}

func commandResponse(d models.InvocationDescriptor) CommandResponse {
	return CommandResponse{Command: d.String(), Tokens: d.Tokens()}
}

// PreviewResponse defines the JSON structure for /scans/preview.
type PreviewResponse struct {
	CommandResponse
	Config models.ScanConfig `json:"config"`
}

// LaunchResponse defines the JSON structure for a launched scan.
type LaunchResponse struct {
	CommandResponse
	Result models.ScanResult `json:"result"`
}

// TransitionRequest defines the JSON structure for status transitions.
type TransitionRequest struct {
	Status  models.ScanStatus `json:"status"`
	EndTime *time.Time        `json:"endTime"`
}

// WorkspaceRequest defines the JSON structure for workspace creation.
type WorkspaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ResultResponse is a result with its severity breakdown.
type ResultResponse struct {
	models.ScanResult
	Severities models.SeverityCounts `json:"severities"`
}

// ResultsResponse defines the JSON structure for result listings.
type ResultsResponse struct {
	Results []models.ScanResult `json:"results"`
}

// WorkspacesResponse defines the JSON structure for workspace listings.
type WorkspacesResponse struct {
	Workspaces []models.Workspace `json:"workspaces"`
}

// WorkspaceDeleted reports a cascading workspace deletion.
type WorkspaceDeleted struct {
	Name           string `json:"name"`
	RemovedResults int    `json:"removedResults"`
}

type EnabledPlugins struct {
	Plugins int      `json:"plugins"`
	Names   []string `json:"names"`
}
