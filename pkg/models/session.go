// Package models provides the wire and storage types shared across the
// Agent Execution Core.
package models

import "time"

// Framework identifies the target web application stack for a session.
type Framework string

const (
	FrameworkNextJS      Framework = "nextjs"
	FrameworkFastAPIVite Framework = "fastapi-vite"
)

// Session is the identity of a user-app pair. Created on first request;
// mutated only by the Task Orchestrator's status transitions; never
// destroyed within the scope of the Agent Execution Core.
type Session struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Framework   Framework `json:"framework"`
	WorkspaceID string    `json:"workspace_id"`
	CreatorID   string    `json:"creator_id"`
	IsRunning   bool      `json:"is_running"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User is an authenticated principal that owns sessions.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}
