package domain

import (
	"strings"
	"time"
)

// Project is a script a student talks to the agent about. The dialogue
// engine keys its sessions by Key.
type Project struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Language     string    `json:"language"`
	RunCount     int       `json:"run_count"`
	ErrorCount   int       `json:"error_count"`
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProjectKey joins a user and project name into a session key.
func ProjectKey(userID, name string) string {
	return userID + ":" + name
}

// SplitProjectKey is the inverse of ProjectKey. Project names may contain
// colons; user ids do not.
func SplitProjectKey(key string) (userID, name string, ok bool) {
	return strings.Cut(key, ":")
}

// Key returns the session key of the project.
func (p *Project) Key() string {
	return ProjectKey(p.UserID, p.Name)
}

// RecordRun counts a run of the project's script.
func (p *Project) RecordRun(success bool, at time.Time) {
	if success {
		p.RunCount++
	} else {
		p.ErrorCount++
	}
	p.LastActiveAt = at
}

// Expired reports whether the project has been idle longer than ttl.
func (p *Project) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(p.LastActiveAt) > ttl
}
