package model

import "time"

// Proctor is a staff account allowed to watch the live integrity feed.
type Proctor struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProctorLoginRequest is the payload for proctor authentication.
type ProctorLoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// ProctorLoginResponse is returned after a successful proctor login.
type ProctorLoginResponse struct {
	Token   string  `json:"token"`
	Proctor Proctor `json:"proctor"`
}

// DailyStats aggregates the archive for the proctor dashboard.
type DailyStats struct {
	Day              string           `json:"day"`
	ViolationCounts  map[string]int64 `json:"violation_counts"`
	SubmissionCounts map[string]int64 `json:"submission_counts"`
}
