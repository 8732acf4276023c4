// Package models contains shared data models used across the crashdesk codebase.
package models

import "time"

// ErrorReport is one crash report submitted by a client.
// Rows are created by intake and only ever mutated through the resolved flag.
type ErrorReport struct {
	ID            int64     `db:"id"             json:"id"`
	ReportDate    time.Time `db:"report_date"    json:"report_date"`
	Resolved      bool      `db:"resolved"       json:"resolved"`
	Version       string    `db:"version"        json:"version"`
	Revision      *int64    `db:"revision"       json:"revision,omitempty"`
	OS            *string   `db:"os"             json:"os,omitempty"`
	ReportingUser *string   `db:"reporting_user" json:"reporting_user,omitempty"`
	Message       string    `db:"message"        json:"message"`
	Stacktrace    string    `db:"stacktrace"     json:"stacktrace"`
	Problem       []byte    `db:"problem"        json:"-"`
	Config        *string   `db:"config"         json:"config,omitempty"`

	// HasProblem is set on summary rows, which do not load the blob itself.
	HasProblem bool `db:"-" json:"has_problem"`
}

// NewErrorReport holds the client-supplied columns of a report about to be inserted.
// ID, ReportDate and Resolved are always assigned by the database.
type NewErrorReport struct {
	Version       string
	Revision      *int64
	OS            *string
	ReportingUser *string
	Message       string
	Stacktrace    string
	Problem       []byte
	Config        *string
}
