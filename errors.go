/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}

// Command failure codes surfaced to clients. Every command either fully
// applies or fails with one of these; unexpected faults collapse to
// CodeInternal at the command boundary.
const (
	CodeValidation         = "validation"
	CodeInvalidState       = "invalid_state"
	CodeInsufficientPoints = "insufficient_points"
	CodeNotFound           = "not_found"
	CodeDuplicate          = "duplicate"
	CodeInternal           = "internal"
)

type GameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *GameError) Error() string {
	return e.Code + ": " + e.Message
}

func errValidation(message string) *GameError {
	return &GameError{Code: CodeValidation, Message: message}
}

func errInvalidState(message string) *GameError {
	return &GameError{Code: CodeInvalidState, Message: message}
}

func errInsufficientPoints(message string) *GameError {
	return &GameError{Code: CodeInsufficientPoints, Message: message}
}

func errNotFound(message string) *GameError {
	return &GameError{Code: CodeNotFound, Message: message}
}

func errDuplicate(message string) *GameError {
	return &GameError{Code: CodeDuplicate, Message: message}
}

// asGameError maps any error to the frame sent back to the caller. Internal
// faults are not leaked verbatim.
func asGameError(err error) *GameError {
	var gameErr *GameError
	if errors.As(err, &gameErr) {
		return gameErr
	}

	return &GameError{Code: CodeInternal, Message: "internal server error"}
}
