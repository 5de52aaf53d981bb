/*
Copyright © 2025 chenj209
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

// Request-level failures. All of them are local to the triggering
// message: none mutates room state, none is fatal to the process.
var (
	errRoomNotFound       = errors.New("room not found")
	errRoomFull           = errors.New("room is full")
	errGameAlreadyStarted = errors.New("game already started, only returning players may rejoin")
	errInvalidRoleAction  = errors.New("this action is not available to you right now")
	errBadRequest         = errors.New("malformed request")
)

// roomClosedError tells a late-arriving client why its room is gone
// instead of failing with a bare not-found.
type roomClosedError struct {
	reason string
}

func (e *roomClosedError) Error() string {
	return "room closed: " + e.reason
}

func errorCode(err error) string {
	var closed *roomClosedError

	switch {
	case errors.Is(err, errRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, errRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, errGameAlreadyStarted):
		return "GAME_ALREADY_STARTED"
	case errors.Is(err, errInvalidRoleAction):
		return "INVALID_ACTION"
	case errors.As(err, &closed):
		return "ROOM_CLOSED"
	default:
		return "BAD_REQUEST"
	}
}
