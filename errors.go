/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const logDate string = `2006-01-02T15:04:05.000-07:00`

func newLogger(cfg *Config, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: logDate}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body{font-family:sans-serif;margin:0;padding:0;}main{max-width:40rem;margin:2rem auto;padding:0 1rem;}`)
	htmlBody.WriteString(`img{display:block;margin:1rem 0;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", html.EscapeString(title)))
	htmlBody.WriteString(fmt.Sprintf("<body><main>%s</main></body></html>", body))

	return htmlBody.String()
}

func serverError(cfg *Config, log zerolog.Logger) func(http.ResponseWriter, *http.Request, any) {
	return func(w http.ResponseWriter, r *http.Request, i any) {
		log.Error().
			Str("path", r.URL.Path).
			Str("remote", realIP(r)).
			Interface("panic", i).
			Msg("SERVE: recovered from panic")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "<p>An error has occurred. Please try again.</p>"))
	}
}

func notFound(cfg *Config, w http.ResponseWriter, what string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(http.StatusNotFound)

	io.WriteString(w, newPage("Not Found", fmt.Sprintf("<p>%s</p><p><a href=\"%s/\">Back</a></p>", html.EscapeString(what), html.EscapeString(cfg.prefix))))
}

// since formats an elapsed time the way request logs report it.
func since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Microsecond)
}
