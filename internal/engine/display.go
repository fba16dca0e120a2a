package engine

import (
	"encoding/base64"
	"reflect"

	"github.com/traefik/yaegi/interp"

	"github.com/starford/nbexec/internal/models"
)

// DisplayImportPath is the import path under which interpreted cells reach
// the rich display helpers:
//
//	import "nb/display"
//	display.Markdown("**done**")
const DisplayImportPath = "nb/display"

func (s *Session) displaySymbols() interp.Exports {
	return interp.Exports{
		DisplayImportPath + "/display": {
			"Text": reflect.ValueOf(func(text string) {
				s.display(models.MimeBundle{"text/plain": text})
			}),
			"Markdown": reflect.ValueOf(func(text string) {
				s.display(models.MimeBundle{"text/markdown": text, "text/plain": text})
			}),
			"HTML": reflect.ValueOf(func(html string) {
				s.display(models.MimeBundle{"text/html": html, "text/plain": "<HTML>"})
			}),
			"SVG": reflect.ValueOf(func(svg string) {
				s.display(models.MimeBundle{"image/svg+xml": svg, "text/plain": "<SVG image>"})
			}),
			"PNG": reflect.ValueOf(func(data []byte) {
				s.displayImage("image/png", data)
			}),
			"JPEG": reflect.ValueOf(func(data []byte) {
				s.displayImage("image/jpeg", data)
			}),
		},
	}
}

func (s *Session) displayImage(mime string, data []byte) {
	s.display(models.MimeBundle{
		mime:         base64.StdEncoding.EncodeToString(data),
		"text/plain": "<" + mime + " image>",
	})
}

// display appends a display_data output to the running cell, after any text
// the cell printed so far.
func (s *Session) display(bundle models.MimeBundle) {
	if s.current == nil {
		return
	}
	s.flushStreams()
	s.current.Outputs = append(s.current.Outputs, models.DisplayOutput(bundle))
}
