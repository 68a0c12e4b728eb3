// Package mailparse turns raw RFC 5322 messages into subject, bodies and
// parts, and sanitizes HTML bodies.
package mailparse

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// DefaultSubject is used when a message carries no Subject header.
const DefaultSubject = "(No Subject)"

// Message is the parsed form of a raw message.
type Message struct {
	Subject  string
	BodyText string
	BodyHTML string
	// Parts lists every entity of a multipart message in traversal order,
	// containers included. Non-multipart messages have no parts.
	Parts []Part
	// Skipped records parts that could not be decoded.
	Skipped []DecodeFailure
}

// Part is one MIME entity.
type Part struct {
	Path        []int
	MediaType   string
	Multipart   bool
	Disposition string // raw Content-Disposition header, empty when absent
	Filename    string
	Content     []byte // decoded body, nil for containers
}

// HasDisposition reports whether the part carries a Content-Disposition header.
func (p Part) HasDisposition() bool {
	return p.Disposition != ""
}

// IsAttachment reports whether the disposition marks the part as an attachment.
func (p Part) IsAttachment() bool {
	return strings.Contains(strings.ToLower(p.Disposition), "attachment")
}

// DecodeFailure describes a part that was skipped.
type DecodeFailure struct {
	Path []int
	Err  error
}

func (f DecodeFailure) Error() string {
	return fmt.Sprintf("part %v: %v", f.Path, f.Err)
}

var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		if message.CharsetReader == nil {
			return nil, fmt.Errorf("unhandled charset %q", charset)
		}
		return message.CharsetReader(strings.ToLower(charset), input)
	},
}

// Parse decodes raw. Undecodable parts are skipped and recorded in Skipped;
// an error is returned only when the top-level header cannot be read.
func Parse(raw []byte) (*Message, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if entity == nil {
		return nil, fmt.Errorf("read message header: %w", err)
	}

	msg := &Message{Subject: subjectOf(entity.Header)}

	if entity.MultipartReader() == nil {
		if err != nil {
			msg.skip(nil, err)
			return msg, nil
		}
		body, readErr := io.ReadAll(entity.Body)
		if readErr != nil {
			msg.skip(nil, readErr)
			return msg, nil
		}
		msg.BodyText = string(body)
		return msg, nil
	}

	var text, htmlBody strings.Builder
	walkErr := entity.Walk(func(path []int, part *message.Entity, err error) error {
		mediaType, params, _ := part.Header.ContentType()
		p := Part{
			Path:        path,
			MediaType:   strings.ToLower(mediaType),
			Multipart:   strings.HasPrefix(strings.ToLower(mediaType), "multipart/"),
			Disposition: part.Header.Get("Content-Disposition"),
			Filename:    filenameOf(part.Header, params),
		}
		if p.Multipart {
			msg.Parts = append(msg.Parts, p)
			return nil
		}
		if err != nil {
			msg.skip(path, err)
			return nil
		}

		content, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			msg.skip(path, readErr)
			return nil
		}
		p.Content = content
		msg.Parts = append(msg.Parts, p)

		if p.IsAttachment() {
			return nil
		}
		switch p.MediaType {
		case "text/plain":
			text.Write(content)
		case "text/html":
			htmlBody.WriteString(Sanitize(string(content)))
		}
		return nil
	})
	if walkErr != nil {
		// A broken multipart structure ends the walk; keep what was decoded.
		msg.skip(nil, walkErr)
	}

	msg.BodyText = text.String()
	msg.BodyHTML = htmlBody.String()
	return msg, nil
}

func (m *Message) skip(path []int, err error) {
	f := DecodeFailure{Path: path, Err: err}
	m.Skipped = append(m.Skipped, f)
	log.Printf("[mailparse] skipping undecodable %v", f)
}

func subjectOf(h message.Header) string {
	if !h.Has("Subject") {
		return DefaultSubject
	}
	subject, err := h.Text("Subject")
	if err != nil {
		return h.Get("Subject")
	}
	return subject
}

// filenameOf reads the disposition filename, falling back to the
// Content-Type name parameter.
func filenameOf(h message.Header, typeParams map[string]string) string {
	name := ""
	if _, params, err := h.ContentDisposition(); err == nil {
		name = params["filename"]
	}
	if name == "" {
		name = typeParams["name"]
	}
	if name == "" {
		return ""
	}
	if decoded, err := wordDecoder.DecodeHeader(name); err == nil {
		name = decoded
	}
	return strings.TrimSpace(name)
}
