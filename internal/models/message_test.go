package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want error
	}{
		{"author id", Event{MessageID: "m1", AuthorID: "u1"}, nil},
		{"sender fallback", Event{MessageID: "m1", From: "5521@c.us"}, nil},
		{"missing id", Event{AuthorID: "u1"}, ErrMissingMessageID},
		{"missing author", Event{MessageID: "m1"}, ErrMissingAuthor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.ev.Validate(), tt.want)
		})
	}
}
