package cmd

import (
	"github.com/segmentio/ksuid"

	"github.com/itm/eventstore/pkg/serde"
)

const (
	typeString = "string"
	typeNote   = "evlog.note"
)

// Note is a free text event with a unique, time ordered id
type Note struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func newNote(text string) Note {
	return Note{ID: ksuid.New().String(), Text: text}
}

// serializers returns the payload types the CLI understands
func serializers() *serde.Set {
	set := serde.NewSet()
	serde.Register(set, serde.StringCodec())

	note := serde.JSON[Note]()
	note.Name = typeNote
	serde.Register(set, note)
	return set
}
