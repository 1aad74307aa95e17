package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingCloser struct {
	name  string
	err   error
	order *[]string
}

func (c recordingCloser) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestClosers_CloseAllInReverseOrder(t *testing.T) {
	var order []string
	conns := closers{
		recordingCloser{name: "stt", order: &order},
		recordingCloser{name: "tts", err: errors.New("already closed"), order: &order},
		recordingCloser{name: "translate", order: &order},
	}

	conns.close()

	assert.Equal(t, []string{"translate", "tts", "stt"}, order)
}

func TestClosers_EmptyIsNoop(t *testing.T) {
	var conns closers
	assert.NotPanics(t, conns.close)
}
