package handlers

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/posts"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/state"
	"github.com/go-playground/assert/v2"
)

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	err := writeEvent(w, "posts", posts.State{Posts: []posts.Post{}, Status: state.StatusSucceeded})
	assert.Equal(t, nil, err)
	assert.Equal(t, "event: posts\ndata: {\"posts\":[],\"status\":\"succeeded\"}\n\n", buf.String())
}

func TestLatestKeepsNewest(t *testing.T) {
	l := newLatest()
	l.offer(posts.State{Status: state.StatusLoading})
	l.offer(posts.State{Status: state.StatusSucceeded})

	st := <-l.c
	assert.Equal(t, state.StatusSucceeded, st.Status)
	select {
	case <-l.c:
		t.Fatal("stale state was kept")
	default:
	}
}
