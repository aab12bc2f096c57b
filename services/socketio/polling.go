package socketio

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// poll answers a long-polling GET with the queued frames, waiting up to pollWait for some.
func (c *conn) poll(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	switch {
	case c.upgraded:
		c.mu.Unlock()
		handshakeError(w, http.StatusBadRequest, codeBadRequest, "Bad request")
		return
	case c.polling:
		c.mu.Unlock()
		handshakeError(w, http.StatusBadRequest, codeBadRequest, "Bad request")
		c.srv.logger.Debug(fmt.Sprintf("socketio: overlapping polls from %s, closing", c.id))
		c.close()
		return
	}
	c.polling = true
	c.lastSeen = time.Now()
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.polling = false
		c.mu.Unlock()
	}()

	timer := time.NewTimer(c.srv.pollWait)
	defer timer.Stop()
	for {
		if frames := c.pollFrames(); len(frames) > 0 {
			writePayload(w, frames)
			return
		}
		select {
		case <-c.wake:
		case <-c.closed:
			writePayload(w, append(c.take(), []byte{engineClose}))
			return
		case <-timer.C:
			writePayload(w, [][]byte{{engineNoop}})
			return
		case <-r.Context().Done():
			return
		}
	}
}

// pollFrames takes the queued frames, or a noop once the session moves to a websocket.
func (c *conn) pollFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.upgrading || c.upgraded {
		return [][]byte{{engineNoop}}
	}
	return c.takeLocked()
}

// post handles the frames of a long-polling POST.
func (c *conn) post(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	upgraded := c.upgraded
	c.mu.Unlock()
	if upgraded {
		handshakeError(w, http.StatusBadRequest, codeBadRequest, "Bad request")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, c.srv.conf.MaxPayload))
	if err != nil {
		c.srv.logger.Debug(fmt.Sprintf("socketio: reading payload from %s, closing", c.id), err)
		c.close()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handshakeError(w, http.StatusRequestEntityTooLarge, codeBadRequest, "Payload too large")
			return
		}
		handshakeError(w, http.StatusBadRequest, codeBadRequest, "Bad request")
		return
	}

	c.touch()
	for _, frame := range decodePayload(body) {
		// base64 encoded binary packet
		if len(frame) > 0 && frame[0] == 'b' {
			c.srv.logger.Debug(fmt.Sprintf("socketio: binary packet from %s, closing", c.id))
			c.close()
			break
		}
		if !c.receive(frame) {
			c.close()
			break
		}
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte("ok"))
}

func writePayload(w http.ResponseWriter, frames [][]byte) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	_, _ = w.Write(encodePayload(frames))
}
