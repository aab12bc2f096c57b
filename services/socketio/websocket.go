package socketio

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// payload of the ping/pong pair that checks a websocket before upgrade
const upgradeCheck = "probe"

func (c *conn) readPump(ws *websocket.Conn) {
	defer c.close()

	readTimeout := c.srv.conf.PingInterval + c.srv.conf.PingTimeout
	ws.SetReadLimit(c.srv.conf.MaxPayload)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

	for {
		msgType, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.srv.logger.Debug(fmt.Sprintf("socketio: reading from %s", c.id), err)
			}
			return
		}
		// any frame proves the peer alive
		c.touch()
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		if msgType != websocket.TextMessage {
			c.srv.logger.Debug(fmt.Sprintf("socketio: binary frame from %s, closing", c.id))
			return
		}
		if !c.receive(frame) {
			return
		}
	}
}

// writePump drains the whole queue on every wake-up, one websocket message per frame.
func (c *conn) writePump(ws *websocket.Conn) {
	defer func() { _ = ws.Close() }()
	writeWait := c.srv.conf.WriteTimeout

	// frames queued before the websocket took over
	c.signal()
	for {
		select {
		case <-c.closed:
			<-c.done
			// say goodbye to the engine then to the websocket
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.TextMessage, []byte{engineClose})
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-c.wake:
			for _, frame := range c.take() {
				_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
					c.srv.logger.Debug(fmt.Sprintf("socketio: writing to %s", c.id), err)
					c.close()
					return
				}
			}
		}
	}
}

// upgrade moves a long-polling session onto ws once the client has checked it.
// A failed check leaves the session on long-polling.
func (c *conn) upgrade(ws *websocket.Conn) {
	if !c.checkUpgrade(ws) {
		_ = ws.Close()
		c.mu.Lock()
		c.switching = false
		c.upgrading = false
		c.mu.Unlock()
		c.signal()
		return
	}
	go c.writePump(ws)
	c.readPump(ws)
}

// checkUpgrade runs the upgrade handshake: ping and pong with the check payload, then the upgrade packet.
func (c *conn) checkUpgrade(ws *websocket.Conn) bool {
	conf := c.srv.conf
	ws.SetReadLimit(conf.MaxPayload)
	_ = ws.SetReadDeadline(time.Now().Add(conf.PingTimeout))

	if _, data, err := ws.ReadMessage(); err != nil || string(data) != string(enginePing)+upgradeCheck {
		return false
	}
	_ = ws.SetWriteDeadline(time.Now().Add(conf.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, []byte(string(enginePong)+upgradeCheck)); err != nil {
		return false
	}

	// release the pending poll with a noop
	c.mu.Lock()
	c.upgrading = true
	c.mu.Unlock()
	c.signal()

	if _, data, err := ws.ReadMessage(); err != nil || string(data) != string(engineUpgrade) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switching = false
	c.upgrading = false
	c.upgraded = true
	c.lastSeen = time.Now()
	return true
}
