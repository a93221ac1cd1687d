package crawlermodule

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var progressUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const (
	progressPushInterval = time.Second
	progressWriteWait    = 5 * time.Second
)

// progressFrame is one pushed update on the progress socket.
type progressFrame struct {
	Crawl     CrawlProgress          `json:"crawl"`
	MultiSite MultiSiteCrawlProgress `json:"multi_site"`
	Timestamp time.Time              `json:"timestamp"`
}

// progressSocket streams crawl progress over a websocket, one frame per
// second until the client disconnects.
func (m *Module) progressSocket(c *gin.Context) {
	conn, err := progressUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		m.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Read pump exists only to notice the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			frame := progressFrame{
				Crawl:     m.runner.GetProgress(),
				MultiSite: m.orchestrator.GetProgress(),
				Timestamp: time.Now(),
			}
			conn.SetWriteDeadline(time.Now().Add(progressWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}
