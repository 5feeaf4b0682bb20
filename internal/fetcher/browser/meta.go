package browser

import (
	"sync"

	"github.com/chromedp/cdproto/network"
)

// responseMeta records the main-document response observed during a
// navigation: status code, final URL and the request ID needed to pull
// the raw body later.
type responseMeta struct {
	mu        sync.RWMutex
	status    int
	url       string
	requestID network.RequestID
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
	m.requestID = event.RequestID
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, string, network.RequestID) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.url, m.requestID
}
