package app

import (
	"encoding/json"
	"testing"

	"thesis_realtime/internal/chatbot/domain"
	"thesis_realtime/internal/transport"
	"thesis_realtime/pkg/eventbus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type busChannel struct {
	bus *eventbus.Bus[json.RawMessage]
}

func (c busChannel) On(event string, h transport.Handler) eventbus.Subscription {
	return c.bus.Subscribe(event, h)
}

func (c busChannel) send(event string, payload any) {
	data, _ := json.Marshal(payload)
	c.bus.Publish(event, data)
}

func newTestMonitor() (*Monitor, busChannel) {
	ch := busChannel{bus: eventbus.New[json.RawMessage]()}
	m := NewMonitor(ch)
	m.Start()
	return m, ch
}

func TestJobLifecycle(t *testing.T) {
	m, ch := newTestMonitor()

	ch.send(domain.CrawlProgressEvent, domain.CrawlProgress{JobID: "j1", ResourceID: "r1", Progress: 40, Processed: 4, Total: 10})
	job, ok := m.Job("j1")
	require.True(t, ok)
	assert.Equal(t, domain.StageCrawl, job.Stage)
	assert.Equal(t, domain.JobRunning, job.Status)
	assert.Equal(t, 40.0, job.Progress)

	ch.send(domain.CrawlCompletedEvent, domain.CrawlProgress{JobID: "j1", ResourceID: "r1"})
	ch.send(domain.CrawlProgressEvent, domain.CrawlProgress{JobID: "j1", Progress: 90})

	job, _ = m.Job("j1")
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, 100.0, job.Progress)
	assert.Empty(t, m.ActiveJobs())

	ch.send(domain.EmbeddingProgressEvent, domain.CrawlProgress{JobID: "j1", Progress: 10})
	job, _ = m.Job("j1")
	assert.Equal(t, domain.StageEmbedding, job.Stage)
	assert.Equal(t, domain.JobRunning, job.Status)
	assert.Len(t, m.Jobs(), 1)
}

func TestJobFailure(t *testing.T) {
	m, ch := newTestMonitor()
	ch.send(domain.CrawlProgressEvent, domain.CrawlProgress{JobID: "j1"})
	ch.send(domain.CrawlProgressEvent, domain.CrawlProgress{JobID: "j2"})
	ch.send(domain.CrawlFailedEvent, domain.CrawlProgress{JobID: "j1", Error: "timeout"})

	job, _ := m.Job("j1")
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Equal(t, "timeout", job.Error)
	require.Len(t, m.ActiveJobs(), 1)
	assert.Equal(t, "j2", m.ActiveJobs()[0].JobID)
}

func TestResources(t *testing.T) {
	m, ch := newTestMonitor()
	var changed []string
	m.OnChange(func(id string) { changed = append(changed, id) })

	ch.send(domain.ResourceCreatedEvent, domain.ChatbotResource{ID: "r1", Name: "Handbook"})
	ch.send(domain.ResourceCreatedEvent, domain.ChatbotResource{ID: "r2", Name: "FAQ"})
	ch.send(domain.ResourceUpdatedEvent, domain.ChatbotResource{ID: "r1", Name: "Handbook v2"})
	ch.send(domain.ResourceDeletedEvent, domain.ChatbotResource{ID: "r2"})
	ch.send(domain.ResourceDeletedEvent, domain.ChatbotResource{ID: "missing"})

	res := m.Resources()
	require.Len(t, res, 1)
	assert.Equal(t, "Handbook v2", res[0].Name)
	assert.Equal(t, []string{"r1", "r2", "r1", "r2"}, changed)
}

func TestMalformedChatbotPayloads(t *testing.T) {
	m, ch := newTestMonitor()
	assert.NotPanics(t, func() {
		ch.bus.Publish(domain.CrawlProgressEvent, json.RawMessage(`{"jobId":`))
		ch.send(domain.CrawlProgressEvent, map[string]int{"progress": 3})
		ch.send(domain.ResourceCreatedEvent, map[string]string{"name": "no id"})
		m.Handle("unknown:event", json.RawMessage(`{}`))
	})
	assert.Empty(t, m.Jobs())
	assert.Empty(t, m.Resources())
}

func TestMonitorStop(t *testing.T) {
	m, ch := newTestMonitor()
	m.Start()
	m.Stop()
	ch.send(domain.CrawlProgressEvent, domain.CrawlProgress{JobID: "j1"})
	assert.Empty(t, m.Jobs())
}
