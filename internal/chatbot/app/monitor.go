package app

import (
	"encoding/json"
	"strings"
	"sync"

	"thesis_realtime/internal/chatbot/domain"
	"thesis_realtime/internal/transport"
	"thesis_realtime/pkg/eventbus"
	"thesis_realtime/pkg/logger"

	"go.uber.org/zap"
)

const topicChanged = "changed"

// Channel the chatbot namespace, *transport.Namespace satisfies it
type Channel interface {
	On(event string, h transport.Handler) eventbus.Subscription
}

// Monitor admin view of crawl/embedding jobs and chatbot resources
type Monitor struct {
	ch Channel

	mu            sync.RWMutex
	jobs          map[string]domain.CrawlProgress
	jobOrder      []string
	resources     map[string]domain.ChatbotResource
	resourceOrder []string
	subs          []eventbus.Subscription

	changes *eventbus.Bus[string]
}

// NewMonitor create Monitor
func NewMonitor(ch Channel) *Monitor {
	return &Monitor{
		ch:        ch,
		jobs:      map[string]domain.CrawlProgress{},
		resources: map[string]domain.ChatbotResource{},
		changes:   eventbus.New[string](),
	}
}

// Start registers a listener per chatbot event
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.subs) > 0 {
		return
	}
	for _, event := range domain.Events {
		event := event
		m.subs = append(m.subs, m.ch.On(event, func(payload json.RawMessage) {
			m.Handle(event, payload)
		}))
	}
}

// Stop unregisters every listener
func (m *Monitor) Stop() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

// Handle applies one chatbot event; malformed payloads are logged and dropped
func (m *Monitor) Handle(event string, payload json.RawMessage) {
	switch {
	case strings.HasPrefix(event, "resource:"):
		var res domain.ChatbotResource
		if err := json.Unmarshal(payload, &res); err != nil || res.ID == "" {
			logger.Log.Warn("malformed payload dropped", zap.String("event", event), zap.Error(err))
			return
		}
		m.applyResource(event, res)

	case strings.HasPrefix(event, "crawl:"), strings.HasPrefix(event, "embedding:"):
		var p domain.CrawlProgress
		if err := json.Unmarshal(payload, &p); err != nil || p.JobID == "" {
			logger.Log.Warn("malformed payload dropped", zap.String("event", event), zap.Error(err))
			return
		}
		m.applyJob(event, p)

	default:
		logger.Log.Debug("unhandled chatbot event", zap.String("event", event))
	}
}

func (m *Monitor) applyJob(event string, p domain.CrawlProgress) {
	stage, kind, _ := strings.Cut(event, ":")
	if p.Stage == "" {
		p.Stage = domain.Stage(stage)
	}
	switch kind {
	case "progress":
		p.Status = domain.JobRunning
	case "completed":
		p.Status = domain.JobCompleted
		p.Progress = 100
	case "failed":
		p.Status = domain.JobFailed
	}

	m.mu.Lock()
	prev, known := m.jobs[p.JobID]
	if known && prev.Status.Terminal() && prev.Stage == p.Stage && p.Status == domain.JobRunning {
		m.mu.Unlock()
		logger.Log.Debug("progress after terminal state ignored", zap.String("jobId", p.JobID))
		return
	}
	if !known {
		m.jobOrder = append(m.jobOrder, p.JobID)
	}
	m.jobs[p.JobID] = p
	m.mu.Unlock()

	m.changes.Publish(topicChanged, p.JobID)
}

func (m *Monitor) applyResource(event string, res domain.ChatbotResource) {
	m.mu.Lock()
	_, known := m.resources[res.ID]
	switch event {
	case domain.ResourceDeletedEvent:
		if !known {
			m.mu.Unlock()
			return
		}
		delete(m.resources, res.ID)
		for i, id := range m.resourceOrder {
			if id == res.ID {
				m.resourceOrder = append(m.resourceOrder[:i:i], m.resourceOrder[i+1:]...)
				break
			}
		}
	default:
		if !known {
			m.resourceOrder = append(m.resourceOrder, res.ID)
		}
		m.resources[res.ID] = res
	}
	m.mu.Unlock()

	m.changes.Publish(topicChanged, res.ID)
}

// Job progress of one job
func (m *Monitor) Job(jobID string) (domain.CrawlProgress, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.jobs[jobID]
	return p, ok
}

// Jobs every job in first-seen order
func (m *Monitor) Jobs() []domain.CrawlProgress {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.CrawlProgress, 0, len(m.jobOrder))
	for _, id := range m.jobOrder {
		out = append(out, m.jobs[id])
	}
	return out
}

// ActiveJobs jobs still running
func (m *Monitor) ActiveJobs() []domain.CrawlProgress {
	var out []domain.CrawlProgress
	for _, j := range m.Jobs() {
		if !j.Status.Terminal() {
			out = append(out, j)
		}
	}
	return out
}

// Resources in creation order
func (m *Monitor) Resources() []domain.ChatbotResource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ChatbotResource, 0, len(m.resourceOrder))
	for _, id := range m.resourceOrder {
		out = append(out, m.resources[id])
	}
	return out
}

// OnChange fn receives the job or resource id that changed
func (m *Monitor) OnChange(fn func(id string)) eventbus.Subscription {
	return m.changes.Subscribe(topicChanged, fn)
}
