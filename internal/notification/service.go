package notification

import (
	"fmt"
	"sync"

	"github.com/neovance/neovance-go/internal/alerting"
	"github.com/neovance/neovance-go/internal/logger"
)

const (
	// defaultMaxNotifications bounds the in-memory history.
	defaultMaxNotifications = 500
	// subscriberBufferSize is the per-subscriber channel capacity. Slow
	// subscribers lose notifications rather than block delivery.
	subscriberBufferSize = 64
)

// ServiceConfig parameterizes the notification service.
type ServiceConfig struct {
	MaxNotifications int
}

// Service keeps a bounded, newest-first notification history and fans new
// notifications out to subscribers.
type Service struct {
	cfg ServiceConfig
	log logger.Logger

	mu            sync.RWMutex
	notifications []*Notification
	subscribers   map[uint64]chan *Notification
	nextSub       uint64
}

// NewService creates a notification service.
func NewService(cfg ServiceConfig, log logger.Logger) *Service {
	if cfg.MaxNotifications <= 0 {
		cfg.MaxNotifications = defaultMaxNotifications
	}
	return &Service{
		cfg:         cfg,
		log:         log,
		subscribers: make(map[uint64]chan *Notification),
	}
}

// Publish stores a notification and fans it out to subscribers. Delivery to a
// full subscriber channel is skipped so publication never blocks.
func (s *Service) Publish(n *Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = append([]*Notification{n}, s.notifications...)
	if len(s.notifications) > s.cfg.MaxNotifications {
		s.notifications = s.notifications[:s.cfg.MaxNotifications]
	}

	// Sends happen under the same lock Subscribe's cancel closes channels
	// under, so a send can never hit a closed channel. The sends are
	// non-blocking, so the lock is held only briefly.
	for _, ch := range s.subscribers {
		select {
		case ch <- n:
		default:
			s.log.Warn("notification subscriber buffer full, dropping",
				logger.String("notification_id", n.ID))
		}
	}
}

// NotifyAlertCreated publishes the clinician-facing notification for a newly
// opened alert.
func (s *Service) NotifyAlertCreated(alert alerting.Alert) {
	s.Publish(New(TypeAlertCreated, PriorityCritical,
		"Sepsis risk alert",
		fmt.Sprintf("Subject %s flagged at probability %.2f, predicted onset within %.0f hours",
			alert.SubjectID, alert.RiskProbability, alert.OnsetWindowHours)).
		WithSubject(alert.SubjectID).
		WithAlert(alert.ID).
		WithMetadata("risk_probability", alert.RiskProbability))
}

// NotifyTransition publishes the notification matching an alert lifecycle
// transition.
func (s *Service) NotifyTransition(alert alerting.Alert) {
	switch alert.Status {
	case alerting.StatusActionTaken:
		s.Publish(New(TypeActionRecorded, PriorityHigh,
			"Clinician action recorded",
			fmt.Sprintf("Alert %d: %s by %s", alert.ID, alert.ActionType, alert.ClinicianID)).
			WithSubject(alert.SubjectID).
			WithAlert(alert.ID).
			WithMetadata("action_type", string(alert.ActionType)))
	case alerting.StatusOutcomeLogged:
		confirmed := alert.OutcomeConfirmed != nil && *alert.OutcomeConfirmed
		s.Publish(New(TypeOutcomeLogged, PriorityNormal,
			"Alert outcome logged",
			fmt.Sprintf("Alert %d resolved, sepsis confirmed: %t", alert.ID, confirmed)).
			WithSubject(alert.SubjectID).
			WithAlert(alert.ID))
	case alerting.StatusSuperseded:
		s.Publish(New(TypeSystem, PriorityNormal,
			"Alert superseded",
			fmt.Sprintf("Alert %d superseded by alert %d", alert.ID, alert.SupersededBy)).
			WithSubject(alert.SubjectID).
			WithAlert(alert.ID))
	}
}

// List returns up to limit notifications, newest first. limit <= 0 returns
// everything. unreadOnly filters to unread entries.
func (s *Service) List(limit int, unreadOnly bool) []*Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if unreadOnly && n.Read {
			continue
		}
		copied := *n
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return fmt.Errorf("notification %s not found", id)
}

// UnreadCount returns the number of unread notifications.
func (s *Service) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifications {
		if !n.Read {
			count++
		}
	}
	return count
}

// Subscribe registers a notification channel. The returned cancel function
// removes the subscription and closes the channel.
func (s *Service) Subscribe() (<-chan *Notification, func()) {
	ch := make(chan *Notification, subscriberBufferSize)

	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subscribers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}
