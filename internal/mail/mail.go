package mail

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/linemk/gomarket/internal/domain/models"
	"github.com/linemk/gomarket/internal/service"
	"gopkg.in/gomail.v2"
)

// Mailer отправляет письма в фоне: вызывающий только кладёт письмо
// в очередь и никогда не ждёт отправки. Ошибки логируются и не
// влияют на уже закоммиченный заказ или смену статуса.
type Mailer struct {
	log    *slog.Logger
	dialer *gomail.Dialer
	from   string
	queue  chan *gomail.Message
	wg     sync.WaitGroup
	once   sync.Once
}

// интерфейсная проверка: мейлер подходит сервисам
var _ service.Mailer = (*Mailer)(nil)

const queueSize = 64

// Config — настройки SMTP; пустой Host выключает отправку
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func New(log *slog.Logger, cfg Config) *Mailer {
	m := &Mailer{
		log:   log,
		from:  cfg.From,
		queue: make(chan *gomail.Message, queueSize),
	}
	if cfg.Host != "" {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	} else {
		log.Info("smtp is not configured, email disabled")
	}

	m.wg.Add(1)
	go m.worker()
	return m
}

func (m *Mailer) worker() {
	defer m.wg.Done()
	for msg := range m.queue {
		if m.dialer == nil {
			continue
		}
		if err := m.dialer.DialAndSend(msg); err != nil {
			m.log.Warn("failed to send email", slog.Any("error", err))
		}
	}
}

// Close дожидается отправки поставленных в очередь писем
func (m *Mailer) Close() {
	m.once.Do(func() {
		close(m.queue)
	})
	m.wg.Wait()
}

func (m *Mailer) enqueue(to, subject, body string) {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	select {
	case m.queue <- msg:
	default:
		m.log.Warn("email queue is full, dropping message", slog.String("to", to))
	}
}

// SendOrderConfirmation ставит в очередь письмо-подтверждение заказа
func (m *Mailer) SendOrderConfirmation(email string, order *models.Order) {
	body := fmt.Sprintf(
		"Your order %s has been placed.\nTotal: %s USD\nStatus: %s\n",
		order.ID, order.TotalAmount.StringFixed(2), order.Status,
	)
	m.enqueue(email, fmt.Sprintf("Order %s confirmed", order.ID), body)
}

// SendStatusUpdate ставит в очередь письмо о смене статуса заказа
func (m *Mailer) SendStatusUpdate(email string, order *models.Order) {
	body := fmt.Sprintf("Your order %s is now %s.\n", order.ID, order.Status)
	m.enqueue(email, fmt.Sprintf("Order %s update", order.ID), body)
}
