package domain

import (
	"encoding/json"
	"fmt"
)

// Settings — конфигурация, которую админ меняет на лету.
// Ключи JSON совпадают с файлом system_settings.json портала.
type Settings struct {
	RiskThresholds    RiskThresholds    `json:"risk_thresholds"`
	SessionManagement SessionManagement `json:"session_management"`
	Dashboard         DashboardSettings `json:"dashboard"`
	BusinessHours     BusinessHours     `json:"business_hours"`
	Logs              LogSettings       `json:"logs"`
	Alerts            AlertSettings     `json:"alerts"`
	Security          SecuritySettings  `json:"security"`

	// Секции файла, которые сервис не интерпретирует (их пишет портал).
	// Переживают загрузку, обновление и сохранение без изменений.
	Extra map[string]json.RawMessage `json:"-"`
}

// Известные секции; все прочие ключи верхнего уровня уходят в Extra
var knownSections = map[string]bool{
	"risk_thresholds":    true,
	"session_management": true,
	"dashboard":          true,
	"business_hours":     true,
	"logs":               true,
	"alerts":             true,
	"security":           true,
}

type RiskThresholds struct {
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

type SessionManagement struct {
	MaxStrikes int `json:"max_strikes"`
	// Хранится для дашборда, автоматического истечения сессий нет
	SessionTimeoutMinutes int `json:"session_timeout"`
}

type DashboardSettings struct {
	RefreshIntervalSeconds int `json:"refresh_interval"`
	MaxEvents              int `json:"max_events"` // -1: без ограничения
}

// BusinessHours — рабочее окно [Start, End) в часах
type BusinessHours struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type LogSettings struct {
	RetentionDays int    `json:"retention_days"`
	LogLevel      string `json:"log_level"`
}

// AlertSettings читает портал при отправке уведомлений
type AlertSettings struct {
	EmailEnabled    bool     `json:"email_enabled"`
	SlackEnabled    bool     `json:"slack_enabled"`
	EmailRecipients []string `json:"email_recipients"`
	WebhookURL      string   `json:"webhook_url"`
}

type SecuritySettings struct {
	RequireMFA         bool     `json:"require_mfa"`
	IPWhitelistEnabled bool     `json:"ip_whitelist_enabled"`
	AllowedIPs         []string `json:"allowed_ips"`
}

func DefaultSettings() Settings {
	return Settings{
		RiskThresholds:    RiskThresholds{Medium: 60, High: 80, Critical: 95},
		SessionManagement: SessionManagement{MaxStrikes: 3, SessionTimeoutMinutes: 30},
		Dashboard:         DashboardSettings{RefreshIntervalSeconds: 3, MaxEvents: 50},
		BusinessHours:     BusinessHours{Start: 8, End: 17},
		Logs:              LogSettings{RetentionDays: 30, LogLevel: "info"},
		Alerts: AlertSettings{
			EmailEnabled:    true,
			EmailRecipients: []string{"security@company.com"},
		},
		Security: SecuritySettings{
			RequireMFA: true,
			AllowedIPs: []string{"192.168.1.0/24"},
		},
	}
}

// Clone возвращает глубокую копию: json.Unmarshal переиспользует массивы слайсов,
// поэтому сливать патч можно только в клон.
func (s Settings) Clone() Settings {
	out := s
	if s.Alerts.EmailRecipients != nil {
		out.Alerts.EmailRecipients = append([]string(nil), s.Alerts.EmailRecipients...)
	}
	if s.Security.AllowedIPs != nil {
		out.Security.AllowedIPs = append([]string(nil), s.Security.AllowedIPs...)
	}
	if s.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// UnmarshalJSON сливает документ поверх текущего значения: известные секции поле
// за полем, неизвестные целиком заменяют одноименные ключи в Extra.
func (s *Settings) UnmarshalJSON(data []byte) error {
	type plain Settings
	if err := json.Unmarshal(data, (*plain)(s)); err != nil {
		return err
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		return err
	}
	var extra map[string]json.RawMessage
	for k, v := range sections {
		if knownSections[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage, len(s.Extra)+len(sections))
			for ek, ev := range s.Extra {
				extra[ek] = ev
			}
		}
		extra[k] = v
	}
	if extra != nil {
		s.Extra = extra
	}
	return nil
}

// MarshalJSON пишет известные секции и возвращает на место Extra
func (s Settings) MarshalJSON() ([]byte, error) {
	type plain Settings
	known, err := json.Marshal(plain(s))
	if err != nil || len(s.Extra) == 0 {
		return known, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(known, &doc); err != nil {
		return nil, err
	}
	for k, v := range s.Extra {
		if _, ok := doc[k]; !ok {
			doc[k] = v
		}
	}
	return json.Marshal(doc)
}

// Validate проверяет инварианты, которые должны держаться после любого обновления
func (s Settings) Validate() error {
	t := s.RiskThresholds
	if !(t.Medium < t.High && t.High < t.Critical) {
		return fmt.Errorf("%w: risk thresholds must be ascending (medium < high < critical)", ErrInvalidSettings)
	}
	if s.SessionManagement.MaxStrikes < 1 {
		return fmt.Errorf("%w: max_strikes must be at least 1", ErrInvalidSettings)
	}
	if s.Dashboard.MaxEvents != -1 && s.Dashboard.MaxEvents < 1 {
		return fmt.Errorf("%w: max_events must be positive or -1", ErrInvalidSettings)
	}
	b := s.BusinessHours
	if b.Start < 0 || b.End > 24 || b.Start >= b.End {
		return fmt.Errorf("%w: business hours must satisfy 0 <= start < end <= 24", ErrInvalidSettings)
	}
	return nil
}

// Contains проверяет, попадает ли час в [Start, End)
func (b BusinessHours) Contains(hour int) bool {
	return hour >= b.Start && hour < b.End
}
