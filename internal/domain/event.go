package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceStream — из какого журнала пришла строка
type SourceStream string

const (
	StreamAuth   SourceStream = "auth"   // Журнал аутентификации (4 поля)
	StreamAction SourceStream = "action" // Журнал действий в портале (6+ полей)
)

// ActionPortalAccessRevoked — действие, которым переписывается событие, вызвавшее отзыв доступа
const ActionPortalAccessRevoked = "PORTAL_ACCESS_REVOKED"

// LogEvent — структурированная строка журнала активности.
// Это же тело запроса на скоринг (POST /analyze).
type LogEvent struct {
	Hour       int                    `json:"hour"`
	IPIsLocal  bool                   `json:"ip_is_local"`
	ActionType string                 `json:"event_type"`
	UserRole   string                 `json:"user_role"`
	SessionID  string                 `json:"session_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Source     SourceStream           `json:"log_source"`
}

// UnmarshalJSON принимает ip_is_local как 0/1 (формат журналов) или как bool.
func (e *LogEvent) UnmarshalJSON(data []byte) error {
	type alias LogEvent
	aux := struct {
		*alias
		IPIsLocal json.RawMessage `json:"ip_is_local"`
		Hour      *int            `json:"hour"`
	}{alias: (*alias)(e)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	// Пропущенные поля: полдень, локальный IP
	e.Hour = 12
	if aux.Hour != nil {
		e.Hour = *aux.Hour
	}

	e.IPIsLocal = true
	switch string(aux.IPIsLocal) {
	case "", "null", "1", "true":
	case "0", "false":
		e.IPIsLocal = false
	default:
		return fmt.Errorf("ip_is_local: unsupported value %s", aux.IPIsLocal)
	}
	return nil
}

// MarshalJSON отдает ip_is_local в числовом виде, совместимом с журналами.
func (e LogEvent) MarshalJSON() ([]byte, error) {
	type alias LogEvent
	local := 0
	if e.IPIsLocal {
		local = 1
	}
	return json.Marshal(struct {
		alias
		IPIsLocal int `json:"ip_is_local"`
	}{alias: alias(e), IPIsLocal: local})
}

// RiskCategory — категория риска по текущим порогам
type RiskCategory string

const (
	RiskNormal   RiskCategory = "Normal"
	RiskMedium   RiskCategory = "Medium"
	RiskHigh     RiskCategory = "High"
	RiskCritical RiskCategory = "Critical"
)

// EventUser — кто совершил действие (дашборд читает event.user.role)
type EventUser struct {
	Role string `json:"role"`
}

// ScoredEvent — результат скоринга. После сохранения не меняется.
type ScoredEvent struct {
	ID           int64                  `json:"id"`
	OccurredAt   time.Time              `json:"time"`
	RiskScore    int                    `json:"riskScore"`
	RiskCategory RiskCategory           `json:"riskCategory"`
	Action       string                 `json:"action"`
	User         EventUser              `json:"user"`
	SessionID    string                 `json:"sessionId,omitempty"`
	Source       SourceStream           `json:"source"`
	Details      map[string]interface{} `json:"details,omitempty"`
}
