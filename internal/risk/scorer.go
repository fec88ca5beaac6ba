package risk

import "github.com/xela07ax/pamwatch/internal/domain"

const (
	// DefaultBaseScore — базовый балл для неизвестного действия
	DefaultBaseScore = 30
	// OffHoursPenalty за действие вне рабочего окна
	OffHoursPenalty = 30
	// RemotePenalty за действие не с локального адреса
	RemotePenalty = 40

	MaxScore = 100
)

// ActionBaseScores — фиксированная таблица правил (модель не обучается).
var ActionBaseScores = map[string]int{
	"OAUTH_LOGIN_SUCCESS":         40,
	"DB_CONNECT":                  40,
	"RUN_QUERY":                   45,
	"BACKUP_DB":                   50,
	"DELETE_TABLE":                95,
	"SHUTDOWN_ROUTER":             95,
	"rm -rf /":                    95,
	"SSH_ROUTER":                  55,
	"CHECK_FIREWALL":              40,
	"PING_HOST":                   40,
	"START_SERVER":                30,
	"DEPLOY_APP":                  35,
	"GIT_PULL":                    25,
	"CHECK_BILLING":               30,
	"PROVISION_VM":                60,
	"SCALE_CLUSTER":               50,
	"UPDATE_IAM":                  70,
	"LOGIN_SUCCESS":               20,
	"LOGIN_FAILED_WRONG_PASSWORD": 50,
	"LOGIN_FAILED_NO_USER":        60,
}

// Score считает риск события. Чистая функция: одинаковые (событие, настройки)
// всегда дают одинаковый результат.
func Score(ev domain.LogEvent, s domain.Settings) (int, domain.RiskCategory) {
	score, ok := ActionBaseScores[ev.ActionType]
	if !ok {
		score = DefaultBaseScore
	}

	if !s.BusinessHours.Contains(ev.Hour) {
		score += OffHoursPenalty
	}
	if !ev.IPIsLocal {
		score += RemotePenalty
	}

	score = clamp(score)
	return score, Categorize(score, s.RiskThresholds)
}

// Categorize раскладывает балл по текущим порогам
func Categorize(score int, t domain.RiskThresholds) domain.RiskCategory {
	switch {
	case score >= t.Critical:
		return domain.RiskCritical
	case score >= t.High:
		return domain.RiskHigh
	case score >= t.Medium:
		return domain.RiskMedium
	default:
		return domain.RiskNormal
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
