package watcher

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xela07ax/pamwatch/internal/domain"
)

const (
	authFields   = 4
	actionFields = 6
)

// ParseLine разбирает строку журнала.
//
//	auth:   hour,ipIsLocal,actionType,userRole
//	action: hour,ipIsLocal,actionType,userRole,sessionId,details
//
// В details запятые JSON заменены на ';' чтобы не ломать формат строки.
func ParseLine(stream domain.SourceStream, line string) (domain.LogEvent, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.Split(line, ",")

	switch stream {
	case domain.StreamAuth:
		if len(parts) != authFields {
			return domain.LogEvent{}, fmt.Errorf("%w: auth line has %d fields", domain.ErrMalformedLine, len(parts))
		}
	case domain.StreamAction:
		if len(parts) < actionFields {
			return domain.LogEvent{}, fmt.Errorf("%w: action line has %d fields", domain.ErrMalformedLine, len(parts))
		}
	default:
		return domain.LogEvent{}, fmt.Errorf("%w: unknown stream %q", domain.ErrMalformedLine, stream)
	}

	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 || hour > 23 {
		return domain.LogEvent{}, fmt.Errorf("%w: bad hour %q", domain.ErrMalformedLine, parts[0])
	}

	var local bool
	switch strings.TrimSpace(parts[1]) {
	case "1":
		local = true
	case "0":
		local = false
	default:
		return domain.LogEvent{}, fmt.Errorf("%w: bad ip flag %q", domain.ErrMalformedLine, parts[1])
	}

	ev := domain.LogEvent{
		Hour:       hour,
		IPIsLocal:  local,
		ActionType: parts[2],
		UserRole:   parts[3],
		Source:     stream,
	}

	if stream == domain.StreamAction {
		ev.SessionID = parts[4]
		// Поля после пятого принадлежат details
		raw := strings.ReplaceAll(strings.Join(parts[5:], ","), ";", ",")
		if strings.TrimSpace(raw) != "" {
			if err := json.Unmarshal([]byte(raw), &ev.Details); err != nil {
				return domain.LogEvent{}, fmt.Errorf("%w: details: %v", domain.ErrMalformedLine, err)
			}
		}
	}

	return ev, nil
}
