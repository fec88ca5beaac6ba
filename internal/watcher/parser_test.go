package watcher

import (
	"errors"
	"testing"

	"github.com/xela07ax/pamwatch/internal/domain"
)

func TestParseLine_Auth(t *testing.T) {
	ev, err := ParseLine(domain.StreamAuth, "9,1,OAUTH_LOGIN_SUCCESS,System Admin\n")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	want := domain.LogEvent{Hour: 9, IPIsLocal: true, ActionType: "OAUTH_LOGIN_SUCCESS", UserRole: "System Admin", Source: domain.StreamAuth}
	if ev.Hour != want.Hour || ev.IPIsLocal != want.IPIsLocal || ev.ActionType != want.ActionType ||
		ev.UserRole != want.UserRole || ev.Source != want.Source || ev.SessionID != "" {
		t.Fatalf("ParseLine() = %+v, want %+v", ev, want)
	}
}

func TestParseLine_ActionRestoresDetailsCommas(t *testing.T) {
	line := `23,0,DELETE_TABLE,Database Admin,abc-123,{"table": "users"; "rows": 42; "tags": ["a"; "b"]}` + "\n"

	ev, err := ParseLine(domain.StreamAction, line)
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if ev.Hour != 23 || ev.IPIsLocal || ev.SessionID != "abc-123" || ev.Source != domain.StreamAction {
		t.Fatalf("ParseLine() = %+v", ev)
	}
	if ev.Details["table"] != "users" || ev.Details["rows"] != float64(42) {
		t.Errorf("details = %v", ev.Details)
	}
	if tags, ok := ev.Details["tags"].([]interface{}); !ok || len(tags) != 2 {
		t.Errorf("tags = %v, want two elements", ev.Details["tags"])
	}
}

func TestParseLine_ActionEmptyDetails(t *testing.T) {
	ev, err := ParseLine(domain.StreamAction, "10,1,GIT_PULL,Developer,s1,{}\n")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if len(ev.Details) != 0 {
		t.Errorf("details = %v, want empty", ev.Details)
	}
}

func TestParseLine_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		stream domain.SourceStream
		line   string
	}{
		{"auth too few fields", domain.StreamAuth, "9,1,LOGIN_SUCCESS"},
		{"auth too many fields", domain.StreamAuth, "9,1,LOGIN_SUCCESS,Admin,extra"},
		{"action too few fields", domain.StreamAction, "9,1,RUN_QUERY,Admin,s1"},
		{"hour not a number", domain.StreamAuth, "nine,1,LOGIN_SUCCESS,Admin"},
		{"hour out of range", domain.StreamAuth, "24,1,LOGIN_SUCCESS,Admin"},
		{"bad ip flag", domain.StreamAuth, "9,yes,LOGIN_SUCCESS,Admin"},
		{"broken details json", domain.StreamAction, `9,1,RUN_QUERY,Admin,s1,{"q": `},
		{"empty line", domain.StreamAuth, ""},
		{"unknown stream", domain.SourceStream("other"), "9,1,X,Y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLine(tt.stream, tt.line); !errors.Is(err, domain.ErrMalformedLine) {
				t.Errorf("ParseLine() error = %v, want ErrMalformedLine", err)
			}
		})
	}
}
