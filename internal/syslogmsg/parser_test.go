package syslogmsg

import (
	"testing"
	"time"
)

func TestParseRfc5424Minimal(t *testing.T) {
	// Scenario S1 from the spec.
	p := NewParser(time.UTC)
	msg, err := p.Parse([]byte("<34>1 2024-01-01T00:00:00Z host app 1 ID47 - hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Priority != 34 {
		t.Errorf("priority = %d, want 34", msg.Priority)
	}
	if msg.Version != Rfc5424 {
		t.Errorf("version = %v, want Rfc5424", msg.Version)
	}
	if msg.Hostname == nil || *msg.Hostname != "host" {
		t.Errorf("hostname = %v, want host", msg.Hostname)
	}
	if msg.AppName == nil || *msg.AppName != "app" {
		t.Errorf("app_name = %v, want app", msg.AppName)
	}
	if msg.ProcID == nil || *msg.ProcID != "1" {
		t.Errorf("proc_id = %v, want 1", msg.ProcID)
	}
	if msg.MsgID == nil || *msg.MsgID != "ID47" {
		t.Errorf("msg_id = %v, want ID47", msg.MsgID)
	}
	if msg.Body != "hello" {
		t.Errorf("body = %q, want hello", msg.Body)
	}
	wantTS := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if msg.TimestampMs != wantTS {
		t.Errorf("timestamp_ms = %d, want %d", msg.TimestampMs, wantTS)
	}
}

func TestParseRfc5424AllAbsent(t *testing.T) {
	p := NewParser(time.UTC)
	msg, err := p.Parse([]byte("<13>1 - - - - - - body text"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Hostname != nil || msg.AppName != nil || msg.ProcID != nil || msg.MsgID != nil {
		t.Errorf("expected all header fields absent, got %+v", msg)
	}
	if msg.TimestampMs != 0 {
		t.Errorf("timestamp_ms = %d, want 0", msg.TimestampMs)
	}
	if msg.Body != "body text" {
		t.Errorf("body = %q", msg.Body)
	}
}

func TestParseRfc5424StructuredData(t *testing.T) {
	p := NewParser(time.UTC)
	raw := `<165>1 2003-10-11T22:14:15.003Z mymachine.example.com evntslog - ID47 [exampleSDID@32473 iut="3" eventSource="Application" eventID="1011"][examplePriority@32473 class="high"] An application event log entry`
	msg, err := p.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msg.StructuredData) != 2 {
		t.Fatalf("structured data len = %d, want 2", len(msg.StructuredData))
	}
	first := msg.StructuredData[0]
	if first.ID != "exampleSDID@32473" {
		t.Errorf("first SD-ID = %q", first.ID)
	}
	if len(first.Params) != 3 {
		t.Fatalf("first params len = %d, want 3", len(first.Params))
	}
	if first.Params[0] != (SDParam{Name: "iut", Value: "3"}) {
		t.Errorf("first param = %+v", first.Params[0])
	}
	second := msg.StructuredData[1]
	if second.ID != "examplePriority@32473" || len(second.Params) != 1 {
		t.Errorf("second element = %+v", second)
	}
	if msg.Body != "An application event log entry" {
		t.Errorf("body = %q", msg.Body)
	}
}

func TestParseRfc5424StructuredDataEscapes(t *testing.T) {
	p := NewParser(time.UTC)
	raw := `<13>1 - - - - - [id x="a\"b\\c\]d"] msg`
	msg, err := p.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msg.StructuredData) != 1 || len(msg.StructuredData[0].Params) != 1 {
		t.Fatalf("unexpected structured data: %+v", msg.StructuredData)
	}
	want := `a"b\c]d`
	if got := msg.StructuredData[0].Params[0].Value; got != want {
		t.Errorf("escaped value = %q, want %q", got, want)
	}
}

func TestParseRfc5424NoStructuredDataNoMsg(t *testing.T) {
	p := NewParser(time.UTC)
	msg, err := p.Parse([]byte("<13>1 - - - - - -"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Body != "" {
		t.Errorf("body = %q, want empty", msg.Body)
	}
}

func TestParseRfc3164WithHostnameAndTag(t *testing.T) {
	p := NewParser(time.UTC)
	year := time.Now().Year()
	msg, err := p.Parse([]byte("<34>Oct 11 22:14:15 mymachine su[1234]: 'su root' failed for lonvick"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Version != Rfc3164 {
		t.Errorf("version = %v, want Rfc3164", msg.Version)
	}
	if msg.Hostname == nil || *msg.Hostname != "mymachine" {
		t.Errorf("hostname = %v", msg.Hostname)
	}
	if msg.AppName == nil || *msg.AppName != "su" {
		t.Errorf("app_name = %v", msg.AppName)
	}
	if msg.ProcID == nil || *msg.ProcID != "1234" {
		t.Errorf("proc_id = %v", msg.ProcID)
	}
	if msg.Body != "'su root' failed for lonvick" {
		t.Errorf("body = %q", msg.Body)
	}
	gotTime := time.UnixMilli(msg.TimestampMs).UTC()
	if gotTime.Year() != year || gotTime.Month() != time.October || gotTime.Day() != 11 {
		t.Errorf("timestamp = %v", gotTime)
	}
}

func TestParseRfc3164NoTagNoPid(t *testing.T) {
	p := NewParser(time.UTC)
	msg, err := p.Parse([]byte("<13>Jan  1 00:00:00 host just a message"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Hostname == nil || *msg.Hostname != "host" {
		t.Errorf("hostname = %v", msg.Hostname)
	}
	if msg.AppName != nil {
		t.Errorf("app_name = %v, want nil", msg.AppName)
	}
	if msg.Body != "just a message" {
		t.Errorf("body = %q", msg.Body)
	}
}

func TestParseRfc3164NoHostnameNoTag(t *testing.T) {
	p := NewParser(time.UTC)
	msg, err := p.Parse([]byte("<13>Jan  1 00:00:00 just a plain message"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// "just" is followed by a space, so the word1-followed-by-space rule
	// treats it as the hostname; "a" that follows is not terminated by
	// ':' or '[' either, so no TAG is recognized and the rest is body.
	if msg.Hostname == nil || *msg.Hostname != "just" {
		t.Errorf("hostname = %v", msg.Hostname)
	}
	if msg.AppName != nil {
		t.Errorf("app_name = %v, want nil", msg.AppName)
	}
	if msg.Body != "a plain message" {
		t.Errorf("body = %q, want %q", msg.Body, "a plain message")
	}
}

func TestParsePriorityErrors(t *testing.T) {
	p := NewParser(time.UTC)
	cases := []string{
		"no angle brackets here",
		"<>",
		"<999>rest",
		"<1a>rest",
		"<",
	}
	for _, c := range cases {
		if _, err := p.Parse([]byte(c)); err != ErrInvalidPriority {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidPriority", c, err)
		}
	}
}

func TestParseTruncated(t *testing.T) {
	p := NewParser(time.UTC)
	if _, err := p.Parse([]byte("<13>1 ")); err == nil {
		t.Error("expected an error for truncated RFC5424 header")
	}
}

func TestParseInvalidStructuredData(t *testing.T) {
	p := NewParser(time.UTC)
	if _, err := p.Parse([]byte("<13>1 - - - - - not-a-dash-or-bracket msg")); err != ErrInvalidStructuredData {
		t.Errorf("error = %v, want ErrInvalidStructuredData", err)
	}
}

func TestParseInvalidUTF8Body(t *testing.T) {
	p := NewParser(time.UTC)
	raw := append([]byte("<13>1 - - - - - - "), 0xff, 0xfe)
	msg, err := p.Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Body != "��" {
		t.Errorf("body = %q", msg.Body)
	}
}

func TestFacilitySeverity(t *testing.T) {
	m := Message{Priority: 34}
	if m.Facility() != 4 || m.Severity() != 2 {
		t.Errorf("facility=%d severity=%d, want 4,2", m.Facility(), m.Severity())
	}
}
