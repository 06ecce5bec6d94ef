package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Info("job transition", "job_id", "j-1", "status", "queued")

	out := buf.String()
	if !strings.Contains(out, "job transition") {
		t.Errorf("missing message: %q", out)
	}
	if !strings.Contains(out, "job_id=j-1") {
		t.Errorf("missing field: %q", out)
	}
	if !strings.Contains(out, "status=queued") {
		t.Errorf("missing field: %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text", false)

	Debug("not shown")
	Info("not shown either")
	Warn("shown")

	out := buf.String()
	if strings.Contains(out, "not shown") {
		t.Errorf("low-level records leaked: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)

	Info("hello", "k", "v")

	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	lc := NewJobContext("job-42", "sess-7").WithMode("bowling")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "claimed")

	out := buf.String()
	for _, want := range []string{"job_id=job-42", "session_id=sess-7", "mode=bowling"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %q", want, out)
		}
	}
}

func TestContextFieldsAbsentWithoutLogContext(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	InfoCtx(context.Background(), "plain")

	if strings.Contains(buf.String(), "job_id") {
		t.Errorf("unexpected job fields: %q", buf.String())
	}
}
