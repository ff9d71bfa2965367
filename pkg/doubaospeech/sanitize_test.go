package doubaospeech

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "你是一名面试官", "你是一名面试官"},
		{"backslash", `C:\path\to`, "C:/path/to"},
		{"tab", "a\tb", "a b"},
		{"newline kept", "line1\nline2", "line1\nline2"},
		{"control chars removed", "a\x00b\x01c\rd\x1fe", "abcde"},
		{"empty", "", ""},
		{"mixed", "简历:\t张三\\李四\x07\n结束", "简历: 张三/李四\n结束"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStartSessionPayloadSanitizesSystemRole(t *testing.T) {
	cfg := DefaultRealtimeConfig("role\twith\\slash\x02")

	payload := cfg.startSessionPayload()
	if payload.Dialog.SystemRole != "role with/slash" {
		t.Errorf("SystemRole = %q, want %q", payload.Dialog.SystemRole, "role with/slash")
	}
	if cfg.Dialog.SystemRole != "role\twith\\slash\x02" {
		t.Errorf("original config modified: %q", cfg.Dialog.SystemRole)
	}
}
