package chat

import "testing"

func TestPersonaSystemPrompt(t *testing.T) {
	tests := []struct {
		name    string
		persona Persona
		want    string
	}{
		{
			name:    "empty persona yields no prompt",
			persona: Persona{},
			want:    "",
		},
		{
			name:    "name role style",
			persona: Persona{Name: "Ada", Role: "assistant", Style: "concise"},
			want:    "Your name is 'Ada'.\nassistant\nconcise",
		},
		{
			name: "all fields",
			persona: Persona{
				Name:       "Ada",
				Role:       "a support agent",
				Background: "You work for Acme.",
				Style:      "Answer briefly.",
				UserName:   "Bob",
			},
			want: "Your name is 'Ada'.\na support agent\nYou work for Acme.\nAnswer briefly.\nYou are talking to 'Bob'.",
		},
		{
			name:    "blank entries skipped",
			persona: Persona{Name: "Ada", Style: "concise"},
			want:    "Your name is 'Ada'.\nconcise",
		},
		{
			name:    "user name only",
			persona: Persona{UserName: "Bob"},
			want:    "You are talking to 'Bob'.",
		},
		{
			name:    "role only",
			persona: Persona{Role: "an assistant"},
			want:    "an assistant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.persona.SystemPrompt(); got != tt.want {
				t.Errorf("SystemPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPersonaEmpty(t *testing.T) {
	if !(Persona{}).Empty() {
		t.Error("zero persona not reported empty")
	}
	if (Persona{Name: "Ada"}).Empty() {
		t.Error("named persona reported empty")
	}
}
