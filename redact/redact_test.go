package redact

import "testing"

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"two mentions", "hi <@123> and <@456>!", "hi (user) and (user)!"},
		{"no mentions", "no mentions here", "no mentions here"},
		{"empty", "", ""},
		{"adjacent", "<@1><@22><@333>", "(user)(user)(user)"},
		{"unclosed", "<@123 is not a mention", "<@123 is not a mention"},
		{"non digit", "<@abc> <@!123>", "<@abc> <@!123>"},
		{"role mention untouched", "<@&99> ping", "<@&99> ping"},
		{"dollar kept literal", "<@1> owes $1", "(user) owes $1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Redact(tt.in); got != tt.want {
				t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
