package intent

import "testing"

func TestToRussianLayout(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ghbdtn", "привет"},
		{"pfgbcfnmcz yf ehjr", "записаться на урок"},
		{"Ghbdtn", "Привет"},
		{"привет", "привет"},
		{"hello 123", "руддщ 123"},
	}
	for _, tt := range tests {
		if got := ToRussianLayout(tt.in); got != tt.want {
			t.Errorf("ToRussianLayout(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNeedsLayoutCorrection(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"pure latin", "ghbdtn", true},
		{"latin dominates", "jxtym хочу pfgbcfnmcz yf ehjr ghzvj ctqxfc", true},
		{"no cyrillic at all", "ghbdtn ,jn", true},
		{"balanced mix", "хорошо ghbdtn", false},
		{"russian text", "привет, хочу записаться", false},
		{"mixed mostly russian", "привет ok", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsLayoutCorrection(tt.in); got != tt.want {
				t.Errorf("NeedsLayoutCorrection(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
