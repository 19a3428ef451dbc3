package fingerprints

import "testing"

func TestMatchFamily(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"A3_Data_F", "arma3"},
		{"a3_characters_f", "arma3"},
		{"CBA_Main", "cba"},
		{"Extended_EventHandlers", "cba"},
		{"ace_common", "ace"},
		{"CA", "arma2"},
		{"CA_Modules", "arma2"},
		{"CAData", "arma2"},
		{"Camera_Mod", ""},
		{"MyMod", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ""
			if fam := MatchFamily(tt.name); fam != nil {
				got = fam.Name
			}
			if got != tt.want {
				t.Errorf("MatchFamily(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestIsBaseGame(t *testing.T) {
	if !IsBaseGame("A3_Functions_F") {
		t.Error("A3_Functions_F should be base game")
	}
	if IsBaseGame("CBA_A3") {
		t.Error("CBA_A3 is not base game")
	}
}
