package logging

import "testing"

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		cfg     Config
		wantErr bool
	}{
		{Config{}, false},
		{Config{Level: "debug", Format: "json"}, false},
		{Config{Level: "WARNING", Format: "Pretty"}, false},
		{Config{Level: "verbose"}, true},
		{Config{Format: "xml"}, true},
	}
	for _, tt := range tests {
		err := ValidateConfig(tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateConfig(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNamedOnNilRoot(t *testing.T) {
	var r *Root
	l := r.Named("core")
	l.Info("ignored", "k", "v")
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := Nop()
	if OrNop(l) != l {
		t.Error("OrNop should return the given logger")
	}
}
