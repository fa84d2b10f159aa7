package browser

import (
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true, "xhr": true}
	tests := []struct {
		typ  proto.NetworkResourceType
		want bool
	}{
		{proto.NetworkResourceTypeImage, true},
		{proto.NetworkResourceTypeFont, true},
		{proto.NetworkResourceTypeStylesheet, false},
		{proto.NetworkResourceTypeDocument, false},
		{proto.NetworkResourceTypeScript, false},
		{proto.NetworkResourceTypeXHR, true},
	}
	for _, tt := range tests {
		if got := shouldBlock(set, tt.typ); got != tt.want {
			t.Errorf("shouldBlock(%s) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.defaults()
	if c.NavTimeout != 60*time.Second || c.SettleDelay != 2*time.Second || c.Logger == nil {
		t.Fatalf("defaults = %+v", c)
	}

	noSettle := Config{SettleDelay: -1}
	noSettle.defaults()
	if noSettle.SettleDelay != 0 {
		t.Fatalf("negative settle delay should disable settling, got %v", noSettle.SettleDelay)
	}
}

func TestManager_NotStarted(t *testing.T) {
	m := NewManager(Config{})
	if m.Running() {
		t.Fatal("manager running before Start")
	}
	if _, err := m.NewContext(); err == nil {
		t.Fatal("expected error opening a context without a browser")
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(t.Context()); err == nil {
		t.Fatal("expected error starting a closed manager")
	}
}
