package config

import "testing"

func TestLoadMissingOpenAIKeyFails(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AWS_ACCESS_KEY", "AKIA")
	t.Setenv("AWS_SECRET_KEY", "secret")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when OPENAI_API_KEY is unset")
	}
}

func TestLoadAppliesDefaultsAndParsesAddrs(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AWS_ACCESS_KEY", "AKIA")
	t.Setenv("AWS_SECRET_KEY", "secret")
	t.Setenv("ROTARYGPT_SIP_ADDR", "")
	t.Setenv("ROTARYGPT_RTP_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SIPAddr.Port != 5060 {
		t.Fatalf("SIPAddr port = %d, want 5060", cfg.SIPAddr.Port)
	}
	if cfg.RTPAddr.Port != 5004 {
		t.Fatalf("RTPAddr port = %d, want 5004", cfg.RTPAddr.Port)
	}
	if cfg.DebugWAVPath != "/tmp/conversation.wav" {
		t.Fatalf("DebugWAVPath = %q, want default", cfg.DebugWAVPath)
	}
}

func TestLoadHonorsOverriddenAddr(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AWS_ACCESS_KEY", "AKIA")
	t.Setenv("AWS_SECRET_KEY", "secret")
	t.Setenv("ROTARYGPT_SIP_ADDR", "127.0.0.1:15060")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SIPAddr.Port != 15060 {
		t.Fatalf("SIPAddr port = %d, want 15060", cfg.SIPAddr.Port)
	}
}
