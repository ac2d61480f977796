// Package config loads the process's environment-derived settings, falling
// back to a local .env file the way cmd/agent/main.go did in the teacher.
package config

import (
	"fmt"
	"log"
	"net"
	"os"

	"github.com/joho/godotenv"
)

// Config holds every environment input spec.md §6 names, plus the asset
// and networking knobs needed to wire the call server.
type Config struct {
	OpenAIAPIKey     string
	AWSAccessKey     string
	AWSSecretKey     string
	PhysicalLocation string
	SIPAddr          *net.UDPAddr
	RTPAddr          *net.UDPAddr
	AssetsDir        string
	DebugWAVPath     string
	DefaultVoice     string
}

// Load reads a .env file if present (missing is not an error, matching the
// teacher's main.go), then populates Config from the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("note: no .env file found, using process environment")
	}

	cfg := Config{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		AWSAccessKey:     os.Getenv("AWS_ACCESS_KEY"),
		AWSSecretKey:     os.Getenv("AWS_SECRET_KEY"),
		PhysicalLocation: envOr("ROTARYGPT_PHYSICAL_LOCATION", "an undisclosed location"),
		AssetsDir:        envOr("ROTARYGPT_ASSETS_DIR", "./assets"),
		DebugWAVPath:     envOr("ROTARYGPT_DEBUG_WAV", "/tmp/conversation.wav"),
		DefaultVoice:     envOr("ROTARYGPT_DEFAULT_VOICE", "Daniel"),
	}

	if cfg.OpenAIAPIKey == "" {
		return cfg, fmt.Errorf("config: OPENAI_API_KEY must be set")
	}
	if cfg.AWSAccessKey == "" || cfg.AWSSecretKey == "" {
		return cfg, fmt.Errorf("config: AWS_ACCESS_KEY and AWS_SECRET_KEY must be set")
	}

	sipAddr, err := net.ResolveUDPAddr("udp", envOr("ROTARYGPT_SIP_ADDR", "0.0.0.0:5060"))
	if err != nil {
		return cfg, fmt.Errorf("config: invalid ROTARYGPT_SIP_ADDR: %w", err)
	}
	cfg.SIPAddr = sipAddr

	rtpAddr, err := net.ResolveUDPAddr("udp", envOr("ROTARYGPT_RTP_ADDR", "0.0.0.0:5004"))
	if err != nil {
		return cfg, fmt.Errorf("config: invalid ROTARYGPT_RTP_ADDR: %w", err)
	}
	cfg.RTPAddr = rtpAddr

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
