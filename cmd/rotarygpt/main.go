// Command rotarygpt answers a single SIP call on a rotary-phone-themed
// smart-home voice agent: SIP/RTP media, streaming STT, a tool-calling LLM,
// and streaming TTS (spec.md §1-§2). Process wiring follows the shape of
// the teacher's cmd/agent/main.go.
package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tcz/rotarygpt/internal/callserver"
	"github.com/tcz/rotarygpt/internal/config"
	"github.com/tcz/rotarygpt/internal/conversation"
	"github.com/tcz/rotarygpt/internal/logging"
	"github.com/tcz/rotarygpt/internal/providers/llm"
	"github.com/tcz/rotarygpt/internal/providers/stt"
	"github.com/tcz/rotarygpt/internal/providers/tts"
	"github.com/tcz/rotarygpt/internal/sipua"
	"github.com/tcz/rotarygpt/internal/tools"
)

type stdLogger struct{}

func (stdLogger) Debug(msg string, args ...interface{}) { log.Println(append([]interface{}{"DEBUG", msg}, args...)...) }
func (stdLogger) Info(msg string, args ...interface{})  { log.Println(append([]interface{}{"INFO", msg}, args...)...) }
func (stdLogger) Warn(msg string, args ...interface{})  { log.Println(append([]interface{}{"WARN", msg}, args...)...) }
func (stdLogger) Error(msg string, args ...interface{}) { log.Println(append([]interface{}{"ERROR", msg}, args...)...) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("rotarygpt: %v", err)
	}

	var logger logging.Logger = stdLogger{}

	voice := tts.NewVoiceCell(cfg.DefaultVoice)

	sttClient := stt.New(cfg.OpenAIAPIKey)
	llmClient := llm.New(cfg.OpenAIAPIKey, cfg.PhysicalLocation)
	ttsClient := tts.New(cfg.AWSAccessKey, cfg.AWSSecretKey, voice)

	registry := tools.NewRegistry(logger)
	registry.Register(tools.NewPingTool())
	registry.Register(tools.NewChangeAccentTool(voice))

	clips, err := loadClips(cfg.AssetsDir)
	if err != nil {
		log.Fatalf("rotarygpt: %v", err)
	}

	cs := callserver.New(callserver.Deps{
		RTPAddr:      cfg.RTPAddr,
		STT:          sttClient,
		LLM:          llmClient,
		TTS:          ttsClient,
		Tools:        conversation.ToolRegistryAdapter{Registry: registry},
		Clips:        clips,
		DebugWAVPath: cfg.DebugWAVPath,
		Log:          logger,
	})

	sipServer := sipua.New(cfg.SIPAddr, cs, logger)

	shutdown := make(chan struct{})
	go func() {
		if err := sipServer.Run(shutdown); err != nil {
			log.Fatalf("rotarygpt: sip server exited: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("rotarygpt: shutting down")
	close(shutdown)
}

// loadClips reads the three raw linear-PCM s16le @ 8kHz clips from dir
// (spec.md §6 "On-disk assets").
func loadClips(dir string) (conversation.Clips, error) {
	greeting, err := os.ReadFile(filepath.Join(dir, "greeting.pcm"))
	if err != nil {
		return conversation.Clips{}, err
	}
	oneMoment, err := os.ReadFile(filepath.Join(dir, "one-second.pcm"))
	if err != nil {
		return conversation.Clips{}, err
	}
	errMsg, err := os.ReadFile(filepath.Join(dir, "error-message.pcm"))
	if err != nil {
		return conversation.Clips{}, err
	}
	return conversation.Clips{Greeting: greeting, OneMoment: oneMoment, ErrorMessage: errMsg}, nil
}
