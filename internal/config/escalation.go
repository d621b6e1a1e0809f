package config

import (
	"time"
)

type VoiceConfig struct {
	Provider      string `yaml:"provider"`
	FromNumber    string `yaml:"from_number"`
	CallbackURL   string `yaml:"callback_url"`
	HotlineNumber string `yaml:"hotline_number"`
}

type EscalationConfig struct {
	Stage1Delay    time.Duration `yaml:"stage1_delay"`
	Stage2Delay    time.Duration `yaml:"stage2_delay"`
	SendTimeout    time.Duration `yaml:"send_timeout"`
	FanoutWorkers  int           `yaml:"fanout_workers"`
	HotlineNumber  string        `yaml:"hotline_number"`
	NotifyByEmail  bool          `yaml:"notify_by_email"`
}

func loadVoiceConfig() *VoiceConfig {
	return &VoiceConfig{
		Provider:      getEnv("VOICE_PROVIDER", "twilio"),
		FromNumber:    getEnv("TWILIO_FROM_NUMBER", ""),
		CallbackURL:   getEnv("VOICE_CALLBACK_URL", ""),
		HotlineNumber: getEnv("SECURITY_HOTLINE_NUMBER", ""),
	}
}

func loadEscalationConfig() *EscalationConfig {
	return &EscalationConfig{
		Stage1Delay:   getEnvAsDuration("ESCALATION_STAGE1_DELAY", 60*time.Second),
		Stage2Delay:   getEnvAsDuration("ESCALATION_STAGE2_DELAY", 300*time.Second),
		SendTimeout:   getEnvAsDuration("ESCALATION_SEND_TIMEOUT", 10*time.Second),
		FanoutWorkers: getEnvAsInt("ESCALATION_FANOUT_WORKERS", 8),
		HotlineNumber: getEnv("SECURITY_HOTLINE_NUMBER", ""),
		NotifyByEmail: getEnvAsBool("ESCALATION_NOTIFY_BY_EMAIL", true),
	}
}
