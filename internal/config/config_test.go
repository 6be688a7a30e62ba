package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.VideoPrefix != DefaultVideoPrefix {
		t.Errorf("expected video prefix %q, got %q", DefaultVideoPrefix, cfg.VideoPrefix)
	}
	if cfg.PresignExpiry != DefaultPresignExpiry {
		t.Errorf("expected presign expiry %v, got %v", DefaultPresignExpiry, cfg.PresignExpiry)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("expected poll interval %v, got %v", DefaultPollInterval, cfg.PollInterval)
	}
	if cfg.TranscodeTimeout != DefaultTranscodeTimeout {
		t.Errorf("expected transcode timeout %v, got %v", DefaultTranscodeTimeout, cfg.TranscodeTimeout)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("VT_TRAININGS_TABLE", "Trainings")
	t.Setenv("VT_VIDEO_PREFIX", "assets")
	t.Setenv("VT_POLL_INTERVAL", "5s")

	cfg := FromEnv()

	if cfg.TrainingsTable != "Trainings" {
		t.Errorf("expected trainings table 'Trainings', got %q", cfg.TrainingsTable)
	}
	if cfg.VideoPrefix != "assets" {
		t.Errorf("expected video prefix 'assets', got %q", cfg.VideoPrefix)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", cfg.PollInterval)
	}
}

func TestFromEnv_BadDurationFallsBack(t *testing.T) {
	t.Setenv("VT_TRANSCODE_TIMEOUT", "not-a-duration")

	cfg := FromEnv()
	if cfg.TranscodeTimeout != DefaultTranscodeTimeout {
		t.Errorf("expected default timeout on parse failure, got %v", cfg.TranscodeTimeout)
	}
}

func TestRequire(t *testing.T) {
	cfg := Config{TrainingsTable: "Trainings"}

	if err := cfg.Require("TrainingsTable"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := cfg.Require("TrainingsTable", "UploadBucket", "WebBucket")
	if err == nil {
		t.Fatal("expected error for missing fields")
	}
	for _, want := range []string{"UploadBucket", "WebBucket"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should name %s", err.Error(), want)
		}
	}
}

func TestRequire_UnknownFieldFails(t *testing.T) {
	cfg := FromEnv()
	if err := cfg.Require("NoSuchField"); err == nil {
		t.Error("expected unknown field name to be reported as missing")
	}
}
