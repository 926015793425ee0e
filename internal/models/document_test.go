package models

import "testing"

func TestDocumentStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from DocumentStatus
		to   DocumentStatus
		want bool
	}{
		{StatusUploading, StatusParsing, true},
		{StatusParsing, StatusExtracting, true},
		{StatusExtracting, StatusChunking, true},
		{StatusChunking, StatusEmbedding, true},
		{StatusEmbedding, StatusProcessed, true},
		{StatusUploading, StatusExtracting, false}, // skip
		{StatusChunking, StatusParsing, false},     // backward
		{StatusUploading, StatusFailed, true},
		{StatusEmbedding, StatusFailed, true},
		{StatusProcessed, StatusFailed, false}, // terminal
		{StatusFailed, StatusParsing, false},
		{StatusProcessed, StatusProcessed, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestDocumentStatus_Terminal(t *testing.T) {
	for _, s := range []DocumentStatus{StatusUploading, StatusParsing, StatusExtracting, StatusChunking, StatusEmbedding} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !StatusProcessed.Terminal() || !StatusFailed.Terminal() {
		t.Error("processed and failed should be terminal")
	}
}
