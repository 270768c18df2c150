package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jneschisi/dart-frog/internal/config"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"", cmdNone},
		{"   ", cmdNone},
		{"r", cmdReload},
		{"Reload\n", cmdReload},
		{"l", cmdList},
		{"ls", cmdList},
		{"i", cmdInfo},
		{"q", cmdStop},
		{"stop", cmdStop},
		{"?", cmdHelp},
		{"restart", cmdUnknown},
	}

	for _, tt := range tests {
		if got := parseCommand(tt.line); got != tt.want {
			t.Errorf("parseCommand(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestRawRequest(t *testing.T) {
	req, err := rawRequest([]string{"dev_server.reload", `{"applicationId":"7"}`})
	if err != nil {
		t.Fatalf("rawRequest() error = %v", err)
	}
	if req.Method != "dev_server.reload" {
		t.Errorf("Method = %q", req.Method)
	}
	var params map[string]string
	if err := json.Unmarshal(req.Params, &params); err != nil || params["applicationId"] != "7" {
		t.Errorf("Params = %s", req.Params)
	}

	req, err = rawRequest([]string{"daemon.requestVersion"})
	if err != nil || req.Params != nil {
		t.Errorf("rawRequest(no params) = %+v, %v", req, err)
	}

	if _, err := rawRequest([]string{"daemon.kill", "{oops"}); err == nil || !strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("rawRequest(bad params) error = %v", err)
	}
}

func TestStartParams(t *testing.T) {
	cfg = config.Default()
	projectDir = "/srv/api"
	defer func() { startPort, startVMServicePort = 0, 0 }()

	p := startParams()
	if p.Port != 8080 || p.DartVMServicePort != 8181 || p.WorkingDirectory != "/srv/api" {
		t.Errorf("startParams() = %+v, want config defaults", p)
	}

	startPort, startVMServicePort = 9000, 9001
	p = startParams()
	if p.Port != 9000 || p.DartVMServicePort != 9001 {
		t.Errorf("startParams() = %+v, want flag overrides", p)
	}
}
