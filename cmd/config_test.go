// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package cmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"routingtables/cmd"
	"routingtables/common/helpers"
)

type dummyConfiguration struct {
	Module1 dummyModule1Configuration
}
type dummyModule1Configuration struct {
	Listen  string
	Topic   string
	Workers int
	Timeout time.Duration
}

var dummyDefaultConfiguration = dummyConfiguration{
	Module1: dummyModule1Configuration{
		Listen:  "127.0.0.1:8080",
		Topic:   "nothingness",
		Workers: 100,
		Timeout: time.Minute,
	},
}

func TestDump(t *testing.T) {
	config := `---
module1:
 topic: flows
 timeout: 20m
`
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(configFile, []byte(config), 0644)

	c := cmd.ConfigRelatedOptions{Path: configFile, Dump: true}

	parsed := dummyDefaultConfiguration
	out := bytes.NewBuffer([]byte{})
	if err := c.Parse(out, "dummy", &parsed); err != nil {
		t.Fatalf("Parse() error:\n%+v", err)
	}
	expected := dummyConfiguration{
		Module1: dummyModule1Configuration{
			Listen:  "127.0.0.1:8080",
			Topic:   "flows",
			Workers: 100,
			Timeout: 20 * time.Minute,
		},
	}
	if diff := helpers.Diff(parsed, expected); diff != "" {
		t.Errorf("Parse() (-got, +want):\n%s", diff)
	}
}

func TestEnvOverride(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(configFile, []byte("---\nmodule1:\n topic: flows\n"), 0644)

	os.Setenv("ROUTINGTABLES_DUMMY_MODULE1_LISTEN", "127.0.0.1:9000")
	os.Setenv("ROUTINGTABLES_DUMMY_MODULE1_TIMEOUT", "10m")
	t.Cleanup(func() {
		os.Unsetenv("ROUTINGTABLES_DUMMY_MODULE1_LISTEN")
		os.Unsetenv("ROUTINGTABLES_DUMMY_MODULE1_TIMEOUT")
	})

	c := cmd.ConfigRelatedOptions{Path: configFile}
	parsed := dummyDefaultConfiguration
	out := bytes.NewBuffer([]byte{})
	if err := c.Parse(out, "dummy", &parsed); err != nil {
		t.Fatalf("Parse() error:\n%+v", err)
	}
	expected := dummyConfiguration{
		Module1: dummyModule1Configuration{
			Listen:  "127.0.0.1:9000",
			Topic:   "flows",
			Workers: 100,
			Timeout: 10 * time.Minute,
		},
	}
	if diff := helpers.Diff(parsed, expected); diff != "" {
		t.Errorf("Parse() (-got, +want):\n%s", diff)
	}
}
