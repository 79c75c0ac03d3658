// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package httpserver

import (
	"fmt"
	"net/http"
	"testing"

	"routingtables/common/reporter"
)

func TestAddHandlerServesRegisteredPaths(t *testing.T) {
	r := reporter.NewMock(t)
	c := NewMock(t, r)
	c.AddHandler("/hello", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("world"))
	}))

	addr := c.LocalAddr()
	if addr == nil {
		t.Fatalf("LocalAddr() = nil, server did not bind")
	}
	resp, err := http.Get(fmt.Sprintf("http://%s/hello", addr))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Get() status = %d, want 200", resp.StatusCode)
	}
}
